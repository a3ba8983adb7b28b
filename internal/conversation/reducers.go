package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/curasoft/emr-assist/internal/emr"
	"github.com/curasoft/emr-assist/internal/schedule"
)

// Reducers are the pure half of the flow: each takes a state value plus the
// data a transition needs and returns the next state. All gateway I/O stays
// in the engine; reducers only append messages and move the step, so both
// host surfaces share identical transition behavior.

func newMessage(role Role, text string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: at,
	}
}

// advance appends messages and commits the transition. Every accepted
// transition bumps Generation, which is what invalidates responses from
// calls the user has since abandoned.
func advance(st State, step Step, at time.Time, msgs ...Message) State {
	st.Messages = append(append([]Message(nil), st.Messages...), msgs...)
	st.Step = step
	st.Generation++
	st.UpdatedAt = at
	return st
}

// NewState creates a conversation opened with the welcome turn.
func NewState(id string, at time.Time) State {
	welcome := newMessage(RoleAssistant,
		"Hello! I can help you book an appointment with one of our doctors or look up prescriptions. What would you like to do?",
		at)
	welcome.Affordance = AffordanceIntents
	welcome.Options = []string{"Book an appointment", "Find prescriptions"}

	return State{
		ID:        id,
		Step:      StepIdle,
		Messages:  []Message{welcome},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func reduceUserTurn(st State, text string, at time.Time) State {
	st.Messages = append(append([]Message(nil), st.Messages...), newMessage(RoleUser, text, at))
	st.UpdatedAt = at
	return st
}

func reduceBookingStarted(st State, at time.Time) State {
	msg := newMessage(RoleAssistant, "Great, let's find the right doctor. Which specialty category do you need?", at)
	msg.Affordance = AffordanceCategories
	msg.Options = Categories()
	return advance(st, StepCategory, at, msg)
}

func reducePrescriptionPrompt(st State, at time.Time) State {
	msg := newMessage(RoleAssistant, "Sure - tell me a patient name or medication and I'll search prescriptions.", at)
	msg.Affordance = AffordancePrescriptions
	// Prescription search is a parallel sub-flow; the booking step is untouched.
	return advance(st, st.Step, at, msg)
}

func reduceCategoryPicked(st State, category string, at time.Time) State {
	subs := SubSpecialties(category)
	if len(subs) == 0 {
		msg := newMessage(RoleAssistant, "I don't recognize that category. Please pick one of the listed specialties.", at)
		msg.Affordance = AffordanceCategories
		msg.Options = Categories()
		return advance(st, StepCategory, at, msg)
	}

	st.Selection.Category = category
	msg := newMessage(RoleAssistant, fmt.Sprintf("Which %s sub-specialty would you like?", strings.ToLower(category)), at)
	msg.Affordance = AffordanceSubSpecialty
	msg.Options = subs
	return advance(st, StepSubSpecialty, at, msg)
}

func reduceDoctorsLoaded(st State, subSpecialty string, doctors []emr.StaffRecord, at time.Time) State {
	if len(doctors) == 0 {
		msg := newMessage(RoleAssistant,
			fmt.Sprintf("No doctors are currently available for %s. Please choose another sub-specialty.", subSpecialty), at)
		msg.Affordance = AffordanceSubSpecialty
		msg.Options = SubSpecialties(st.Selection.Category)
		return advance(st, StepSubSpecialty, at, msg)
	}

	st.Selection.SubSpecialty = subSpecialty
	st.Selection.AvailableDoctors = doctors
	msg := newMessage(RoleAssistant, "Here are the available doctors. Who would you like to see?", at)
	msg.Affordance = AffordanceDoctors
	msg.Doctors = doctors
	return advance(st, StepDoctor, at, msg)
}

func reduceSlotsGenerated(st State, doctor emr.StaffRecord, slots []schedule.Slot, windowDays int, at time.Time) State {
	st.Selection.Doctor = &doctor
	st.Selection.AvailableTimeSlots = slots

	if len(slots) == 0 {
		msg := newMessage(RoleAssistant,
			fmt.Sprintf("Dr. %s has no open slots in the next %d days. Would you like to select another doctor?", doctor.FullName(), windowDays), at)
		msg.Affordance = AffordanceDoctors
		msg.Doctors = st.Selection.AvailableDoctors
		return advance(st, StepDoctor, at, msg)
	}

	msg := newMessage(RoleAssistant,
		fmt.Sprintf("Dr. %s is available at these times over the next %d days. Pick a slot that suits you.", doctor.FullName(), windowDays), at)
	msg.Affordance = AffordanceTimeSlots
	msg.TimeSlots = slots
	return advance(st, StepTimeSlot, at, msg)
}

func reduceSlotConflict(st State, slot schedule.Slot, at time.Time) State {
	msg := newMessage(RoleAssistant,
		fmt.Sprintf("Sorry, %s has just been taken. Please pick another slot.", slot.Display), at)
	msg.Affordance = AffordanceTimeSlots
	msg.TimeSlots = st.Selection.AvailableTimeSlots
	return advance(st, StepTimeSlot, at, msg)
}

func reduceSlotAccepted(st State, slot schedule.Slot, at time.Time) State {
	st.Selection.TimeSlot = &slot
	msg := newMessage(RoleAssistant,
		"Almost done. Please enter the patient's full name, registration number or national health identifier so I can verify the record.", at)
	msg.Affordance = AffordanceRegistration
	return advance(st, StepRegistration, at, msg)
}

func reducePatientNotFound(st State, at time.Time) State {
	msg := newMessage(RoleAssistant,
		"I couldn't find a matching patient record. You can re-enter the details, go back to pick another slot, or exit the booking.", at)
	msg.Affordance = AffordanceRetryOptions
	msg.Options = []string{"Re-enter details", "Go back", "Exit"}
	return advance(st, StepRegistration, at, msg)
}

func reducePatientMatched(st State, patient emr.Patient, entered string, at time.Time) State {
	st.Selection.PatientRegistrationNumber = entered
	msg := newMessage(RoleAssistant,
		fmt.Sprintf("Found %s %s. Booking your appointment now...", patient.FirstName, patient.LastName), at)
	return advance(st, StepConfirmation, at, msg)
}

func reduceBookingSucceeded(st State, appt *emr.Appointment, at time.Time) State {
	doctor := st.Selection.Doctor
	slot := st.Selection.TimeSlot

	text := "Your appointment is booked."
	if doctor != nil && slot != nil {
		text = fmt.Sprintf("All set! Your appointment with Dr. %s is booked for %s.", doctor.FullName(), slot.Display)
	}
	msg := newMessage(RoleAssistant, text, at)
	msg.Appointment = appt

	rebook := newMessage(RoleAssistant, "Is there anything else I can help you with? I can book another appointment or search prescriptions.", at)
	rebook.Affordance = AffordanceRebookPrompt
	rebook.Options = []string{"Book another appointment", "Find prescriptions"}

	st.Selection = BookingSelection{}
	return advance(st, StepIdle, at, msg, rebook)
}

func reduceBookingFailed(st State, at time.Time) State {
	st.Selection.TimeSlot = nil
	msg := newMessage(RoleAssistant,
		"Sorry, I couldn't complete the booking. Your slot was not reserved - please pick a time again.", at)
	msg.Affordance = AffordanceTimeSlots
	msg.TimeSlots = st.Selection.AvailableTimeSlots
	return advance(st, StepTimeSlot, at, msg)
}

// reduceGoBack steps one stage backwards, re-offering the cached options
// for the earlier step so nothing is re-fetched.
func reduceGoBack(st State, at time.Time) State {
	switch st.Step {
	case StepRegistration:
		st.Selection.TimeSlot = nil
		msg := newMessage(RoleAssistant, "No problem - pick another slot.", at)
		msg.Affordance = AffordanceTimeSlots
		msg.TimeSlots = st.Selection.AvailableTimeSlots
		return advance(st, StepTimeSlot, at, msg)
	case StepTimeSlot:
		st.Selection.Doctor = nil
		st.Selection.TimeSlot = nil
		st.Selection.AvailableTimeSlots = nil
		msg := newMessage(RoleAssistant, "Sure - choose another doctor.", at)
		msg.Affordance = AffordanceDoctors
		msg.Doctors = st.Selection.AvailableDoctors
		return advance(st, StepDoctor, at, msg)
	case StepDoctor:
		st.Selection.SubSpecialty = ""
		st.Selection.AvailableDoctors = nil
		msg := newMessage(RoleAssistant, "Which sub-specialty would you like instead?", at)
		msg.Affordance = AffordanceSubSpecialty
		msg.Options = SubSpecialties(st.Selection.Category)
		return advance(st, StepSubSpecialty, at, msg)
	case StepSubSpecialty:
		st.Selection = BookingSelection{}
		msg := newMessage(RoleAssistant, "Which specialty category do you need?", at)
		msg.Affordance = AffordanceCategories
		msg.Options = Categories()
		return advance(st, StepCategory, at, msg)
	default:
		msg := newMessage(RoleAssistant, "There's nothing to go back to yet. Would you like to book an appointment?", at)
		msg.Affordance = AffordanceIntents
		msg.Options = []string{"Book an appointment", "Find prescriptions"}
		return advance(st, st.Step, at, msg)
	}
}

// reduceExit abandons the verification stage: the whole selection is
// discarded and the flow returns to category selection.
func reduceExit(st State, at time.Time) State {
	st.Selection = BookingSelection{}
	msg := newMessage(RoleAssistant, "Okay, I've cancelled that booking. Which specialty category would you like to start from?", at)
	msg.Affordance = AffordanceCategories
	msg.Options = Categories()
	return advance(st, StepCategory, at, msg)
}

func reduceReset(st State, at time.Time) State {
	fresh := NewState(st.ID, at)
	fresh.CreatedAt = st.CreatedAt
	fresh.Generation = st.Generation + 1
	return fresh
}

func reducePrescriptionsFound(st State, query string, results []emr.Prescription, at time.Time) State {
	var msg Message
	if len(results) == 0 {
		msg = newMessage(RoleAssistant, fmt.Sprintf("I couldn't find any prescriptions matching %q.", query), at)
	} else {
		msg = newMessage(RoleAssistant, fmt.Sprintf("I found %d prescription(s) matching %q.", len(results), query), at)
		msg.Affordance = AffordancePrescriptions
		msg.Prescriptions = results
	}
	return advance(st, st.Step, at, msg)
}

// reduceGatewayError reports a failed external call. The step is left
// unchanged so the user can re-trigger the action; nothing is retried
// automatically.
func reduceGatewayError(st State, at time.Time) State {
	msg := newMessage(RoleAssistant,
		"I'm sorry, I'm having trouble reaching the clinic system right now. Please try that again in a moment.", at)
	return advance(st, st.Step, at, msg)
}

func reduceUnexpectedEvent(st State, at time.Time) State {
	msg := newMessage(RoleAssistant, "I didn't quite catch that. Please use one of the options above.", at)
	return advance(st, st.Step, at, msg)
}
