// Package conversation implements the chat-driven appointment booking flow
// as a single shared state machine. Both host surfaces (the floating widget
// and the full-page assistant) drive the same engine; rendering stays in
// the surface adapters.
package conversation

import (
	"time"

	"github.com/curasoft/emr-assist/internal/emr"
	"github.com/curasoft/emr-assist/internal/schedule"
)

// Step is the current position in the booking flow. Exactly one step is
// active per conversation; transitions move forward on success and may
// reset to an earlier step on "go back", "try again" or exit.
type Step string

const (
	StepIdle         Step = "idle"
	StepCategory     Step = "category"
	StepSubSpecialty Step = "subspecialty"
	StepDoctor       Step = "doctor"
	StepTimeSlot     Step = "timeslot"
	StepRegistration Step = "registration"
	StepConfirmation Step = "confirmation"
)

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Affordance tags an assistant message with the interactive controls the
// renderer should display under it. The engine never renders anything
// itself.
type Affordance string

const (
	AffordanceIntents       Affordance = "intents"
	AffordanceCategories    Affordance = "categories"
	AffordanceSubSpecialty  Affordance = "subspecialties"
	AffordanceDoctors       Affordance = "doctors"
	AffordanceTimeSlots     Affordance = "timeslots"
	AffordanceRegistration  Affordance = "registration"
	AffordanceRetryOptions  Affordance = "retry-options"
	AffordanceRebookPrompt  Affordance = "rebook-prompt"
	AffordancePrescriptions Affordance = "prescriptions"
)

// Message is one chat turn. Messages are immutable once appended and the
// log is the sole audit trail of the conversation.
type Message struct {
	ID            string             `json:"id"`
	Role          Role               `json:"role"`
	Text          string             `json:"text"`
	Timestamp     time.Time          `json:"timestamp"`
	Affordance    Affordance         `json:"uiAffordance,omitempty"`
	Options       []string           `json:"options,omitempty"`
	Doctors       []emr.StaffRecord  `json:"doctors,omitempty"`
	TimeSlots     []schedule.Slot    `json:"timeSlots,omitempty"`
	Prescriptions []emr.Prescription `json:"prescriptions,omitempty"`
	Appointment   *emr.Appointment   `json:"appointment,omitempty"`
}

// BookingSelection accumulates the user's choices. One instance per
// conversation; discarded entirely on reset.
type BookingSelection struct {
	Category                  string            `json:"category,omitempty"`
	SubSpecialty              string            `json:"subSpecialty,omitempty"`
	Doctor                    *emr.StaffRecord  `json:"doctor,omitempty"`
	TimeSlot                  *schedule.Slot    `json:"timeSlot,omitempty"`
	PatientRegistrationNumber string            `json:"patientRegistrationNumber,omitempty"`
	AvailableDoctors          []emr.StaffRecord `json:"availableDoctors,omitempty"`
	AvailableTimeSlots        []schedule.Slot   `json:"availableTimeSlots,omitempty"`
}

// Empty reports whether nothing has been selected or cached yet.
func (s BookingSelection) Empty() bool {
	return s.Category == "" && s.SubSpecialty == "" && s.Doctor == nil &&
		s.TimeSlot == nil && s.PatientRegistrationNumber == "" &&
		len(s.AvailableDoctors) == 0 && len(s.AvailableTimeSlots) == 0
}

// State is the full conversation state: step, selection and message log.
// Generation is bumped on every accepted transition so a response from an
// abandoned in-flight call can be detected and discarded.
type State struct {
	ID         string           `json:"id"`
	Step       Step             `json:"step"`
	Selection  BookingSelection `json:"selection"`
	Messages   []Message        `json:"messages"`
	Generation uint64           `json:"generation"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// Invariants per the flow contract: Doctor is non-nil at timeslot or
// later, TimeSlot non-nil at registration or later.

// EventKind discriminates user inputs fed to the engine.
type EventKind string

const (
	EventStartBooking        EventKind = "start-booking"
	EventFindPrescriptions   EventKind = "find-prescriptions"
	EventPickCategory        EventKind = "pick-category"
	EventPickSubSpecialty    EventKind = "pick-subspecialty"
	EventPickDoctor          EventKind = "pick-doctor"
	EventPickSlot            EventKind = "pick-slot"
	EventSubmitRegistration  EventKind = "submit-registration"
	EventSearchPrescriptions EventKind = "search-prescriptions"
	EventGoBack              EventKind = "go-back"
	EventExit                EventKind = "exit"
	EventReset               EventKind = "reset"
)

// Event is a single user input: a picked option, a submitted identifier or
// a flow control action. Value carries the selection (category name,
// doctor ID, slot datetime, search text) where the kind needs one.
type Event struct {
	Kind  EventKind `json:"kind"`
	Value string    `json:"value,omitempty"`
}
