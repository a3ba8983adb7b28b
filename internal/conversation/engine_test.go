package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curasoft/emr-assist/internal/emr"
	"github.com/curasoft/emr-assist/pkg/logging"
)

// testNow is a Wednesday so the forward window covers Thu 11th..Wed 17th.
var testNow = time.Date(2024, 7, 10, 12, 0, 0, 0, time.Local)

type mockGateway struct {
	staff        []emr.StaffRecord
	staffErr     error
	appointments []emr.Appointment
	listErr      error
	created      *emr.Appointment
	createErr    error
	createReq    emr.CreateAppointmentRequest
	patients     []emr.Patient
	patientsErr  error
	rx           []emr.Prescription
	rxErr        error

	searchStaffCalls int
	createCalls      int
	onSearchStaff    func()
}

func (m *mockGateway) SearchStaff(_ context.Context, _, _ string) ([]emr.StaffRecord, error) {
	m.searchStaffCalls++
	if m.onSearchStaff != nil {
		m.onSearchStaff()
	}
	return m.staff, m.staffErr
}

func (m *mockGateway) ListAppointments(_ context.Context, _, _ string) ([]emr.Appointment, error) {
	return m.appointments, m.listErr
}

func (m *mockGateway) CreateAppointment(_ context.Context, req emr.CreateAppointmentRequest) (*emr.Appointment, error) {
	m.createCalls++
	m.createReq = req
	return m.created, m.createErr
}

func (m *mockGateway) SearchPatients(_ context.Context, _ string) ([]emr.Patient, error) {
	return m.patients, m.patientsErr
}

func (m *mockGateway) SearchPrescriptions(_ context.Context, _ string) ([]emr.Prescription, error) {
	return m.rx, m.rxErr
}

type mockRecorder struct {
	started []string
	booked  []string
	rx      []string
}

func (r *mockRecorder) SessionStarted(_ context.Context, id string) error {
	r.started = append(r.started, id)
	return nil
}

func (r *mockRecorder) AppointmentBooked(_ context.Context, id, apptID string) error {
	r.booked = append(r.booked, apptID)
	return nil
}

func (r *mockRecorder) PrescriptionSearched(_ context.Context, id string) error {
	r.rx = append(r.rx, id)
	return nil
}

type mockNotifier struct {
	sent []BookingConfirmation
	err  error
}

func (n *mockNotifier) SendBookingConfirmation(_ context.Context, c BookingConfirmation) error {
	n.sent = append(n.sent, c)
	return n.err
}

func newTestEngine(gw *mockGateway) (*Engine, Store) {
	store := NewMemoryStore()
	eng := NewEngine(EngineConfig{
		Gateway: gw,
		Store:   store,
		Logger:  logging.New("error"),
		Now:     func() time.Time { return testNow },
	})
	return eng, store
}

func testDoctor() emr.StaffRecord {
	return emr.StaffRecord{
		ID:           "doc-1",
		FirstName:    "Sarah",
		LastName:     "Chen",
		Role:         "Doctor",
		Specialty:    "Medical Specialties",
		SubSpecialty: "Cardiologist",
		Department:   "Cardiology",
		WorkingDays:  []string{"Monday"},
		WorkingHours: emr.WorkingHours{Start: "09:00", End: "11:00"},
	}
}

// advanceToDoctorStep walks a fresh conversation up to doctor selection.
func advanceToDoctorStep(t *testing.T, eng *Engine) *State {
	t.Helper()
	ctx := context.Background()

	st, err := eng.Start(ctx)
	require.NoError(t, err)

	st, err = eng.Handle(ctx, st.ID, Event{Kind: EventStartBooking})
	require.NoError(t, err)
	require.Equal(t, StepCategory, st.Step)

	st, err = eng.Handle(ctx, st.ID, Event{Kind: EventPickCategory, Value: "Medical Specialties"})
	require.NoError(t, err)
	require.Equal(t, StepSubSpecialty, st.Step)

	st, err = eng.Handle(ctx, st.ID, Event{Kind: EventPickSubSpecialty, Value: "Cardiologist"})
	require.NoError(t, err)
	require.Equal(t, StepDoctor, st.Step)
	return st
}

// advanceToRegistration continues from doctor selection to the registration prompt.
func advanceToRegistration(t *testing.T, eng *Engine, st *State) *State {
	t.Helper()
	ctx := context.Background()

	st, err := eng.Handle(ctx, st.ID, Event{Kind: EventPickDoctor, Value: "doc-1"})
	require.NoError(t, err)
	require.Equal(t, StepTimeSlot, st.Step)
	require.NotEmpty(t, st.Selection.AvailableTimeSlots)

	st, err = eng.Handle(ctx, st.ID, Event{Kind: EventPickSlot, Value: st.Selection.AvailableTimeSlots[0].DateTime})
	require.NoError(t, err)
	require.Equal(t, StepRegistration, st.Step)
	return st
}

func TestStartOpensConversation(t *testing.T) {
	eng, _ := newTestEngine(&mockGateway{})

	st, err := eng.Start(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, st.ID)
	assert.Equal(t, StepIdle, st.Step)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, AffordanceIntents, st.Messages[0].Affordance)
}

func TestGetUnknownConversation(t *testing.T) {
	eng, _ := newTestEngine(&mockGateway{})

	_, err := eng.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookingFlowSuccess(t *testing.T) {
	gw := &mockGateway{
		staff: []emr.StaffRecord{
			testDoctor(),
			{ID: "nurse-1", FirstName: "Tom", LastName: "Reed", Role: "Nurse"},
		},
		patients: []emr.Patient{
			{ID: "p-1", PatientID: "REG-100", FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"},
		},
		created: &emr.Appointment{ID: "appt-1", ProviderID: "doc-1", ScheduledAt: "2024-07-15T09:00:00"},
	}
	recorder := &mockRecorder{}
	notifier := &mockNotifier{}
	store := NewMemoryStore()
	eng := NewEngine(EngineConfig{
		Gateway:  gw,
		Store:    store,
		Logger:   logging.New("error"),
		Recorder: recorder,
		Notifier: notifier,
		Now:      func() time.Time { return testNow },
	})

	st := advanceToDoctorStep(t, eng)

	// The non-clinician record must not be offered.
	last := st.Messages[len(st.Messages)-1]
	require.Len(t, last.Doctors, 1)
	assert.Equal(t, "doc-1", last.Doctors[0].ID)

	st = advanceToRegistration(t, eng, st)

	st, err := eng.Handle(context.Background(), st.ID, Event{Kind: EventSubmitRegistration, Value: "jane doe"})
	require.NoError(t, err)

	assert.Equal(t, StepIdle, st.Step)
	assert.True(t, st.Selection.Empty(), "selection should reset after booking")
	assert.Equal(t, 1, gw.createCalls)
	assert.Equal(t, []string{"appt-1"}, recorder.booked)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "jane@example.com", notifier.sent[0].Patient.Email)

	// Success turn carries the appointment, followed by the rebook prompt.
	rebook := st.Messages[len(st.Messages)-1]
	assert.Equal(t, AffordanceRebookPrompt, rebook.Affordance)
	success := st.Messages[len(st.Messages)-2]
	require.NotNil(t, success.Appointment)
	assert.Equal(t, "appt-1", success.Appointment.ID)
	assert.Contains(t, success.Text, "Dr. Sarah Chen")
}

func TestBookingWindowDaysExtendsSlotOffer(t *testing.T) {
	gw := &mockGateway{staff: []emr.StaffRecord{testDoctor()}}
	eng := NewEngine(EngineConfig{
		Gateway:           gw,
		Store:             NewMemoryStore(),
		Logger:            logging.New("error"),
		Now:               func() time.Time { return testNow },
		BookingWindowDays: 14,
	})

	st := advanceToDoctorStep(t, eng)
	st, err := eng.Handle(context.Background(), st.ID, Event{Kind: EventPickDoctor, Value: "doc-1"})
	require.NoError(t, err)

	// Dr. Chen works Mondays 09:00-11:00; a 14-day horizon reaches two
	// Mondays instead of the default window's one.
	require.Len(t, st.Selection.AvailableTimeSlots, 4)
	last := st.Messages[len(st.Messages)-1]
	assert.Contains(t, last.Text, "14 days")
}

func TestBookingUsesDefaultDepartmentFallback(t *testing.T) {
	doctor := testDoctor()
	doctor.Department = ""
	gw := &mockGateway{
		staff:    []emr.StaffRecord{doctor},
		patients: []emr.Patient{{ID: "p-1", PatientID: "REG-100", FirstName: "Jane", LastName: "Doe"}},
		created:  &emr.Appointment{ID: "appt-2", ProviderID: "doc-1", ScheduledAt: "2024-07-15T09:00:00"},
	}
	eng := NewEngine(EngineConfig{
		Gateway:           gw,
		Store:             NewMemoryStore(),
		Logger:            logging.New("error"),
		Now:               func() time.Time { return testNow },
		DefaultDepartment: "General Medicine",
	})

	st := advanceToRegistration(t, eng, advanceToDoctorStep(t, eng))
	_, err := eng.Handle(context.Background(), st.ID, Event{Kind: EventSubmitRegistration, Value: "jane doe"})
	require.NoError(t, err)

	require.Equal(t, 1, gw.createCalls)
	assert.Equal(t, "General Medicine", gw.createReq.Department)
}

func TestBookingKeepsProviderDepartment(t *testing.T) {
	gw := &mockGateway{
		staff:    []emr.StaffRecord{testDoctor()},
		patients: []emr.Patient{{ID: "p-1", PatientID: "REG-100", FirstName: "Jane", LastName: "Doe"}},
		created:  &emr.Appointment{ID: "appt-3", ProviderID: "doc-1", ScheduledAt: "2024-07-15T09:00:00"},
	}
	eng := NewEngine(EngineConfig{
		Gateway:           gw,
		Store:             NewMemoryStore(),
		Logger:            logging.New("error"),
		Now:               func() time.Time { return testNow },
		DefaultDepartment: "General Medicine",
	})

	st := advanceToRegistration(t, eng, advanceToDoctorStep(t, eng))
	_, err := eng.Handle(context.Background(), st.ID, Event{Kind: EventSubmitRegistration, Value: "jane doe"})
	require.NoError(t, err)

	assert.Equal(t, "Cardiology", gw.createReq.Department, "the provider's own department wins over the fallback")
}

func TestSlotConflictReoffersCachedSlots(t *testing.T) {
	gw := &mockGateway{
		staff: []emr.StaffRecord{testDoctor()},
		appointments: []emr.Appointment{
			{ID: "busy", ScheduledAt: "2024-07-15T09:00:00"},
		},
	}
	eng, _ := newTestEngine(gw)
	st := advanceToDoctorStep(t, eng)

	st, err := eng.Handle(context.Background(), st.ID, Event{Kind: EventPickDoctor, Value: "doc-1"})
	require.NoError(t, err)
	slots := st.Selection.AvailableTimeSlots

	st, err = eng.Handle(context.Background(), st.ID, Event{Kind: EventPickSlot, Value: slots[0].DateTime})
	require.NoError(t, err)

	assert.Equal(t, StepTimeSlot, st.Step)
	assert.Nil(t, st.Selection.TimeSlot)
	last := st.Messages[len(st.Messages)-1]
	assert.Equal(t, AffordanceTimeSlots, last.Affordance)
	assert.Len(t, last.TimeSlots, len(slots), "cached slots are re-offered without refetching")

	// A different slot on the same day does not conflict.
	st, err = eng.Handle(context.Background(), st.ID, Event{Kind: EventPickSlot, Value: slots[1].DateTime})
	require.NoError(t, err)
	assert.Equal(t, StepRegistration, st.Step)
	require.NotNil(t, st.Selection.TimeSlot)
	assert.Equal(t, slots[1].DateTime, st.Selection.TimeSlot.DateTime)
}

func TestRegistrationNoMatchThenExit(t *testing.T) {
	gw := &mockGateway{
		staff:    []emr.StaffRecord{testDoctor()},
		patients: []emr.Patient{{ID: "p-2", FirstName: "Alan", LastName: "Smith"}},
	}
	eng, _ := newTestEngine(gw)
	st := advanceToRegistration(t, eng, advanceToDoctorStep(t, eng))

	st, err := eng.Handle(context.Background(), st.ID, Event{Kind: EventSubmitRegistration, Value: "nobody here"})
	require.NoError(t, err)

	assert.Equal(t, StepRegistration, st.Step)
	assert.Equal(t, 0, gw.createCalls)
	last := st.Messages[len(st.Messages)-1]
	assert.Equal(t, AffordanceRetryOptions, last.Affordance)
	assert.Contains(t, last.Options, "Exit")

	st, err = eng.Handle(context.Background(), st.ID, Event{Kind: EventExit})
	require.NoError(t, err)
	assert.Equal(t, StepCategory, st.Step)
	assert.True(t, st.Selection.Empty())
}

func TestGatewayErrorKeepsStepWithoutRetry(t *testing.T) {
	gw := &mockGateway{staffErr: errors.New("upstream down")}
	eng, _ := newTestEngine(gw)
	ctx := context.Background()

	st, err := eng.Start(ctx)
	require.NoError(t, err)
	st, err = eng.Handle(ctx, st.ID, Event{Kind: EventStartBooking})
	require.NoError(t, err)
	st, err = eng.Handle(ctx, st.ID, Event{Kind: EventPickCategory, Value: "Primary Care"})
	require.NoError(t, err)

	st, err = eng.Handle(ctx, st.ID, Event{Kind: EventPickSubSpecialty, Value: "General Practitioner"})
	require.NoError(t, err)

	assert.Equal(t, StepSubSpecialty, st.Step, "failed fetch leaves the step unchanged")
	assert.Equal(t, 1, gw.searchStaffCalls, "no automatic retry")
	last := st.Messages[len(st.Messages)-1]
	assert.Contains(t, last.Text, "sorry")
}

func TestBookingFailureClearsSlotOnly(t *testing.T) {
	gw := &mockGateway{
		staff:     []emr.StaffRecord{testDoctor()},
		patients:  []emr.Patient{{ID: "p-1", PatientID: "REG-100", FirstName: "Jane", LastName: "Doe"}},
		createErr: errors.New("emr rejected booking"),
	}
	eng, _ := newTestEngine(gw)
	st := advanceToRegistration(t, eng, advanceToDoctorStep(t, eng))

	st, err := eng.Handle(context.Background(), st.ID, Event{Kind: EventSubmitRegistration, Value: "REG-100"})
	require.NoError(t, err)

	assert.Equal(t, 1, gw.createCalls, "booking is never retried")
	assert.Equal(t, StepTimeSlot, st.Step)
	assert.Nil(t, st.Selection.TimeSlot)
	require.NotNil(t, st.Selection.Doctor, "doctor choice survives a failed booking")
	last := st.Messages[len(st.Messages)-1]
	assert.Equal(t, AffordanceTimeSlots, last.Affordance)
	assert.NotEmpty(t, last.TimeSlots)
}

func TestStaleResponseDiscarded(t *testing.T) {
	gw := &mockGateway{staff: []emr.StaffRecord{testDoctor()}}
	store := NewMemoryStore()
	eng := NewEngine(EngineConfig{
		Gateway: gw,
		Store:   store,
		Logger:  logging.New("error"),
		Now:     func() time.Time { return testNow },
	})
	ctx := context.Background()

	st, err := eng.Start(ctx)
	require.NoError(t, err)
	st, err = eng.Handle(ctx, st.ID, Event{Kind: EventStartBooking})
	require.NoError(t, err)
	st, err = eng.Handle(ctx, st.ID, Event{Kind: EventPickCategory, Value: "Medical Specialties"})
	require.NoError(t, err)

	// While the staff fetch is in flight the user goes back, which bumps
	// the generation and must invalidate the in-flight result.
	id := st.ID
	gw.onSearchStaff = func() {
		cur, lerr := store.Load(ctx, id)
		require.NoError(t, lerr)
		moved := reduceGoBack(*cur, testNow)
		require.NoError(t, store.Save(ctx, &moved))
	}

	st, err = eng.Handle(ctx, id, Event{Kind: EventPickSubSpecialty, Value: "Cardiologist"})
	require.NoError(t, err)

	assert.Equal(t, StepCategory, st.Step, "the go-back wins; the late doctor list is dropped")
	assert.Empty(t, st.Selection.AvailableDoctors)
	last := st.Messages[len(st.Messages)-1]
	assert.NotEqual(t, AffordanceDoctors, last.Affordance)
}

func TestPrescriptionSearchLeavesBookingStep(t *testing.T) {
	gw := &mockGateway{
		staff: []emr.StaffRecord{testDoctor()},
		rx: []emr.Prescription{
			{ID: "rx-1", PatientName: "Jane Doe", Diagnosis: "Hypertension"},
		},
	}
	eng, _ := newTestEngine(gw)
	st := advanceToDoctorStep(t, eng)

	st, err := eng.Handle(context.Background(), st.ID, Event{Kind: EventSearchPrescriptions, Value: "jane"})
	require.NoError(t, err)

	assert.Equal(t, StepDoctor, st.Step, "prescription search must not disturb the booking flow")
	last := st.Messages[len(st.Messages)-1]
	assert.Equal(t, AffordancePrescriptions, last.Affordance)
	require.Len(t, last.Prescriptions, 1)
	assert.Equal(t, "rx-1", last.Prescriptions[0].ID)
}

func TestGoBackRestoresCachedOptions(t *testing.T) {
	gw := &mockGateway{staff: []emr.StaffRecord{testDoctor()}}
	eng, _ := newTestEngine(gw)
	st := advanceToDoctorStep(t, eng)

	st, err := eng.Handle(context.Background(), st.ID, Event{Kind: EventPickDoctor, Value: "doc-1"})
	require.NoError(t, err)
	require.Equal(t, StepTimeSlot, st.Step)

	staffCallsBefore := gw.searchStaffCalls
	st, err = eng.Handle(context.Background(), st.ID, Event{Kind: EventGoBack})
	require.NoError(t, err)

	assert.Equal(t, StepDoctor, st.Step)
	assert.Nil(t, st.Selection.Doctor)
	assert.Equal(t, staffCallsBefore, gw.searchStaffCalls, "going back reuses cached doctors")
	last := st.Messages[len(st.Messages)-1]
	assert.Equal(t, AffordanceDoctors, last.Affordance)
	assert.NotEmpty(t, last.Doctors)
}

func TestUnexpectedEventIsRejected(t *testing.T) {
	eng, _ := newTestEngine(&mockGateway{})
	ctx := context.Background()

	st, err := eng.Start(ctx)
	require.NoError(t, err)

	st, err = eng.Handle(ctx, st.ID, Event{Kind: EventPickSlot, Value: "2024-07-15T09:00:00"})
	require.NoError(t, err)

	assert.Equal(t, StepIdle, st.Step)
	last := st.Messages[len(st.Messages)-1]
	assert.Contains(t, last.Text, "didn't quite catch")
}

func TestResetStartsOver(t *testing.T) {
	gw := &mockGateway{staff: []emr.StaffRecord{testDoctor()}}
	eng, _ := newTestEngine(gw)
	st := advanceToDoctorStep(t, eng)
	priorGen := st.Generation

	st, err := eng.Handle(context.Background(), st.ID, Event{Kind: EventReset})
	require.NoError(t, err)

	assert.Equal(t, StepIdle, st.Step)
	assert.True(t, st.Selection.Empty())
	require.Len(t, st.Messages, 1)
	assert.Greater(t, st.Generation, priorGen, "reset invalidates in-flight responses")
}
