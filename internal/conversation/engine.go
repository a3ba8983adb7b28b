package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/curasoft/emr-assist/internal/emr"
	"github.com/curasoft/emr-assist/internal/observability/metrics"
	"github.com/curasoft/emr-assist/internal/schedule"
	"github.com/curasoft/emr-assist/pkg/logging"
)

// Recorder captures session lifecycle events for analytics. Implementations
// must tolerate best-effort calls; failures never affect the flow.
type Recorder interface {
	SessionStarted(ctx context.Context, conversationID string) error
	AppointmentBooked(ctx context.Context, conversationID, appointmentID string) error
	PrescriptionSearched(ctx context.Context, conversationID string) error
}

// BookingConfirmation carries what a confirmation notice needs.
type BookingConfirmation struct {
	Patient     emr.Patient
	Doctor      emr.StaffRecord
	SlotDisplay string
}

// ConfirmationSender delivers a booking confirmation to the patient.
type ConfirmationSender interface {
	SendBookingConfirmation(ctx context.Context, c BookingConfirmation) error
}

// Engine drives conversations: it owns all gateway I/O and applies the pure
// reducers under a per-conversation lock. External calls happen outside the
// lock; a generation token detects responses that arrive after the step has
// moved on, and such responses are discarded instead of being applied.
type Engine struct {
	gateway  emr.Gateway
	store    Store
	logger   *logging.Logger
	metrics  *metrics.ConversationMetrics
	recorder Recorder
	notifier ConfirmationSender
	classify RoleClassifier
	conflict schedule.ConflictPolicy
	window   int
	dept     string
	now      func() time.Time
	tracer   trace.Tracer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// EngineConfig holds engine dependencies. Gateway and Store are required.
type EngineConfig struct {
	Gateway  emr.Gateway
	Store    Store
	Logger   *logging.Logger
	Metrics  *metrics.ConversationMetrics
	Recorder Recorder
	Notifier ConfirmationSender
	Classify RoleClassifier          // defaults to DoctorLike
	Conflict schedule.ConflictPolicy // defaults to schedule.ClockConflict
	Now      func() time.Time

	// BookingWindowDays is the slot horizon offered to patients;
	// schedule.DefaultWindowDays when zero.
	BookingWindowDays int

	// DefaultDepartment is used on bookings when the provider record
	// carries no department of its own.
	DefaultDepartment string
}

// NewEngine constructs a conversation engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Gateway == nil {
		panic("conversation: gateway required")
	}
	if cfg.Store == nil {
		panic("conversation: store required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Classify == nil {
		cfg.Classify = DoctorLike
	}
	if cfg.Conflict == nil {
		cfg.Conflict = schedule.ClockConflict
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.BookingWindowDays <= 0 {
		cfg.BookingWindowDays = schedule.DefaultWindowDays
	}
	return &Engine{
		gateway:  cfg.Gateway,
		store:    cfg.Store,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		recorder: cfg.Recorder,
		notifier: cfg.Notifier,
		classify: cfg.Classify,
		conflict: cfg.Conflict,
		window:   cfg.BookingWindowDays,
		dept:     cfg.DefaultDepartment,
		now:      cfg.Now,
		tracer:   otel.Tracer("emrassist.internal.conversation"),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Start opens a new conversation with the welcome turn.
func (e *Engine) Start(ctx context.Context) (*State, error) {
	ctx, span := e.tracer.Start(ctx, "conversation.start")
	defer span.End()

	st := NewState(uuid.NewString(), e.now())
	if err := e.store.Save(ctx, &st); err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.metrics.ObserveStarted()
	if e.recorder != nil {
		if err := e.recorder.SessionStarted(ctx, st.ID); err != nil {
			e.logger.Warn("conversation: failed to record session start", "error", err, "conversation_id", st.ID)
		}
	}

	e.logger.Info("conversation started", "conversation_id", st.ID)
	return &st, nil
}

// Get returns the current state of a conversation.
func (e *Engine) Get(ctx context.Context, id string) (*State, error) {
	return e.store.Load(ctx, id)
}

// Handle applies one user event to a conversation and returns the updated
// state. Gateway failures surface as an apology turn with the step
// unchanged; nothing is retried automatically.
func (e *Engine) Handle(ctx context.Context, id string, ev Event) (*State, error) {
	ctx, span := e.tracer.Start(ctx, "conversation.handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", id),
		attribute.String("conversation.event", string(ev.Kind)),
	)

	switch ev.Kind {
	case EventStartBooking:
		return e.simple(ctx, id, ev, func(st State, at time.Time) State {
			if st.Step != StepIdle {
				return reduceUnexpectedEvent(st, at)
			}
			return reduceBookingStarted(st, at)
		})
	case EventFindPrescriptions:
		return e.simple(ctx, id, ev, reducePrescriptionPrompt)
	case EventPickCategory:
		return e.simple(ctx, id, ev, func(st State, at time.Time) State {
			if st.Step != StepCategory {
				return reduceUnexpectedEvent(st, at)
			}
			return reduceCategoryPicked(st, ev.Value, at)
		})
	case EventPickSubSpecialty:
		return e.handleSubSpecialty(ctx, id, ev)
	case EventPickDoctor:
		return e.simple(ctx, id, ev, func(st State, at time.Time) State {
			if st.Step != StepDoctor {
				return reduceUnexpectedEvent(st, at)
			}
			doctor, ok := findDoctor(st.Selection.AvailableDoctors, ev.Value)
			if !ok {
				return reduceUnexpectedEvent(st, at)
			}
			return reduceSlotsGenerated(st, doctor, schedule.Generate(doctor, at, e.window), e.window, at)
		})
	case EventPickSlot:
		return e.handleSlot(ctx, id, ev)
	case EventSubmitRegistration:
		return e.handleRegistration(ctx, id, ev)
	case EventSearchPrescriptions:
		return e.handlePrescriptionSearch(ctx, id, ev)
	case EventGoBack:
		return e.simple(ctx, id, ev, reduceGoBack)
	case EventExit:
		return e.simple(ctx, id, ev, func(st State, at time.Time) State {
			if st.Step != StepRegistration && st.Step != StepConfirmation {
				return reduceGoBack(st, at)
			}
			return reduceExit(st, at)
		})
	case EventReset:
		return e.simple(ctx, id, ev, reduceReset)
	default:
		return nil, fmt.Errorf("conversation: unknown event kind %q", ev.Kind)
	}
}

// AppendExchange records a free-form user turn and the assistant's reply.
// The booking step is untouched; free-form chat runs alongside the
// structured flow.
func (e *Engine) AppendExchange(ctx context.Context, id, userText, replyText string) (*State, error) {
	return e.mutate(ctx, id, func(st State, at time.Time) State {
		st = reduceUserTurn(st, userText, at)
		return advance(st, st.Step, at, newMessage(RoleAssistant, replyText, at))
	})
}

// simple runs a transition with no external I/O under the conversation lock.
func (e *Engine) simple(ctx context.Context, id string, ev Event, reduce func(State, time.Time) State) (*State, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	at := e.now()
	next := reduce(reduceUserTurn(*st, userText(*st, ev), at), at)
	if err := e.store.Save(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// handleSubSpecialty fetches matching doctors outside the lock, then
// commits the result only if the conversation has not moved on.
func (e *Engine) handleSubSpecialty(ctx context.Context, id string, ev Event) (*State, error) {
	st, gen, err := e.begin(ctx, id, ev)
	if err != nil {
		return nil, err
	}
	if st.Step != StepSubSpecialty {
		return e.mutate(ctx, id, reduceUnexpectedEvent)
	}

	staff, fetchErr := e.gateway.SearchStaff(ctx, st.Selection.Category, ev.Value)

	return e.commit(ctx, id, gen, func(cur State, at time.Time) State {
		if fetchErr != nil {
			e.logger.Error("conversation: doctor search failed", "error", fetchErr, "conversation_id", id)
			e.metrics.ObserveGatewayError("search_staff")
			return reduceGatewayError(cur, at)
		}
		doctors := make([]emr.StaffRecord, 0, len(staff))
		for _, s := range staff {
			if e.classify(s) {
				doctors = append(doctors, s)
			}
		}
		return reduceDoctorsLoaded(cur, ev.Value, doctors, at)
	})
}

// handleSlot checks the candidate against the provider's existing
// appointments for that date before accepting it.
func (e *Engine) handleSlot(ctx context.Context, id string, ev Event) (*State, error) {
	st, gen, err := e.begin(ctx, id, ev)
	if err != nil {
		return nil, err
	}
	if st.Step != StepTimeSlot || st.Selection.Doctor == nil {
		return e.mutate(ctx, id, reduceUnexpectedEvent)
	}
	slot, ok := findSlot(st.Selection.AvailableTimeSlots, ev.Value)
	if !ok {
		return e.mutate(ctx, id, reduceUnexpectedEvent)
	}

	when := slot.When()
	existing, fetchErr := e.gateway.ListAppointments(ctx, st.Selection.Doctor.ID, when.Format("2006-01-02"))

	return e.commit(ctx, id, gen, func(cur State, at time.Time) State {
		if fetchErr != nil {
			e.logger.Error("conversation: conflict check failed", "error", fetchErr, "conversation_id", id)
			e.metrics.ObserveGatewayError("list_appointments")
			return reduceGatewayError(cur, at)
		}
		if schedule.HasConflict(existing, when, e.conflict) {
			e.metrics.ObserveSlotConflict()
			return reduceSlotConflict(cur, slot, at)
		}
		return reduceSlotAccepted(cur, slot, at)
	})
}

// handleRegistration verifies the patient and, on a match, books the
// appointment. The create call is never retried: without an idempotency
// key a retry could double-book.
func (e *Engine) handleRegistration(ctx context.Context, id string, ev Event) (*State, error) {
	st, gen, err := e.begin(ctx, id, ev)
	if err != nil {
		return nil, err
	}
	if st.Step != StepRegistration || st.Selection.Doctor == nil || st.Selection.TimeSlot == nil {
		return e.mutate(ctx, id, reduceUnexpectedEvent)
	}

	patients, fetchErr := e.gateway.SearchPatients(ctx, ev.Value)

	var patient emr.Patient
	matched := false
	next, err := e.commit(ctx, id, gen, func(cur State, at time.Time) State {
		if fetchErr != nil {
			e.logger.Error("conversation: patient lookup failed", "error", fetchErr, "conversation_id", id)
			e.metrics.ObserveGatewayError("search_patients")
			return reduceGatewayError(cur, at)
		}
		patient, matched = MatchPatient(patients, ev.Value)
		if !matched {
			return reducePatientNotFound(cur, at)
		}
		return reducePatientMatched(cur, patient, ev.Value, at)
	})
	if err != nil || !matched || next.Step != StepConfirmation {
		return next, err
	}

	return e.book(ctx, next, patient)
}

// book issues the single non-idempotent call of the whole flow.
func (e *Engine) book(ctx context.Context, st *State, patient emr.Patient) (*State, error) {
	doctor := *st.Selection.Doctor
	slot := *st.Selection.TimeSlot
	gen := st.Generation

	dept := doctor.Department
	if dept == "" {
		dept = e.dept
	}
	created, bookErr := e.gateway.CreateAppointment(ctx, emr.CreateAppointmentRequest{
		PatientID:       patient.ID,
		ProviderID:      doctor.ID,
		Title:           fmt.Sprintf("Consultation with Dr. %s", doctor.FullName()),
		Description:     fmt.Sprintf("Booked via chat assistant for %s %s", patient.FirstName, patient.LastName),
		AppointmentDate: slot.When().Format("2006-01-02"),
		ScheduledAt:     slot.DateTime,
		Duration:        60,
		Type:            "consultation",
		Department:      dept,
	})

	next, err := e.commit(ctx, st.ID, gen, func(cur State, at time.Time) State {
		if bookErr != nil {
			e.logger.Error("conversation: booking failed", "error", bookErr, "conversation_id", st.ID)
			e.metrics.ObserveGatewayError("create_appointment")
			return reduceBookingFailed(cur, at)
		}
		return reduceBookingSucceeded(cur, created, at)
	})
	if err != nil || bookErr != nil {
		return next, err
	}

	e.metrics.ObserveBooked()
	if e.recorder != nil && created != nil {
		if rerr := e.recorder.AppointmentBooked(ctx, st.ID, created.ID); rerr != nil {
			e.logger.Warn("conversation: failed to record booking", "error", rerr, "conversation_id", st.ID)
		}
	}
	if e.notifier != nil && patient.Email != "" {
		if nerr := e.notifier.SendBookingConfirmation(ctx, BookingConfirmation{
			Patient:     patient,
			Doctor:      doctor,
			SlotDisplay: slot.Display,
		}); nerr != nil {
			e.logger.Warn("conversation: confirmation email failed", "error", nerr, "conversation_id", st.ID)
		}
	}
	e.logger.Info("appointment booked",
		"conversation_id", st.ID,
		"provider_id", doctor.ID,
		"scheduled_at", slot.DateTime,
	)
	return next, nil
}

// handlePrescriptionSearch runs the parallel sub-flow; the booking step is
// never touched.
func (e *Engine) handlePrescriptionSearch(ctx context.Context, id string, ev Event) (*State, error) {
	_, gen, err := e.begin(ctx, id, ev)
	if err != nil {
		return nil, err
	}

	results, fetchErr := e.gateway.SearchPrescriptions(ctx, ev.Value)

	next, err := e.commit(ctx, id, gen, func(cur State, at time.Time) State {
		if fetchErr != nil {
			e.logger.Error("conversation: prescription search failed", "error", fetchErr, "conversation_id", id)
			e.metrics.ObserveGatewayError("search_prescriptions")
			return reduceGatewayError(cur, at)
		}
		return reducePrescriptionsFound(cur, ev.Value, results, at)
	})
	if err == nil && fetchErr == nil && e.recorder != nil {
		if rerr := e.recorder.PrescriptionSearched(ctx, id); rerr != nil {
			e.logger.Warn("conversation: failed to record prescription search", "error", rerr, "conversation_id", id)
		}
	}
	return next, err
}

// begin appends the user's turn under the lock and returns a snapshot plus
// the generation token to validate against after external I/O.
func (e *Engine) begin(ctx context.Context, id string, ev Event) (*State, uint64, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, 0, err
	}

	next := reduceUserTurn(*st, userText(*st, ev), e.now())
	if err := e.store.Save(ctx, &next); err != nil {
		return nil, 0, err
	}
	return &next, next.Generation, nil
}

// commit applies a reducer if and only if the conversation generation still
// matches the token captured before I/O. A mismatch means the user moved on
// while the call was in flight; the late result is dropped.
func (e *Engine) commit(ctx context.Context, id string, gen uint64, reduce func(State, time.Time) State) (*State, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Generation != gen {
		e.logger.Info("conversation: discarding stale response",
			"conversation_id", id,
			"expected_generation", gen,
			"current_generation", st.Generation,
		)
		e.metrics.ObserveStaleDiscarded()
		return st, nil
	}

	next := reduce(*st, e.now())
	if err := e.store.Save(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// mutate applies a reducer unconditionally (no pending I/O to invalidate).
func (e *Engine) mutate(ctx context.Context, id string, reduce func(State, time.Time) State) (*State, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	next := reduce(*st, e.now())
	if err := e.store.Save(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

func (e *Engine) lockFor(id string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	return lock
}

func findDoctor(doctors []emr.StaffRecord, id string) (emr.StaffRecord, bool) {
	for _, d := range doctors {
		if d.ID == id {
			return d, true
		}
	}
	return emr.StaffRecord{}, false
}

func findSlot(slots []schedule.Slot, datetime string) (schedule.Slot, bool) {
	for _, s := range slots {
		if s.DateTime == datetime {
			return s, true
		}
	}
	return schedule.Slot{}, false
}

// userText renders the user's turn for the message log.
func userText(st State, ev Event) string {
	switch ev.Kind {
	case EventStartBooking:
		return "Book an appointment"
	case EventFindPrescriptions:
		return "Find prescriptions"
	case EventPickDoctor:
		if d, ok := findDoctor(st.Selection.AvailableDoctors, ev.Value); ok {
			return "Dr. " + d.FullName()
		}
		return ev.Value
	case EventPickSlot:
		if s, ok := findSlot(st.Selection.AvailableTimeSlots, ev.Value); ok {
			return s.Display
		}
		return ev.Value
	case EventGoBack:
		return "Go back"
	case EventExit:
		return "Exit"
	case EventReset:
		return "Start over"
	default:
		return ev.Value
	}
}
