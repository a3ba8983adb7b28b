// Package sessions records chat session analytics in Postgres. Recording is
// strictly best-effort from the conversation engine's point of view.
package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/curasoft/emr-assist/internal/conversation"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists session rows and daily aggregate counters.
type Repository struct {
	db  db
	now func() time.Time
}

// NewRepository creates a repository. The db can be a pgxpool.Pool or a
// mock in tests.
func NewRepository(db db) *Repository {
	if db == nil {
		panic("sessions: db required")
	}
	return &Repository{db: db, now: time.Now}
}

// SessionStarted inserts the session row and bumps the daily counter.
func (r *Repository) SessionStarted(ctx context.Context, conversationID string) error {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO chat_sessions (conversation_id) VALUES ($1) ON CONFLICT (conversation_id) DO NOTHING`,
		conversationID,
	); err != nil {
		return fmt.Errorf("sessions: insert session: %w", err)
	}
	return r.bumpDaily(ctx, "sessions")
}

// AppointmentBooked links the booked appointment to its session.
func (r *Repository) AppointmentBooked(ctx context.Context, conversationID, appointmentID string) error {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO chat_bookings (appointment_id, conversation_id) VALUES ($1, $2) ON CONFLICT (appointment_id) DO NOTHING`,
		appointmentID, conversationID,
	); err != nil {
		return fmt.Errorf("sessions: insert booking: %w", err)
	}
	if _, err := r.db.Exec(ctx,
		`UPDATE chat_sessions SET appointments_booked = appointments_booked + 1 WHERE conversation_id = $1`,
		conversationID,
	); err != nil {
		return fmt.Errorf("sessions: bump session bookings: %w", err)
	}
	return r.bumpDaily(ctx, "appointments")
}

// PrescriptionSearched bumps the prescription search counters.
func (r *Repository) PrescriptionSearched(ctx context.Context, conversationID string) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE chat_sessions SET prescription_searches = prescription_searches + 1 WHERE conversation_id = $1`,
		conversationID,
	); err != nil {
		return fmt.Errorf("sessions: bump session searches: %w", err)
	}
	return r.bumpDaily(ctx, "prescription_searches")
}

// DailyStats is the aggregate activity for one calendar day.
type DailyStats struct {
	Day                  time.Time `json:"day"`
	Sessions             int       `json:"sessions"`
	Appointments         int       `json:"appointments"`
	PrescriptionSearches int       `json:"prescriptionSearches"`
}

// StatsForDay returns the aggregate counters for a day; zeroes when no
// activity was recorded.
func (r *Repository) StatsForDay(ctx context.Context, day time.Time) (DailyStats, error) {
	stats := DailyStats{Day: day}
	err := r.db.QueryRow(ctx,
		`SELECT sessions, appointments, prescription_searches FROM chat_daily_stats WHERE day = $1`,
		day.Format("2006-01-02"),
	).Scan(&stats.Sessions, &stats.Appointments, &stats.PrescriptionSearches)
	if err != nil {
		if err == pgx.ErrNoRows {
			return stats, nil
		}
		return DailyStats{}, fmt.Errorf("sessions: select daily stats: %w", err)
	}
	return stats, nil
}

// bumpDaily upserts today's row and increments one counter. The column name
// is fixed at the call sites, never user input.
func (r *Repository) bumpDaily(ctx context.Context, column string) error {
	query := fmt.Sprintf(
		`INSERT INTO chat_daily_stats (day, %s) VALUES ($1, 1)
		 ON CONFLICT (day) DO UPDATE SET %s = chat_daily_stats.%s + 1`,
		column, column, column,
	)
	if _, err := r.db.Exec(ctx, query, r.now().Format("2006-01-02")); err != nil {
		return fmt.Errorf("sessions: bump daily %s: %w", column, err)
	}
	return nil
}

var _ conversation.Recorder = (*Repository)(nil)
