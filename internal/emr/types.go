package emr

import (
	"context"
	"time"
)

// Gateway defines the interface to the upstream EMR backend. All reads are
// idempotent and safe to re-trigger; CreateAppointment is the only
// non-idempotent call and must never be retried automatically.
type Gateway interface {
	// SearchStaff returns staff filtered by specialty category and sub-specialty.
	SearchStaff(ctx context.Context, specialty, subSpecialty string) ([]StaffRecord, error)

	// ListAppointments returns a provider's appointments for a single date (yyyy-MM-dd).
	ListAppointments(ctx context.Context, providerID, date string) ([]Appointment, error)

	// CreateAppointment books an appointment in the EMR.
	CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (*Appointment, error)

	// SearchPatients searches the patient directory by free text.
	SearchPatients(ctx context.Context, query string) ([]Patient, error)

	// SearchPrescriptions searches prescriptions by free text.
	SearchPrescriptions(ctx context.Context, query string) ([]Prescription, error)
}

// WorkingHours is a provider's daily availability window ("HH:MM").
type WorkingHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// StaffRecord represents a staff member in the EMR directory.
type StaffRecord struct {
	ID           string       `json:"id"`
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName"`
	Role         string       `json:"role"`
	Specialty    string       `json:"medicalSpecialtyCategory"`
	SubSpecialty string       `json:"subSpecialty"`
	Department   string       `json:"department"`
	WorkingDays  []string     `json:"workingDays"`
	WorkingHours WorkingHours `json:"workingHours"`
}

// FullName returns the record's display name.
func (s StaffRecord) FullName() string {
	return s.FirstName + " " + s.LastName
}

// CreateAppointmentRequest is the booking payload accepted by the EMR.
type CreateAppointmentRequest struct {
	PatientID       string `json:"patientId"`
	ProviderID      string `json:"providerId"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	AppointmentDate string `json:"appointmentDate"` // yyyy-MM-dd
	ScheduledAt     string `json:"scheduledAt"`     // local ISO, no timezone
	Duration        int    `json:"duration"`        // minutes
	Type            string `json:"type"`
	Department      string `json:"department"`
	IsVirtual       bool   `json:"isVirtual"`
}

// Appointment represents a booked appointment in the EMR.
type Appointment struct {
	ID          string `json:"id"`
	PatientID   string `json:"patientId"`
	ProviderID  string `json:"providerId"`
	Title       string `json:"title"`
	ScheduledAt string `json:"scheduledAt"` // local ISO, no timezone
	Duration    int    `json:"duration"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Department  string `json:"department"`
}

// ScheduledTime parses the appointment's local timestamp.
func (a Appointment) ScheduledTime() (time.Time, bool) {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", time.RFC3339} {
		if t, err := time.Parse(layout, a.ScheduledAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Patient represents a patient directory entry. Looked up by fuzzy match,
// never mutated by the booking flow.
type Patient struct {
	ID         string `json:"id"`
	PatientID  string `json:"patientId"` // registration number
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	NationalID string `json:"nhsNumber"` // national health identifier
}

// Medication is a single entry on a prescription.
type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
}

// Prescription represents a prescription search result.
type Prescription struct {
	ID           string       `json:"id"`
	PatientName  string       `json:"patientName"`
	Medications  []Medication `json:"medications"`
	Diagnosis    string       `json:"diagnosis"`
	Status       string       `json:"status"`
	PrescribedAt string       `json:"prescribedAt"`
}
