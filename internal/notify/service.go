package notify

import (
	"context"
	"fmt"

	"github.com/curasoft/emr-assist/internal/conversation"
	"github.com/curasoft/emr-assist/pkg/logging"
)

// Service sends patient-facing notifications for the booking flow.
type Service struct {
	email      EmailSender
	clinicName string
	logger     *logging.Logger
}

// NewService creates a notification service. A nil email sender disables
// delivery; callers don't need to special-case it.
func NewService(email EmailSender, clinicName string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if clinicName == "" {
		clinicName = "Cura Clinic"
	}
	return &Service{email: email, clinicName: clinicName, logger: logger}
}

// SendBookingConfirmation emails the patient their appointment details.
// Failures are reported to the caller but must never unwind a booking that
// already succeeded.
func (s *Service) SendBookingConfirmation(ctx context.Context, c conversation.BookingConfirmation) error {
	if s.email == nil {
		s.logger.Debug("notify: email disabled, skipping booking confirmation")
		return nil
	}
	if c.Patient.Email == "" {
		return nil
	}

	patientName := c.Patient.FirstName + " " + c.Patient.LastName
	subject := fmt.Sprintf("Your appointment with Dr. %s is confirmed", c.Doctor.FullName())
	body := fmt.Sprintf(`Hi %s,

Your appointment is confirmed.

Doctor: Dr. %s (%s)
When: %s
Department: %s

If you need to reschedule, please contact the clinic.

— %s`, c.Patient.FirstName, c.Doctor.FullName(), c.Doctor.SubSpecialty, c.SlotDisplay, c.Doctor.Department, s.clinicName)

	msg := EmailMessage{
		To:      c.Patient.Email,
		ToName:  patientName,
		Subject: subject,
		Body:    body,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: booking confirmation: %w", err)
	}
	s.logger.Info("notify: booking confirmation sent", "to", c.Patient.Email, "provider_id", c.Doctor.ID)
	return nil
}

var _ conversation.ConfirmationSender = (*Service)(nil)
