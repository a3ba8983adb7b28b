// Package rest implements emr.Gateway against the Cura EMR REST API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/curasoft/emr-assist/internal/emr"
)

// Client talks to the EMR backend over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	orgID      string
	httpClient *http.Client
}

// Config holds configuration for the EMR REST client.
type Config struct {
	BaseURL string
	APIKey  string // optional bearer token
	OrgID   string // tenant scoping, sent as X-Org-Id when set
	Timeout time.Duration
}

// New creates an EMR REST client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("emr: BaseURL is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		orgID:   cfg.OrgID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SearchStaff retrieves staff filtered by specialty category and sub-specialty.
// GET /api/medical-staff?specialty=<cat>&subSpecialty=<sub>
func (c *Client) SearchStaff(ctx context.Context, specialty, subSpecialty string) ([]emr.StaffRecord, error) {
	params := url.Values{}
	if specialty != "" {
		params.Set("specialty", specialty)
	}
	if subSpecialty != "" {
		params.Set("subSpecialty", subSpecialty)
	}

	var payload struct {
		Staff []emr.StaffRecord `json:"staff"`
	}
	if err := c.get(ctx, "/api/medical-staff", params, &payload); err != nil {
		return nil, fmt.Errorf("emr: staff search failed: %w", err)
	}
	return payload.Staff, nil
}

// ListAppointments retrieves a provider's appointments for one date.
// GET /api/appointments?providerId=<id>&date=<yyyy-MM-dd>
func (c *Client) ListAppointments(ctx context.Context, providerID, date string) ([]emr.Appointment, error) {
	params := url.Values{}
	params.Set("providerId", providerID)
	params.Set("date", date)

	var appointments []emr.Appointment
	if err := c.get(ctx, "/api/appointments", params, &appointments); err != nil {
		return nil, fmt.Errorf("emr: list appointments failed: %w", err)
	}
	return appointments, nil
}

// CreateAppointment books an appointment. Never retried by callers: the
// backend issues no idempotency key, so a retry could double-book.
// POST /api/appointments
func (c *Client) CreateAppointment(ctx context.Context, req emr.CreateAppointmentRequest) (*emr.Appointment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("emr: failed to encode appointment: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/appointments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("emr: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("emr: create appointment failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("emr: create appointment returned status %d: %s", resp.StatusCode, string(raw))
	}

	var created emr.Appointment
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("emr: failed to decode appointment: %w", err)
	}
	return &created, nil
}

// SearchPatients searches the patient directory.
// GET /api/patients?search=<text>
func (c *Client) SearchPatients(ctx context.Context, query string) ([]emr.Patient, error) {
	params := url.Values{}
	params.Set("search", query)

	var patients []emr.Patient
	if err := c.get(ctx, "/api/patients", params, &patients); err != nil {
		return nil, fmt.Errorf("emr: patient search failed: %w", err)
	}
	return patients, nil
}

// SearchPrescriptions searches prescriptions by free text.
// GET /api/prescriptions?search=<text>
func (c *Client) SearchPrescriptions(ctx context.Context, query string) ([]emr.Prescription, error) {
	params := url.Values{}
	params.Set("search", query)

	var prescriptions []emr.Prescription
	if err := c.get(ctx, "/api/prescriptions", params, &prescriptions); err != nil {
		return nil, fmt.Errorf("emr: prescription search failed: %w", err)
	}
	return prescriptions, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.orgID != "" {
		req.Header.Set("X-Org-Id", c.orgID)
	}
}
