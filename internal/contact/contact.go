// Package contact forwards contact-form submissions to the form service.
package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/etk18/portfolio/internal/config"
)

var (
	// ErrInvalidSubmission is returned for missing or malformed fields.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrNotConfigured is returned when no access key is set.
	ErrNotConfigured = errors.New("contact form not configured")
	// ErrDeliveryFailed is returned when the form service rejects the message.
	ErrDeliveryFailed = errors.New("contact delivery failed")
)

const (
	fromName     = "Portfolio Website"
	maxFieldLen  = 5000
	maxReplyBody = 64 << 10
)

// Submission is one contact-form entry.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Validate trims the fields and checks they are present and sane.
func (s *Submission) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.TrimSpace(s.Email)
	s.Subject = strings.TrimSpace(s.Subject)
	s.Message = strings.TrimSpace(s.Message)

	switch {
	case s.Name == "", s.Email == "", s.Subject == "", s.Message == "":
		return fmt.Errorf("%w: all fields are required", ErrInvalidSubmission)
	case len(s.Name) > maxFieldLen, len(s.Subject) > maxFieldLen, len(s.Message) > maxFieldLen:
		return fmt.Errorf("%w: field too long", ErrInvalidSubmission)
	}
	if _, err := mail.ParseAddress(s.Email); err != nil {
		return fmt.Errorf("%w: invalid email", ErrInvalidSubmission)
	}
	return nil
}

// Client posts submissions to a Web3Forms-compatible endpoint.
type Client struct {
	endpoint  string
	accessKey string
	http      *http.Client
}

// New builds a Client from configuration.
func New(cfg config.ContactConfig) *Client {
	return &Client{
		endpoint:  cfg.Endpoint,
		accessKey: cfg.AccessKey,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

type formResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Send validates and forwards s.
func (c *Client) Send(ctx context.Context, s Submission) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if c.accessKey == "" || c.endpoint == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(map[string]string{
		"access_key":   c.accessKey,
		"subject":      "Portfolio Contact: " + s.Subject,
		"from_name":    fromName,
		"replyto":      s.Email,
		"Sender Name":  s.Name,
		"Sender Email": s.Email,
		"Subject":      s.Subject,
		"Message":      s.Message,
	})
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	var result formResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBody)).Decode(&result); err != nil {
		return fmt.Errorf("%w: status %d: decode response: %v", ErrDeliveryFailed, resp.StatusCode, err)
	}
	if !result.Success {
		return fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, resp.StatusCode, result.Message)
	}
	return nil
}
