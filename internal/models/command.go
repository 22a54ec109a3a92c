package models

import (
	"time"

	"github.com/benmeehan/link-failover/internal/constants"
)

// CommandRecord is the last explicit command issued through the broker.
type CommandRecord struct {
	Action         constants.Action `json:"action"`
	IssuedAt       time.Time        `json:"issued_at"`
	Acknowledged   bool             `json:"acknowledged"`
	AcknowledgedAt *time.Time       `json:"acknowledged_at,omitempty"`
}

// SecretRequest is the body of the command and acknowledge endpoints.
type SecretRequest struct {
	Secret string `json:"secret"`
}

// CommandResponse acknowledges an issued command.
type CommandResponse struct {
	Success bool             `json:"success"`
	Action  constants.Action `json:"action"`
	Message string           `json:"message"`
}

// AckResponse is returned by POST /api/acknowledge.
type AckResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx broker reply.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
