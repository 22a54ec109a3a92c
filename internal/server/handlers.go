package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/benmeehan/link-failover/internal/broker"
	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/internal/models"
	"github.com/benmeehan/link-failover/internal/telemetry"
)

const maxBodyBytes = 64 << 10

func (s *Server) heartbeat(w http.ResponseWriter, r *http.Request) {
	var req models.HeartbeatRequest
	if err := decodeBody(w, r, &req, func(form func(string) string) {
		req.Secret = form("secret")
		req.Status = constants.Mode(form("status"))
		req.SourceID = form("source_id")
		req.Version = form("version")
	}); err != nil {
		s.fail(w, "heartbeat", err)
		return
	}

	record, err := s.relay.PushHeartbeat(r.Context(), req)
	if err != nil {
		s.fail(w, "heartbeat", err)
		return
	}

	telemetry.HeartbeatsTotal.WithLabelValues(string(record.Mode)).Inc()
	writeJSON(w, http.StatusOK, models.HeartbeatResponse{
		Success:   true,
		Timestamp: record.ReceivedAt,
		Status:    record.Mode,
	})
}

func (s *Server) command(action constants.Action) http.HandlerFunc {
	op := "command_" + string(action)
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.SecretRequest
		if err := decodeBody(w, r, &req, func(form func(string) string) {
			req.Secret = form("secret")
		}); err != nil {
			s.fail(w, op, err)
			return
		}

		if _, err := s.relay.PushCommand(r.Context(), req.Secret, action); err != nil {
			s.fail(w, op, err)
			return
		}

		telemetry.CommandsTotal.WithLabelValues(string(action)).Inc()
		writeJSON(w, http.StatusOK, models.CommandResponse{
			Success: true,
			Action:  action,
			Message: fmt.Sprintf("Hotspot %s command issued", action),
		})
	}
}

func (s *Server) acknowledge(w http.ResponseWriter, r *http.Request) {
	var req models.SecretRequest
	if err := decodeBody(w, r, &req, func(form func(string) string) {
		req.Secret = form("secret")
	}); err != nil {
		s.fail(w, "acknowledge", err)
		return
	}

	acked, err := s.relay.Acknowledge(r.Context(), req.Secret)
	if err != nil {
		s.fail(w, "acknowledge", err)
		return
	}

	message := "Command acknowledged"
	if !acked {
		message = "No pending command"
	}
	writeJSON(w, http.StatusOK, models.AckResponse{Success: true, Message: message})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	secret := r.URL.Query().Get("secret")
	if secret == "" {
		secret = r.Header.Get(constants.SecretHeader)
	}

	status, err := s.relay.GetStatus(r.Context(), secret)
	if err != nil {
		s.fail(w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// decodeBody accepts JSON, or form fields as sent by simple HTTP automation apps.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, fromForm func(func(string) string)) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("%w: %v", broker.ErrMalformed, err)
		}
		fromForm(r.PostForm.Get)
		return nil
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", broker.ErrMalformed, err)
	}
	return nil
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	code := http.StatusInternalServerError
	reason := "storage"
	message := "internal error"

	switch {
	case errors.Is(err, broker.ErrUnauthorized):
		code, reason, message = http.StatusForbidden, "unauthorized", "unauthorized"
	case errors.Is(err, broker.ErrMalformed):
		code, reason, message = http.StatusBadRequest, "malformed", err.Error()
	default:
		s.logger.Error().Err(err).Str("op", op).Msg("Request failed")
	}

	telemetry.RejectedTotal.WithLabelValues(op, reason).Inc()
	writeJSON(w, code, models.ErrorResponse{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
