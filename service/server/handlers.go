package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"unicode"

	"github.com/brojonat/sendsol/service/session"
)

const (
	maxRequestBodySize = 1 << 10 // 1KB - a draft is two short strings
	maxFieldLength     = 100     // Solana addresses are 44 chars, give buffer
)

// draftRequest is the body of PUT /api/v1/session/draft and the optional
// body of POST /api/v1/session/transfer.
type draftRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// handleGetSession returns a handler that returns the current session snapshot.
// GET /api/v1/session
func handleGetSession(ctrl SessionController, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ctrl.Snapshot(), http.StatusOK)
	})
}

// handleConnect returns a handler that connects the wallet provider.
// POST /api/v1/session/connect
// A rejected or failed connection is a normal outcome: the snapshot carries
// the error notification.
func handleConnect(ctrl SessionController, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := ctrl.Connect(r.Context())
		if status, ok := statusForError(err); ok {
			logger.DebugContext(r.Context(), "connect refused", "error", err)
			writeError(w, err.Error(), status)
			return
		}

		snap := ctrl.Snapshot()
		logger.InfoContext(r.Context(), "connect handled",
			"state", snap.State,
			"account", snap.Account,
		)
		writeJSON(w, snap, http.StatusOK)
	})
}

// handleSetDraft returns a handler that replaces the transfer draft.
// PUT /api/v1/session/draft
func handleSetDraft(ctrl SessionController, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeDraft(w, r, false)
		if err != nil {
			logger.DebugContext(r.Context(), "invalid draft request", "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := ctrl.SetDraft(req.Recipient, req.Amount); err != nil {
			status, _ := statusForError(err)
			writeError(w, err.Error(), status)
			return
		}

		writeJSON(w, ctrl.Snapshot(), http.StatusOK)
	})
}

// handleSubmitTransfer returns a handler that submits the current draft.
// POST /api/v1/session/transfer
// An optional body replaces the draft first. Invalid drafts and failed
// transfers are reported in the snapshot's notification, not as HTTP errors.
func handleSubmitTransfer(ctrl SessionController, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeDraft(w, r, true)
		if err != nil {
			logger.DebugContext(r.Context(), "invalid transfer request", "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if req != nil {
			if err := ctrl.SetDraft(req.Recipient, req.Amount); err != nil {
				status, _ := statusForError(err)
				writeError(w, err.Error(), status)
				return
			}
		}

		err = ctrl.SubmitTransfer(r.Context())
		if status, ok := statusForError(err); ok {
			logger.DebugContext(r.Context(), "transfer refused", "error", err)
			writeError(w, err.Error(), status)
			return
		}

		snap := ctrl.Snapshot()
		if snap.Receipt != nil {
			logger.InfoContext(r.Context(), "transfer handled", "signature", snap.Receipt.Signature)
		}
		writeJSON(w, snap, http.StatusOK)
	})
}

// handleRefreshBalance returns a handler that re-reads the account balance.
// POST /api/v1/session/balance
func handleRefreshBalance(ctrl SessionController, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := ctrl.RefreshBalance(r.Context()); err != nil {
			if status, ok := statusForError(err); ok {
				writeError(w, err.Error(), status)
				return
			}
			// Balance failures are never surfaced; the last known balance stands.
			logger.WarnContext(r.Context(), "balance refresh failed", "error", err)
		}
		writeJSON(w, ctrl.Snapshot(), http.StatusOK)
	})
}

// statusForError maps errors that refuse an operation outright to an HTTP
// status. Outcomes already reported through a notification map to ok=false.
func statusForError(err error) (int, bool) {
	switch {
	case err == nil:
		return http.StatusOK, false
	case errors.Is(err, session.ErrProviderMissing):
		return http.StatusPreconditionFailed, true
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict, true
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable, true
	case errors.Is(err, session.ErrConnectFailed),
		errors.Is(err, session.ErrInvalidDraft),
		errors.Is(err, session.ErrTransferFailed):
		return http.StatusOK, false
	default:
		return http.StatusInternalServerError, true
	}
}

// decodeDraft reads a draft body. With optional set, an empty body yields
// a nil request.
func decodeDraft(w http.ResponseWriter, r *http.Request, optional bool) (*draftRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req draftRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if errors.Is(err, io.EOF) && optional {
		return nil, nil
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errors.New("request body too large")
		}
		return nil, errors.New("invalid request body")
	}

	if err := validateField("recipient", req.Recipient); err != nil {
		return nil, err
	}
	if err := validateField("amount", req.Amount); err != nil {
		return nil, err
	}
	return &req, nil
}

// validateField rejects input no draft could ever hold. Semantic checks
// happen in the controller on submission.
func validateField(name, value string) error {
	if len(value) > maxFieldLength {
		return fmt.Errorf("%s too long: maximum length is %d characters", name, maxFieldLength)
	}
	for _, r := range value {
		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("invalid characters in %s: control characters not allowed", name)
		}
	}
	return nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
