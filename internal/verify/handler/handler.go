// Package handler is the thin HTTP layer over the verification service. All
// operations are POST, all responses travel as HTTP 200 with the uniform
// result envelope; failures live in the result code, never in the status.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"idgate/internal/verify/models"
	"idgate/pkg/errcode"
	"idgate/pkg/requestcontext"
)

// Service defines the verification operations the handler exposes.
type Service interface {
	Register(ctx context.Context, env models.Envelope) models.Response
	Check(ctx context.Context, env models.Envelope) models.Response
	Terminate(ctx context.Context, env models.Envelope) models.Response
	QRIssue(ctx context.Context, env models.Envelope) models.Response
	QRRedeem(ctx context.Context, env models.Envelope) models.Response
	History(ctx context.Context, env models.Envelope) models.Response
}

// Handler wires verification endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a verification handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/v1/register", h.handle("register", h.service.Register))
	r.Post("/api/v1/check", h.handle("check", h.service.Check))
	r.Post("/api/v1/terminate", h.handle("terminate", h.service.Terminate))
	r.Post("/api/v1/qr/issue", h.handle("qr-issue", h.service.QRIssue))
	r.Post("/api/v1/qr/redeem", h.handle("qr-redeem", h.service.QRRedeem))
	r.Post("/api/v1/history", h.handle("history", h.service.History))
}

func (h *Handler) handle(operation string, fn func(context.Context, models.Envelope) models.Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()

		var env models.Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			h.logger.WarnContext(ctx, "malformed request body",
				"operation", operation,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			writeJSON(w, models.Response{
				ResultCode:    string(errcode.CodeMalformedRequest),
				ResultMessage: errcode.MessageOf(errcode.New(errcode.CodeMalformedRequest)),
			})
			return
		}

		resp := fn(ctx, env)

		h.logger.InfoContext(ctx, "operation handled",
			"operation", operation,
			"request_id", requestcontext.RequestID(ctx),
			"code", resp.ResultCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		writeJSON(w, resp)
	}
}

func writeJSON(w http.ResponseWriter, resp models.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
