// Package service orchestrates the verification operations: context
// resolution, layered validation, envelope crypto, QR lifecycle and the
// audit trail, in that order for every request.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"idgate/internal/platform/metrics"
	"idgate/internal/verify/audit"
	"idgate/internal/verify/crypto"
	"idgate/internal/verify/identitysource"
	"idgate/internal/verify/models"
	"idgate/internal/verify/qr"
	"idgate/internal/verify/store"
	"idgate/pkg/errcode"
	"idgate/pkg/platform/sentinel"
	"idgate/pkg/requestcontext"
)

// Service is the verification orchestrator. All dependencies are injected;
// the service holds no mutable state of its own.
type Service struct {
	contexts   store.ContextStore
	identities store.IdentityStore
	history    store.QRHistoryStore
	source     identitysource.Source
	codec      *crypto.Codec
	qr         *qr.Service
	recorder   *audit.Recorder
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Deps bundles the collaborators a Service needs.
type Deps struct {
	Contexts   store.ContextStore
	Identities store.IdentityStore
	History    store.QRHistoryStore
	Source     identitysource.Source
	Codec      *crypto.Codec
	QR         *qr.Service
	Recorder   *audit.Recorder
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

func New(d Deps) *Service {
	return &Service{
		contexts:   d.Contexts,
		identities: d.Identities,
		history:    d.History,
		source:     d.Source,
		codec:      d.Codec,
		qr:         d.QR,
		recorder:   d.Recorder,
		metrics:    d.Metrics,
		logger:     d.Logger,
		tracer:     otel.Tracer("idgate/verify"),
	}
}

// run wraps one operation: span, request snapshot, the operation body, and
// the single exit point that turns any error into a failure envelope.
func (s *Service) run(ctx context.Context, operation string, env models.Envelope,
	fn func(ctx context.Context, env models.Envelope) (any, error)) models.Response {

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "verify."+operation)
	defer span.End()

	corr := requestcontext.RequestID(ctx)
	s.snapshot(corr, operation, audit.StageRequest, "", "", env)

	data, err := fn(ctx, env)

	resp := models.Response{
		ResultCode:    models.ResultCodeSuccess,
		ResultMessage: models.ResultMessageSuccess,
	}
	if err != nil {
		code := errcode.CodeOf(err)
		resp = models.Response{
			ResultCode:    string(code),
			ResultMessage: errcode.MessageOf(err),
		}
		span.RecordError(err)
		s.snapshot(corr, operation, audit.StageError, resp.ResultCode, err.Error(), nil)
		s.logger.Warn("operation failed",
			"operation", operation,
			"code", resp.ResultCode,
			"request_id", corr,
			"error", err,
		)
	} else {
		resp.Data = data
	}

	span.SetAttributes(
		attribute.String("idgate.operation", operation),
		attribute.String("idgate.result_code", resp.ResultCode),
	)
	s.snapshot(corr, operation, audit.StageResponse, resp.ResultCode, resp.ResultMessage, nil)
	s.metrics.ObserveRequest(operation, resp.ResultCode, time.Since(start))
	return resp
}

// snapshot records one audit trail entry. Payloads are JSON; marshal trouble
// degrades to a payload-less snapshot rather than losing the entry.
func (s *Service) snapshot(corr, operation string, stage audit.Stage, code, message string, payload any) {
	var raw []byte
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			raw = b
		}
	}
	s.recorder.Record(audit.Snapshot{
		CorrelationID: corr,
		Operation:     operation,
		Stage:         stage,
		ResultCode:    code,
		Message:       message,
		Payload:       raw,
	})
}

// decrypted marks the envelope-decrypt stage on the trail. Every operation
// records it right after both crypto layers succeed.
func (s *Service) decrypted(ctx context.Context, operation string) {
	s.snapshot(requestcontext.RequestID(ctx), operation, audit.StageDecrypted, "", "envelope decrypted", nil)
}

// resolveContext looks up the caller's institution+application context. An
// unknown token pair reports the institution-not-allowed code; the caller
// learns nothing about which half failed.
func (s *Service) resolveContext(ctx context.Context, operation string, env models.Envelope) (models.Context, error) {
	c, err := s.contexts.Resolve(ctx, env.AgencyToken, env.ApplicationToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Context{}, errcode.New(errcode.CodeInstitutionNotAllowed)
		}
		return models.Context{}, errcode.Wrapf(errcode.CodeInternal, err, "context resolution")
	}
	s.snapshot(requestcontext.RequestID(ctx), operation, audit.StageContext, "", "", map[string]string{
		"institutionId": c.InstitutionID,
		"applicationId": c.ApplicationID,
	})
	return c, nil
}

// checkRecordStatus applies the status subset of the cross-record chain:
// employment, credential, registration flag. Redemption uses this instead of
// the full chain because the scanning party carries no bound fields.
func checkRecordStatus(rec *models.IdentityRecord) error {
	if rec.Employment != models.EmploymentActive {
		return errcode.New(errcode.CodeEmploymentInactive)
	}
	if rec.Credential != models.CredentialNormal {
		return errcode.New(errcode.CodeCredentialInvalid)
	}
	if !rec.Registered {
		return errcode.New(errcode.CodeServiceSuspended)
	}
	return nil
}
