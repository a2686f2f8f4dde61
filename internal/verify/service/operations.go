package service

import (
	"context"
	"errors"

	"idgate/internal/verify/audit"
	"idgate/internal/verify/models"
	"idgate/internal/verify/rules"
	"idgate/pkg/errcode"
	"idgate/pkg/platform/sentinel"
	"idgate/pkg/requestcontext"
)

const (
	opRegister  = "register"
	opCheck     = "check"
	opTerminate = "terminate"
	opQRIssue   = "qr-issue"
	opQRRedeem  = "qr-redeem"
	opHistory   = "history"
)

// timestampLayout formats redemption times on the history surface.
const timestampLayout = "20060102150405"

func (s *Service) input(ctx context.Context, c models.Context, env models.Envelope) *rules.Input {
	return &rules.Input{
		Now:         requestcontext.Now(ctx),
		Context:     c,
		ClientIP:    requestcontext.ClientIP(ctx),
		RequestPath: requestcontext.RequestPath(ctx),
		Envelope:    env,
	}
}

// Register enrolls a subject: duplicate check, authoritative fetch, layered
// validation, then persistence.
func (s *Service) Register(ctx context.Context, env models.Envelope) models.Response {
	return s.run(ctx, opRegister, env, s.register)
}

func (s *Service) register(ctx context.Context, env models.Envelope) (any, error) {
	c, err := s.resolveContext(ctx, opRegister, env)
	if err != nil {
		return nil, err
	}
	in := s.input(ctx, c, env)
	if err := rules.Run(in, rules.Context()); err != nil {
		return nil, err
	}

	if env, err = s.codec.DecryptEnvelope(env, c.Keys.PrivateKey); err != nil {
		return nil, err
	}
	if env, err = s.codec.DecryptIdentityLayer(env); err != nil {
		return nil, err
	}
	in.Envelope = env
	s.decrypted(ctx, opRegister)

	if err := rules.Run(in, rules.Transport(), rules.Identity()); err != nil {
		return nil, err
	}
	req := env.RegisterView()

	existing, err := s.identities.FindByCI(ctx, req.CI)
	switch {
	case err == nil && existing.Registered:
		return nil, errcode.New(errcode.CodeAlreadyRegistered)
	case err != nil && !errors.Is(err, sentinel.ErrNotFound):
		return nil, errcode.Wrapf(errcode.CodeInternal, err, "identity lookup")
	}

	rec, err := s.source.Fetch(ctx, req.CI)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errcode.New(errcode.CodeNotRegistered)
		}
		return nil, err
	}

	// Bind the caller's transport identity to the fetched record.
	rec.MobileNo = req.MobileNo
	rec.DeviceInfo = req.DeviceInfo
	rec.Telecom = req.Telecom
	rec.AppKey = req.AppKey
	rec.Registered = true

	if err := rules.RecordSanity(*rec); err != nil {
		return nil, err
	}
	in.Record = rec
	if err := rules.Run(in, rules.CrossRecordIdentity()); err != nil {
		return nil, err
	}

	if existing != nil {
		err = s.identities.Update(ctx, *rec)
	} else {
		err = s.identities.Create(ctx, *rec)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, errcode.New(errcode.CodeAlreadyRegistered)
		}
		return nil, errcode.Wrapf(errcode.CodeInternal, err, "identity persist")
	}

	s.snapshot(requestcontext.RequestID(ctx), opRegister, audit.StageResult, "", "",
		map[string]string{"subjectId": rec.SubjectID})
	return nil, nil
}

// Check refreshes a registered subject from the authoritative source and
// returns the re-encrypted identity payload with a fresh QR token.
func (s *Service) Check(ctx context.Context, env models.Envelope) models.Response {
	return s.run(ctx, opCheck, env, s.check)
}

func (s *Service) check(ctx context.Context, env models.Envelope) (any, error) {
	c, err := s.resolveContext(ctx, opCheck, env)
	if err != nil {
		return nil, err
	}
	in := s.input(ctx, c, env)
	if err := rules.Run(in, rules.Context()); err != nil {
		return nil, err
	}

	if env, err = s.codec.DecryptEnvelope(env, c.Keys.PrivateKey); err != nil {
		return nil, err
	}
	in.Envelope = env
	s.decrypted(ctx, opCheck)
	if err := rules.Run(in, rules.Transport()); err != nil {
		return nil, err
	}
	req := env.CheckView()

	stored, err := s.identities.FindByCI(ctx, req.CI)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errcode.New(errcode.CodeNotRegistered)
		}
		return nil, errcode.Wrapf(errcode.CodeInternal, err, "identity lookup")
	}
	if !stored.Registered {
		return nil, errcode.New(errcode.CodeServiceSuspended)
	}

	fresh, err := s.source.Fetch(ctx, req.CI)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errcode.New(errcode.CodeNotRegistered)
		}
		return nil, err
	}

	// The authoritative source owns the personal data; the binding fields
	// stay as registered.
	fresh.MobileNo = stored.MobileNo
	fresh.DeviceInfo = stored.DeviceInfo
	fresh.Telecom = stored.Telecom
	fresh.AppKey = stored.AppKey
	fresh.Registered = stored.Registered

	if err := rules.RecordSanity(*fresh); err != nil {
		return nil, err
	}
	if err := s.identities.Update(ctx, *fresh); err != nil {
		return nil, errcode.Wrapf(errcode.CodeInternal, err, "identity refresh")
	}

	in.Record = fresh
	if err := rules.Run(in, rules.CrossRecord()); err != nil {
		return nil, err
	}

	img, err := s.qr.Issue(fresh.SubjectID, in.Now)
	if err != nil {
		return nil, err
	}
	s.metrics.QRIssued.Inc()

	// The app key and device binding never leave on the check surface; only
	// redemption responses carry them, wrapped under the caller's key.
	payload := models.PayloadFromRecord(*fresh)
	payload.AppKey = ""
	payload.DeviceInfo = ""
	enc, err := s.codec.EncryptIdentity(payload, fresh.AppKey)
	if err != nil {
		return nil, err
	}

	s.snapshot(requestcontext.RequestID(ctx), opCheck, audit.StageResult, "", "",
		map[string]string{"subjectId": fresh.SubjectID})
	return models.CheckData{IdentityPayload: enc, QRCode: img}, nil
}

// Terminate unregisters a subject, clearing the stored photo.
func (s *Service) Terminate(ctx context.Context, env models.Envelope) models.Response {
	return s.run(ctx, opTerminate, env, s.terminate)
}

func (s *Service) terminate(ctx context.Context, env models.Envelope) (any, error) {
	c, err := s.resolveContext(ctx, opTerminate, env)
	if err != nil {
		return nil, err
	}
	in := s.input(ctx, c, env)
	if err := rules.Run(in, rules.Context()); err != nil {
		return nil, err
	}

	if env, err = s.codec.DecryptEnvelope(env, c.Keys.PrivateKey); err != nil {
		return nil, err
	}
	in.Envelope = env
	s.decrypted(ctx, opTerminate)
	if err := rules.Run(in, rules.Transport()); err != nil {
		return nil, err
	}
	req := env.TerminateView()

	rec, err := s.identities.FindByCI(ctx, req.CI)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errcode.New(errcode.CodeNotRegistered)
		}
		return nil, errcode.Wrapf(errcode.CodeInternal, err, "identity lookup")
	}

	in.Record = rec
	if err := rules.Run(in, rules.CrossRecord()); err != nil {
		return nil, err
	}

	if err := s.identities.Deregister(ctx, rec.SubjectID); err != nil {
		return nil, errcode.Wrapf(errcode.CodeInternal, err, "deregister")
	}

	s.snapshot(requestcontext.RequestID(ctx), opTerminate, audit.StageResult, "", "",
		map[string]string{"subjectId": rec.SubjectID})
	return nil, nil
}

// QRIssue issues a fresh QR token for a registered subject.
func (s *Service) QRIssue(ctx context.Context, env models.Envelope) models.Response {
	return s.run(ctx, opQRIssue, env, s.qrIssue)
}

func (s *Service) qrIssue(ctx context.Context, env models.Envelope) (any, error) {
	c, err := s.resolveContext(ctx, opQRIssue, env)
	if err != nil {
		return nil, err
	}
	in := s.input(ctx, c, env)
	if err := rules.Run(in, rules.Context()); err != nil {
		return nil, err
	}

	if env, err = s.codec.DecryptEnvelope(env, c.Keys.PrivateKey); err != nil {
		return nil, err
	}
	in.Envelope = env
	s.decrypted(ctx, opQRIssue)
	if err := rules.Run(in, rules.Transport()); err != nil {
		return nil, err
	}
	req := env.QRIssueView()

	rec, err := s.identities.FindByCI(ctx, req.CI)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errcode.New(errcode.CodeNotRegistered)
		}
		return nil, errcode.Wrapf(errcode.CodeInternal, err, "identity lookup")
	}

	in.Record = rec
	if err := rules.Run(in, rules.CrossRecord()); err != nil {
		return nil, err
	}

	img, err := s.qr.Issue(rec.SubjectID, in.Now)
	if err != nil {
		return nil, err
	}
	s.metrics.QRIssued.Inc()

	s.snapshot(requestcontext.RequestID(ctx), opQRIssue, audit.StageResult, "", "",
		map[string]string{"subjectId": rec.SubjectID})
	return models.QRIssueData{QRCode: img}, nil
}

// QRRedeem verifies a scanned QR token. Every attempt leaves exactly one
// history row: inserted pending right after context resolution, settled
// success or failed on the way out.
func (s *Service) QRRedeem(ctx context.Context, env models.Envelope) models.Response {
	return s.run(ctx, opQRRedeem, env, s.qrRedeem)
}

func (s *Service) qrRedeem(ctx context.Context, env models.Envelope) (any, error) {
	c, err := s.resolveContext(ctx, opQRRedeem, env)
	if err != nil {
		return nil, err
	}

	histID, err := s.history.Insert(ctx, models.QRHistoryRecord{
		Token:         env.QRCode,
		InstitutionID: c.InstitutionID,
		ApplicationID: c.ApplicationID,
		Status:        models.QRHistoryPending,
	})
	if err != nil {
		return nil, errcode.Wrapf(errcode.CodeInternal, err, "history insert")
	}

	subjectID := ""
	fail := func(cause error) (any, error) {
		if merr := s.history.MarkOutcome(ctx, histID, models.QRHistoryFailed, subjectID); merr != nil {
			s.logger.Error("failed to settle redemption row", "id", histID, "error", merr)
		}
		s.metrics.QRRedeemed.WithLabelValues("failure").Inc()
		return nil, cause
	}

	in := s.input(ctx, c, env)
	if err := rules.Run(in, rules.Context()); err != nil {
		return fail(err)
	}

	if env, err = s.codec.DecryptEnvelope(env, c.Keys.PrivateKey); err != nil {
		return fail(err)
	}
	in.Envelope = env
	s.decrypted(ctx, opQRRedeem)
	if err := rules.Run(in, rules.Redeem()); err != nil {
		return fail(err)
	}
	req := env.QRRedeemView()

	tok, err := s.qr.Decode(req.QRCode)
	if err != nil {
		return fail(err)
	}
	subjectID = tok.SubjectID

	if err := s.qr.CheckWindow(tok, in.Now); err != nil {
		return fail(err)
	}

	rec, err := s.identities.FindBySubject(ctx, tok.SubjectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return fail(errcode.New(errcode.CodeNotRegistered))
		}
		return fail(errcode.Wrapf(errcode.CodeInternal, err, "identity lookup"))
	}
	if err := checkRecordStatus(rec); err != nil {
		return fail(err)
	}

	enc, err := s.codec.EncryptRedemption(models.PayloadFromRecord(*rec), rec.AppKey, req.EncKey)
	if err != nil {
		return fail(err)
	}

	if err := s.history.MarkOutcome(ctx, histID, models.QRHistorySuccess, subjectID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errcode.New(errcode.CodeQRMalformed)
		}
		return nil, errcode.Wrapf(errcode.CodeInternal, err, "history settle")
	}
	s.metrics.QRRedeemed.WithLabelValues("success").Inc()

	s.snapshot(requestcontext.RequestID(ctx), opQRRedeem, audit.StageResult, "", "",
		map[string]string{"subjectId": subjectID})
	return enc, nil
}

// History returns a page of the caller's redemption attempts.
func (s *Service) History(ctx context.Context, env models.Envelope) models.Response {
	return s.run(ctx, opHistory, env, s.historyQuery)
}

func (s *Service) historyQuery(ctx context.Context, env models.Envelope) (any, error) {
	c, err := s.resolveContext(ctx, opHistory, env)
	if err != nil {
		return nil, err
	}
	in := s.input(ctx, c, env)
	if err := rules.Run(in, rules.Context()); err != nil {
		return nil, err
	}

	if env, err = s.codec.DecryptEnvelope(env, c.Keys.PrivateKey); err != nil {
		return nil, err
	}
	in.Envelope = env
	s.decrypted(ctx, opHistory)
	if err := rules.Run(in, rules.Transport(), rules.History()); err != nil {
		return nil, err
	}

	rec, err := s.identities.FindByCI(ctx, env.CI)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errcode.New(errcode.CodeNotRegistered)
		}
		return nil, errcode.Wrapf(errcode.CodeInternal, err, "identity lookup")
	}
	if !rec.Registered {
		return nil, errcode.New(errcode.CodeServiceSuspended)
	}

	fresh, err := s.source.Fetch(ctx, env.CI)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errcode.New(errcode.CodeNotRegistered)
		}
		return nil, err
	}
	rec.Employment = fresh.Employment
	rec.Credential = fresh.Credential

	in.Record = rec
	if err := rules.Run(in, rules.CrossRecord()); err != nil {
		return nil, err
	}

	page, err := s.history.Query(ctx, env.HistoryView(c.InstitutionID, c.ApplicationID))
	if err != nil {
		return nil, errcode.Wrapf(errcode.CodeInternal, err, "history query")
	}

	data := models.HistoryData{
		Items:   make([]models.HistoryItem, 0, len(page.Items)),
		HasNext: "N",
		Total:   page.Total,
	}
	if page.HasNext {
		data.HasNext = "Y"
	}
	for _, it := range page.Items {
		used := it.UpdatedAt
		if used.IsZero() {
			used = it.CreatedAt
		}
		data.Items = append(data.Items, models.HistoryItem{
			SubjectID:     it.SubjectID,
			ApplicationID: it.ApplicationID,
			Status:        string(it.Status),
			UsedAt:        used.Format(timestampLayout),
		})
	}

	s.snapshot(requestcontext.RequestID(ctx), opHistory, audit.StageResult, "", "",
		map[string]int{"totCnt": page.Total})
	return data, nil
}
