package rules

import (
	"idgate/internal/verify/models"
	"idgate/pkg/errcode"
)

// Context returns the outermost chain: institution, application, validity
// windows, caller allow-lists, key material. Order is fixed and the first
// failure wins.
func Context() []Rule {
	return []Rule{
		func(in *Input) error {
			if IsBlank(in.Context.InstitutionName) || !in.Context.InstitutionActive {
				return errcode.New(errcode.CodeInstitutionNotAllowed)
			}
			return nil
		},
		func(in *Input) error {
			if IsBlank(in.Context.ApplicationName) || !in.Context.ApplicationActive {
				return errcode.New(errcode.CodeApplicationNotAllowed)
			}
			return nil
		},
		func(in *Input) error {
			if !WithinWindow(in.Now, in.Context.InstitutionStart, in.Context.InstitutionEnd) {
				return errcode.New(errcode.CodeInstitutionNotAllowed)
			}
			return nil
		},
		func(in *Input) error {
			if !WithinWindow(in.Now, in.Context.ApplicationStart, in.Context.ApplicationEnd) {
				return errcode.New(errcode.CodeApplicationNotAllowed)
			}
			return nil
		},
		func(in *Input) error {
			if _, ok := in.Context.AllowedIPSet()[in.ClientIP]; !ok {
				return errcode.New(errcode.CodeIPNotAllowed)
			}
			return nil
		},
		func(in *Input) error {
			if _, ok := in.Context.AllowedURLSet()[in.RequestPath]; !ok {
				return errcode.New(errcode.CodeURLNotAllowed)
			}
			return nil
		},
		func(in *Input) error {
			k := in.Context.Keys
			if k == nil || IsBlank(k.PublicKey) || IsBlank(k.PrivateKey) ||
				!WithinWindow(in.Now, k.StartYmd, k.EndYmd) {
				return errcode.New(errcode.CodeKeyInvalid)
			}
			return nil
		},
	}
}

// Transport returns the chain over the decrypted transport fields. The
// citizen-link code is required; the rest are validated only when present.
func Transport() []Rule {
	return []Rule{
		func(in *Input) error {
			if IsBlank(in.Envelope.CI) || !MaxLen(in.Envelope.CI, 88) {
				return errcode.Newf(errcode.CodeInvalidField, "ci")
			}
			return nil
		},
		func(in *Input) error {
			if in.Envelope.AppKey != "" && !MaxLen(in.Envelope.AppKey, 32) {
				return errcode.Newf(errcode.CodeInvalidField, "appKey")
			}
			return nil
		},
		func(in *Input) error {
			if v := in.Envelope.MobileNo; v != "" && (!MaxLen(v, 11) || !ValidMobileNo(v)) {
				return errcode.Newf(errcode.CodeInvalidField, "mobileNo")
			}
			return nil
		},
		func(in *Input) error {
			if v := in.Envelope.DeviceInfo; v != "" && !MaxLen(v, 512) {
				return errcode.Newf(errcode.CodeInvalidField, "deviceInfo")
			}
			return nil
		},
		func(in *Input) error {
			if v := in.Envelope.Telecom; v != "" && (!MaxLen(v, 1) || !ValidTelecom(v)) {
				return errcode.Newf(errcode.CodeInvalidField, "telecom")
			}
			return nil
		},
		func(in *Input) error {
			if v := in.Envelope.EncKey; v != "" && !MaxLen(v, 33) {
				return errcode.Newf(errcode.CodeInvalidField, "encKey")
			}
			return nil
		},
	}
}

// Identity returns the chain over the decrypted personal fields carried by
// registration requests. Missing and malformed values report distinct codes.
func Identity() []Rule {
	return []Rule{
		func(in *Input) error {
			v := in.Envelope.BirthDay
			if IsBlank(v) {
				return errcode.Newf(errcode.CodeMissingField, "birthDay")
			}
			if !MaxLen(v, 8) || !ValidDate(v) || !IsPast(v, in.Now) {
				return errcode.Newf(errcode.CodeInvalidField, "birthDay")
			}
			return nil
		},
		func(in *Input) error {
			v := in.Envelope.SubCode
			if IsBlank(v) {
				return errcode.Newf(errcode.CodeMissingField, "subCode")
			}
			if !MaxLen(v, 7) || !ValidSubCode(in.Envelope.BirthDay, v) {
				return errcode.Newf(errcode.CodeInvalidField, "subCode")
			}
			return nil
		},
		func(in *Input) error {
			v := in.Envelope.UserName
			if IsBlank(v) {
				return errcode.Newf(errcode.CodeMissingField, "userName")
			}
			if !MaxLen(v, 38) || !ValidName(v) {
				return errcode.Newf(errcode.CodeInvalidField, "userName")
			}
			return nil
		},
		func(in *Input) error {
			v := in.Envelope.IssuedYmd
			if IsBlank(v) {
				return errcode.Newf(errcode.CodeMissingField, "issuedYmd")
			}
			if !MaxLen(v, 8) || !ValidDate(v) || !IsPast(v, in.Now) {
				return errcode.Newf(errcode.CodeInvalidField, "issuedYmd")
			}
			return nil
		},
	}
}

// CrossRecord returns the chain comparing decrypted request fields against
// the stored record. Mismatch order is part of the contract: mobile before
// device before telecom before appKey before institution name, then the
// status checks.
func CrossRecord() []Rule {
	return []Rule{
		func(in *Input) error {
			if in.Record == nil {
				return errcode.New(errcode.CodeNotRegistered)
			}
			return nil
		},
		func(in *Input) error {
			if in.Envelope.MobileNo != in.Record.MobileNo {
				return errcode.New(errcode.CodeMobileMismatch)
			}
			return nil
		},
		func(in *Input) error {
			if in.Envelope.DeviceInfo != in.Record.DeviceInfo {
				return errcode.New(errcode.CodeDeviceMismatch)
			}
			return nil
		},
		func(in *Input) error {
			if in.Envelope.Telecom != in.Record.Telecom {
				return errcode.New(errcode.CodeTelecomMismatch)
			}
			return nil
		},
		func(in *Input) error {
			if in.Envelope.AppKey != in.Record.AppKey {
				return errcode.New(errcode.CodeAppKeyMismatch)
			}
			return nil
		},
		func(in *Input) error {
			if in.Context.InstitutionName != in.Record.InstitutionName {
				return errcode.New(errcode.CodeRegistrationError)
			}
			return nil
		},
		func(in *Input) error {
			if in.Record.Employment != models.EmploymentActive {
				return errcode.New(errcode.CodeEmploymentInactive)
			}
			return nil
		},
		func(in *Input) error {
			if in.Record.Credential != models.CredentialNormal {
				return errcode.New(errcode.CodeCredentialInvalid)
			}
			return nil
		},
		func(in *Input) error {
			if !in.Record.Registered {
				return errcode.New(errcode.CodeServiceSuspended)
			}
			return nil
		},
	}
}

// CrossRecordIdentity extends CrossRecord with the personal-field equality
// check registration performs after the shared chain.
func CrossRecordIdentity() []Rule {
	return append(CrossRecord(), func(in *Input) error {
		if in.Envelope.UserName != in.Record.UserName ||
			in.Envelope.BirthDay != in.Record.BirthDay ||
			in.Envelope.SubCode != in.Record.SubCode ||
			in.Envelope.IssuedYmd != in.Record.IssuedYmd {
			return errcode.New(errcode.CodeIdentityMismatch)
		}
		return nil
	})
}

// Redeem returns the field chain for QR redemption: the wrapped symmetric
// key must be present and sized, and the citizen-link code, when carried,
// must fit.
func Redeem() []Rule {
	return []Rule{
		func(in *Input) error {
			if v := in.Envelope.CI; v != "" && !MaxLen(v, 88) {
				return errcode.Newf(errcode.CodeInvalidField, "ci")
			}
			return nil
		},
		func(in *Input) error {
			if IsBlank(in.Envelope.EncKey) || !MaxLen(in.Envelope.EncKey, 33) {
				return errcode.Newf(errcode.CodeInvalidField, "encKey")
			}
			return nil
		},
	}
}

// History returns the filter chain for the history query surface.
func History() []Rule {
	return []Rule{
		func(in *Input) error {
			if in.Envelope.CurListIndex <= 0 {
				return errcode.Newf(errcode.CodeInvalidField, "curListIndex")
			}
			return nil
		},
		func(in *Input) error {
			if in.Envelope.ReqListCnt <= 0 {
				return errcode.Newf(errcode.CodeInvalidField, "reqListCnt")
			}
			return nil
		},
		func(in *Input) error {
			if o := in.Envelope.Order; o != "DESC" && o != "ASC" {
				return errcode.Newf(errcode.CodeInvalidField, "order")
			}
			return nil
		},
		func(in *Input) error {
			if s := in.Envelope.Status; s != "S" && s != "F" && s != "A" {
				return errcode.Newf(errcode.CodeInvalidField, "status")
			}
			return nil
		},
		func(in *Input) error {
			if r := in.Envelope.Range; r != "ALL" && r != "APP" {
				return errcode.Newf(errcode.CodeInvalidField, "range")
			}
			return nil
		},
		func(in *Input) error {
			if !ValidDate(in.Envelope.StartYmd) {
				return errcode.Newf(errcode.CodeInvalidField, "stDt")
			}
			return nil
		},
		func(in *Input) error {
			if !ValidDate(in.Envelope.EndYmd) {
				return errcode.Newf(errcode.CodeInvalidField, "endDt")
			}
			return nil
		},
	}
}

// RecordSanity validates a record fetched from the identity source before it
// is trusted. Failures are internal errors carrying the offending field.
func RecordSanity(rec models.IdentityRecord) error {
	checks := []struct {
		label string
		ok    bool
	}{
		{"subjectId", !IsBlank(rec.SubjectID)},
		{"birthDay", !IsBlank(rec.BirthDay) && ValidDate(rec.BirthDay)},
		{"subCode", Numeric(rec.SubCode, 0)},
		{"userName", !IsBlank(rec.UserName)},
		{"issuedYmd", !IsBlank(rec.IssuedYmd) && ValidDate(rec.IssuedYmd)},
		{"ci", !IsBlank(rec.CI)},
		{"address", !IsBlank(rec.Address1)},
		{"detailAddress", !IsBlank(rec.Address2)},
		{"institutionName", !IsBlank(rec.InstitutionName)},
		{"appKey", !IsBlank(rec.AppKey)},
		{"telecom", ValidTelecom(rec.Telecom)},
		{"deviceInfo", !IsBlank(rec.DeviceInfo)},
		{"employmentStatus", validEmployment(rec.Employment)},
		{"credentialStatus", validCredential(rec.Credential)},
	}
	for _, c := range checks {
		if !c.ok {
			return errcode.Newf(errcode.CodeInternal, "identity record "+c.label)
		}
	}
	return nil
}

func validEmployment(s models.EmploymentStatus) bool {
	return s == models.EmploymentActive || s == models.EmploymentOnLeave || s == models.EmploymentRetired
}

func validCredential(s models.CredentialStatus) bool {
	return s == models.CredentialNormal || s == models.CredentialDamaged || s == models.CredentialLost
}
