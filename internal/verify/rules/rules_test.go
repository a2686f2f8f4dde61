package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"idgate/internal/verify/models"
	"idgate/pkg/errcode"
)

type RulesSuite struct {
	suite.Suite
	now time.Time
}

func (s *RulesSuite) SetupTest() {
	s.now = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
}

func TestRulesSuite(t *testing.T) {
	suite.Run(t, new(RulesSuite))
}

func (s *RulesSuite) validContext() models.Context {
	return models.Context{
		InstitutionID:     "INST01",
		InstitutionName:   "Acme Corp",
		InstitutionActive: true,
		InstitutionStart:  "20200101",
		InstitutionEnd:    "20991231",
		ApplicationID:     "APP01",
		ApplicationName:   "Acme Wallet",
		ApplicationActive: true,
		ApplicationStart:  "20200101",
		ApplicationEnd:    "20991231",
		AllowedIPs:        "10.0.0.1, 10.0.0.2",
		AllowedURLs:       "/api/id/register, /api/id/check",
		Keys: &models.KeyPair{
			PublicKey:  "pub",
			PrivateKey: "priv",
			StartYmd:   "20200101",
			EndYmd:     "20991231",
		},
	}
}

func (s *RulesSuite) input() *Input {
	return &Input{
		Now:         s.now,
		Context:     s.validContext(),
		ClientIP:    "10.0.0.1",
		RequestPath: "/api/id/register",
	}
}

func (s *RulesSuite) TestContextChain() {
	s.Run("valid context passes", func() {
		s.NoError(Run(s.input(), Context()))
	})

	s.Run("inactive institution", func() {
		in := s.input()
		in.Context.InstitutionActive = false
		s.True(errcode.Is(Run(in, Context()), errcode.CodeInstitutionNotAllowed))
	})

	s.Run("inactive application", func() {
		in := s.input()
		in.Context.ApplicationActive = false
		s.True(errcode.Is(Run(in, Context()), errcode.CodeApplicationNotAllowed))
	})

	s.Run("expired institution window", func() {
		in := s.input()
		in.Context.InstitutionEnd = "20250101"
		s.True(errcode.Is(Run(in, Context()), errcode.CodeInstitutionNotAllowed))
	})

	s.Run("malformed window bound fails closed", func() {
		in := s.input()
		in.Context.ApplicationEnd = "2099-12-31"
		s.True(errcode.Is(Run(in, Context()), errcode.CodeApplicationNotAllowed))
	})

	s.Run("IP not in allow-list", func() {
		in := s.input()
		in.ClientIP = "192.168.0.9"
		s.True(errcode.Is(Run(in, Context()), errcode.CodeIPNotAllowed))
	})

	s.Run("path not in allow-list", func() {
		in := s.input()
		in.RequestPath = "/api/id/unknown"
		s.True(errcode.Is(Run(in, Context()), errcode.CodeURLNotAllowed))
	})

	s.Run("missing key pair", func() {
		in := s.input()
		in.Context.Keys = nil
		s.True(errcode.Is(Run(in, Context()), errcode.CodeKeyInvalid))
	})

	s.Run("expired key pair", func() {
		in := s.input()
		in.Context.Keys.EndYmd = "20250101"
		s.True(errcode.Is(Run(in, Context()), errcode.CodeKeyInvalid))
	})
}

func (s *RulesSuite) TestFailFastOrdering() {
	s.Run("context failure wins over field failure", func() {
		in := s.input()
		in.Context.InstitutionActive = false
		in.Envelope.CI = "" // would fail the transport chain too
		err := Run(in, Context(), Transport())
		s.True(errcode.Is(err, errcode.CodeInstitutionNotAllowed))
	})

	s.Run("IP failure wins over URL failure", func() {
		in := s.input()
		in.ClientIP = "192.168.0.9"
		in.RequestPath = "/api/id/unknown"
		s.True(errcode.Is(Run(in, Context()), errcode.CodeIPNotAllowed))
	})
}

func (s *RulesSuite) TestTransportChain() {
	valid := func() *Input {
		in := s.input()
		in.Envelope = models.Envelope{
			CI:         "ci-value",
			AppKey:     "appkey-0123456789",
			MobileNo:   "01012345678",
			DeviceInfo: "device",
			Telecom:    "S",
			EncKey:     "enckey",
		}
		return in
	}

	s.Run("valid fields pass", func() {
		s.NoError(Run(valid(), Transport()))
	})

	s.Run("missing ci", func() {
		in := valid()
		in.Envelope.CI = ""
		s.True(errcode.Is(Run(in, Transport()), errcode.CodeInvalidField))
	})

	s.Run("oversize device info", func() {
		in := valid()
		in.Envelope.DeviceInfo = string(make([]byte, 513))
		s.True(errcode.Is(Run(in, Transport()), errcode.CodeInvalidField))
	})

	s.Run("unknown telecom", func() {
		in := valid()
		in.Envelope.Telecom = "X"
		s.True(errcode.Is(Run(in, Transport()), errcode.CodeInvalidField))
	})

	s.Run("mobile number with letters and no mobile prefix", func() {
		in := valid()
		in.Envelope.MobileNo = "02abc"
		s.True(errcode.Is(Run(in, Transport()), errcode.CodeInvalidField))
	})

	s.Run("mobile prefix 01 accepted", func() {
		in := valid()
		in.Envelope.MobileNo = "0101234567"
		s.NoError(Run(in, Transport()))
	})
}

func (s *RulesSuite) TestSubCodeParity() {
	cases := []struct {
		birth   string
		subCode string
		valid   bool
	}{
		{"18991231", "0123456", true},
		{"18991231", "9123456", true},
		{"18991231", "1123456", false},
		{"19800101", "1234567", true},
		{"19800101", "3234567", false},
		{"20010101", "3234567", true},
		{"20010101", "1234567", false},
		{"21010101", "5234567", true},
	}
	for _, c := range cases {
		s.Equal(c.valid, ValidSubCode(c.birth, c.subCode),
			"birth %s subCode %s", c.birth, c.subCode)
	}
}

func (s *RulesSuite) TestIdentityChain() {
	valid := func() *Input {
		in := s.input()
		in.Envelope = models.Envelope{
			BirthDay:  "19900101",
			SubCode:   "1234567",
			UserName:  "홍길동",
			IssuedYmd: "20200101",
		}
		return in
	}

	s.Run("valid identity fields pass", func() {
		s.NoError(Run(valid(), Identity()))
	})

	s.Run("missing birth day reports missing", func() {
		in := valid()
		in.Envelope.BirthDay = ""
		s.True(errcode.Is(Run(in, Identity()), errcode.CodeMissingField))
	})

	s.Run("future birth day reports invalid", func() {
		in := valid()
		in.Envelope.BirthDay = "20990101"
		s.True(errcode.Is(Run(in, Identity()), errcode.CodeInvalidField))
	})

	s.Run("parity mismatch reports invalid sub-code", func() {
		in := valid()
		in.Envelope.SubCode = "3234567"
		s.True(errcode.Is(Run(in, Identity()), errcode.CodeInvalidField))
	})

	s.Run("name with digits rejected", func() {
		in := valid()
		in.Envelope.UserName = "hong123"
		s.True(errcode.Is(Run(in, Identity()), errcode.CodeInvalidField))
	})
}

func (s *RulesSuite) TestCrossRecordChain() {
	record := func() *models.IdentityRecord {
		return &models.IdentityRecord{
			SubjectID:       "subj-1",
			MobileNo:        "01012345678",
			DeviceInfo:      "device",
			Telecom:         "S",
			AppKey:          "appkey",
			InstitutionName: "Acme Corp",
			Employment:      models.EmploymentActive,
			Credential:      models.CredentialNormal,
			Registered:      true,
			UserName:        "홍길동",
			BirthDay:        "19900101",
			SubCode:         "1234567",
			IssuedYmd:       "20200101",
		}
	}
	matching := func() *Input {
		in := s.input()
		in.Record = record()
		in.Envelope = models.Envelope{
			MobileNo:   "01012345678",
			DeviceInfo: "device",
			Telecom:    "S",
			AppKey:     "appkey",
			UserName:   "홍길동",
			BirthDay:   "19900101",
			SubCode:    "1234567",
			IssuedYmd:  "20200101",
		}
		return in
	}

	s.Run("matching record passes", func() {
		s.NoError(Run(matching(), CrossRecord()))
	})

	s.Run("nil record reports not registered", func() {
		in := matching()
		in.Record = nil
		s.True(errcode.Is(Run(in, CrossRecord()), errcode.CodeNotRegistered))
	})

	s.Run("mobile mismatch reported before device mismatch", func() {
		in := matching()
		in.Envelope.MobileNo = "01099999999"
		in.Envelope.DeviceInfo = "other-device"
		s.True(errcode.Is(Run(in, CrossRecord()), errcode.CodeMobileMismatch))
	})

	s.Run("telecom mismatch reported before appKey mismatch", func() {
		in := matching()
		in.Envelope.Telecom = "K"
		in.Envelope.AppKey = "other"
		s.True(errcode.Is(Run(in, CrossRecord()), errcode.CodeTelecomMismatch))
	})

	s.Run("institution name mismatch", func() {
		in := matching()
		in.Context.InstitutionName = "Other Corp"
		s.True(errcode.Is(Run(in, CrossRecord()), errcode.CodeRegistrationError))
	})

	s.Run("on leave reports inactive employment", func() {
		in := matching()
		in.Record.Employment = models.EmploymentOnLeave
		s.True(errcode.Is(Run(in, CrossRecord()), errcode.CodeEmploymentInactive))
	})

	s.Run("damaged credential", func() {
		in := matching()
		in.Record.Credential = models.CredentialDamaged
		s.True(errcode.Is(Run(in, CrossRecord()), errcode.CodeCredentialInvalid))
	})

	s.Run("suspended registration", func() {
		in := matching()
		in.Record.Registered = false
		s.True(errcode.Is(Run(in, CrossRecord()), errcode.CodeServiceSuspended))
	})

	s.Run("identity equality check runs after parent chain", func() {
		in := matching()
		in.Envelope.UserName = "김철수"
		s.True(errcode.Is(Run(in, CrossRecordIdentity()), errcode.CodeIdentityMismatch))
	})
}

func (s *RulesSuite) TestHistoryChain() {
	valid := func() *Input {
		in := s.input()
		in.Envelope = models.Envelope{
			CurListIndex: 1,
			ReqListCnt:   20,
			Order:        "DESC",
			Status:       "A",
			Range:        "ALL",
			StartYmd:     "20260101",
			EndYmd:       "20260315",
		}
		return in
	}

	s.Run("valid filters pass", func() {
		s.NoError(Run(valid(), History()))
	})

	s.Run("zero list index rejected", func() {
		in := valid()
		in.Envelope.CurListIndex = 0
		s.True(errcode.Is(Run(in, History()), errcode.CodeInvalidField))
	})

	s.Run("unknown order rejected", func() {
		in := valid()
		in.Envelope.Order = "RANDOM"
		s.True(errcode.Is(Run(in, History()), errcode.CodeInvalidField))
	})

	s.Run("bad date bound rejected", func() {
		in := valid()
		in.Envelope.EndYmd = "20269999"
		s.True(errcode.Is(Run(in, History()), errcode.CodeInvalidField))
	})
}

func (s *RulesSuite) TestRecordSanity() {
	valid := models.IdentityRecord{
		SubjectID:       "subj-1",
		CI:              "ci",
		BirthDay:        "19900101",
		SubCode:         "1234567",
		UserName:        "홍길동",
		IssuedYmd:       "20200101",
		MobileNo:        "01012345678",
		DeviceInfo:      "device",
		Telecom:         "S",
		AppKey:          "appkey",
		Address1:        "Seoul",
		Address2:        "Gangnam",
		InstitutionName: "Acme Corp",
		Employment:      models.EmploymentActive,
		Credential:      models.CredentialNormal,
	}

	s.Run("complete record passes", func() {
		s.NoError(RecordSanity(valid))
	})

	s.Run("missing field reports internal error with label", func() {
		rec := valid
		rec.AppKey = ""
		err := RecordSanity(rec)
		s.True(errcode.Is(err, errcode.CodeInternal))
		s.Contains(errcode.MessageOf(err), "appKey")
	})
}
