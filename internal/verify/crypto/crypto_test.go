package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/suite"

	"idgate/internal/verify/models"
	"idgate/pkg/errcode"
)

type CodecSuite struct {
	suite.Suite
	codec      *Codec
	privateKey string
	publicKey  string
}

func (s *CodecSuite) SetupSuite() {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)

	priv, err := x509.MarshalPKCS8PrivateKey(key)
	s.Require().NoError(err)
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	s.Require().NoError(err)

	s.privateKey = base64.StdEncoding.EncodeToString(priv)
	s.publicKey = base64.StdEncoding.EncodeToString(pub)
}

func (s *CodecSuite) SetupTest() {
	s.codec = NewCodec(true)
}

func TestCodecSuite(t *testing.T) {
	suite.Run(t, new(CodecSuite))
}

const (
	testEncKey = "0123456789abcdef"         // 16 bytes
	testAppKey = "fedcba9876543210fedcba98" // 24 bytes
)

func (s *CodecSuite) TestFieldRoundTrip() {
	s.Run("encrypt then decrypt returns the plaintext", func() {
		for _, plain := range []string{"x", "01012345678", "홍길동", "a longer value spanning multiple aes blocks"} {
			enc, err := s.codec.EncryptField(plain, testEncKey)
			s.Require().NoError(err)
			s.NotEqual(plain, enc)

			dec, err := s.codec.DecryptField(enc, testEncKey)
			s.Require().NoError(err)
			s.Equal(plain, dec)
		}
	})

	s.Run("wrong key length fails", func() {
		_, err := s.codec.EncryptField("value", "short")
		s.Error(err)
	})
}

func (s *CodecSuite) TestKeyWrapRoundTrip() {
	wrapped, err := s.codec.WrapKey(testEncKey, s.publicKey)
	s.Require().NoError(err)
	s.NotEqual(testEncKey, wrapped)

	unwrapped, err := s.codec.UnwrapKey(wrapped, s.privateKey)
	s.Require().NoError(err)
	s.Equal(testEncKey, unwrapped)
}

func (s *CodecSuite) envelope() models.Envelope {
	enc := func(v, k string) string {
		out, err := s.codec.EncryptField(v, k)
		s.Require().NoError(err)
		return out
	}
	wrapped, err := s.codec.WrapKey(testEncKey, s.publicKey)
	s.Require().NoError(err)

	return models.Envelope{
		EncKey:     wrapped,
		CI:         enc("ci-value", testEncKey),
		AppKey:     enc(testAppKey, testEncKey),
		MobileNo:   enc("01012345678", testEncKey),
		DeviceInfo: enc("device-xyz", testEncKey),
		Telecom:    "S",
		BirthDay:   enc("19900101", testAppKey),
		SubCode:    enc("1234567", testAppKey),
		UserName:   enc("홍길동", testAppKey),
		IssuedYmd:  enc("20200101", testAppKey),
	}
}

func (s *CodecSuite) TestEnvelopeDecrypt() {
	s.Run("transport layer recovers fields and telecom passes through", func() {
		out, err := s.codec.DecryptEnvelope(s.envelope(), s.privateKey)
		s.Require().NoError(err)
		s.Equal(testEncKey, out.EncKey)
		s.Equal("ci-value", out.CI)
		s.Equal(testAppKey, out.AppKey)
		s.Equal("01012345678", out.MobileNo)
		s.Equal("device-xyz", out.DeviceInfo)
		s.Equal("S", out.Telecom)
	})

	s.Run("identity layer decrypts with the recovered app key", func() {
		out, err := s.codec.DecryptEnvelope(s.envelope(), s.privateKey)
		s.Require().NoError(err)

		out, err = s.codec.DecryptIdentityLayer(out)
		s.Require().NoError(err)
		s.Equal("19900101", out.BirthDay)
		s.Equal("1234567", out.SubCode)
		s.Equal("홍길동", out.UserName)
		s.Equal("20200101", out.IssuedYmd)
	})

	s.Run("identity layer never silently succeeds with the transport key", func() {
		out, err := s.codec.DecryptEnvelope(s.envelope(), s.privateKey)
		s.Require().NoError(err)

		out.AppKey = testEncKey // substitute the wrong cascade key
		decrypted, err := s.codec.DecryptIdentityLayer(out)
		if err == nil {
			s.NotEqual("19900101", decrypted.BirthDay)
		}
	})

	s.Run("garbage wrapped key reports decrypt failure", func() {
		env := s.envelope()
		env.EncKey = base64.StdEncoding.EncodeToString([]byte("not a wrapped key"))
		_, err := s.codec.DecryptEnvelope(env, s.privateKey)
		s.True(errcode.Is(err, errcode.CodeDecryptFailed))
	})

	s.Run("corrupt transport field reports decrypt failure", func() {
		env := s.envelope()
		env.CI = "%%% not base64 %%%"
		_, err := s.codec.DecryptEnvelope(env, s.privateKey)
		s.True(errcode.Is(err, errcode.CodeDecryptFailed))
	})
}

func (s *CodecSuite) TestResponseEncryption() {
	payload := models.IdentityPayload{
		BirthDay:        "19900101",
		SubCode:         "1234567",
		UserName:        "홍길동",
		IssuedYmd:       "20200101",
		Address:         "Seoul",
		DetailAddress:   "Gangnam",
		InstitutionName: "Acme Corp",
		AppKey:          testAppKey,
		DeviceInfo:      "device-xyz",
	}

	s.Run("identity fields round-trip under the app key", func() {
		enc, err := s.codec.EncryptIdentity(payload, testAppKey)
		s.Require().NoError(err)
		s.NotEqual(payload.BirthDay, enc.BirthDay)

		dec, err := s.codec.DecryptField(enc.BirthDay, testAppKey)
		s.Require().NoError(err)
		s.Equal(payload.BirthDay, dec)
	})

	s.Run("redemption wraps app key and device under the caller key", func() {
		enc, err := s.codec.EncryptRedemption(payload, testAppKey, testEncKey)
		s.Require().NoError(err)

		appKey, err := s.codec.DecryptField(enc.AppKey, testEncKey)
		s.Require().NoError(err)
		s.Equal(testAppKey, appKey)

		device, err := s.codec.DecryptField(enc.DeviceInfo, testEncKey)
		s.Require().NoError(err)
		s.Equal("device-xyz", device)

		// Personal fields stay under the app key.
		name, err := s.codec.DecryptField(enc.UserName, testAppKey)
		s.Require().NoError(err)
		s.Equal("홍길동", name)
	})

	s.Run("bad app key reports encrypt failure", func() {
		_, err := s.codec.EncryptIdentity(payload, "short")
		s.True(errcode.Is(err, errcode.CodeEncryptFailed))
	})
}

func (s *CodecSuite) TestDisabledCodec() {
	codec := NewCodec(false)

	env := models.Envelope{EncKey: "plain-key", CI: "plain-ci"}
	out, err := codec.DecryptEnvelope(env, "not-a-key")
	s.Require().NoError(err)
	s.Equal(env, out)

	payload := models.IdentityPayload{UserName: "홍길동"}
	enc, err := codec.EncryptIdentity(payload, "whatever")
	s.Require().NoError(err)
	s.Equal(payload, enc)
}
