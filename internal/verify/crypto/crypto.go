// Package crypto implements the hybrid request envelope: an RSA-wrapped
// per-request symmetric key protecting the transport fields, and a second
// symmetric layer over personal identity fields keyed by the bound app key
// recovered from the first. Decryption is strictly sequential across the two
// layers.
package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"

	"idgate/internal/verify/models"
	"idgate/pkg/errcode"
)

// Codec performs envelope encryption and decryption. The enabled switch is
// fixed at construction; disabled means every transform is the identity
// function, for local testing only.
type Codec struct {
	enabled bool
}

// NewCodec builds a codec with the given encryption switch.
func NewCodec(enabled bool) *Codec {
	return &Codec{enabled: enabled}
}

// Enabled reports whether envelope encryption is active.
func (c *Codec) Enabled() bool { return c.enabled }

// UnwrapKey recovers the caller's per-request symmetric key from its
// RSA-wrapped form using the context's private key (base64 PKCS8).
func (c *Codec) UnwrapKey(wrapped, privateKeyB64 string) (string, error) {
	if !c.enabled {
		return wrapped, nil
	}

	keyDER, err := base64.StdEncoding.DecodeString(privateKeyB64)
	if err != nil {
		return "", err
	}
	parsed, err := x509.ParsePKCS8PrivateKey(keyDER)
	if err != nil {
		return "", err
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return "", errors.New("private key is not RSA")
	}

	cipher, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return "", err
	}
	plain, err := rsa.DecryptPKCS1v15(nil, priv, cipher)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// WrapKey encrypts a symmetric key with a context public key (base64 PKIX).
// Callers perform this on the device; the gateway only needs it for tests
// and tooling.
func (c *Codec) WrapKey(key, publicKeyB64 string) (string, error) {
	if !c.enabled {
		return key, nil
	}

	keyDER, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return "", err
	}
	parsed, err := x509.ParsePKIXPublicKey(keyDER)
	if err != nil {
		return "", err
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return "", errors.New("public key is not RSA")
	}

	cipher, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(key))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(cipher), nil
}

// DecryptField decrypts one base64 field with the given key string.
func (c *Codec) DecryptField(value, key string) (string, error) {
	if !c.enabled {
		return value, nil
	}
	cipher, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", err
	}
	plain, err := ecbDecrypt(cipher, []byte(key))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// EncryptField encrypts one field with the given key string, returning
// base64. Empty values pass through untouched.
func (c *Codec) EncryptField(value, key string) (string, error) {
	if !c.enabled || value == "" {
		return value, nil
	}
	cipher, err := ecbEncrypt([]byte(value), []byte(key))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(cipher), nil
}

// DecryptEnvelope recovers the transport layer of a request: the wrapped key
// is RSA-unwrapped with the context private key, then the transport fields
// are decrypted with the recovered key. Telecom travels in plaintext. Either
// stage failing reports the single decrypt-failed code.
func (c *Codec) DecryptEnvelope(env models.Envelope, privateKeyB64 string) (models.Envelope, error) {
	if !c.enabled {
		return env, nil
	}

	encKey, err := c.UnwrapKey(env.EncKey, privateKeyB64)
	if err != nil {
		return models.Envelope{}, errcode.Wrap(errcode.CodeDecryptFailed, err)
	}
	env.EncKey = encKey

	for _, f := range []*string{&env.CI, &env.AppKey, &env.MobileNo, &env.DeviceInfo} {
		if *f == "" {
			continue
		}
		plain, err := c.DecryptField(*f, encKey)
		if err != nil {
			return models.Envelope{}, errcode.Wrap(errcode.CodeDecryptFailed, err)
		}
		*f = plain
	}
	return env, nil
}

// DecryptIdentityLayer decrypts the personal fields with the bound app key
// recovered by DecryptEnvelope. This cannot run before the transport layer;
// the key is not known until then.
func (c *Codec) DecryptIdentityLayer(env models.Envelope) (models.Envelope, error) {
	if !c.enabled {
		return env, nil
	}

	for _, f := range []*string{&env.BirthDay, &env.SubCode, &env.UserName, &env.IssuedYmd} {
		if *f == "" {
			continue
		}
		plain, err := c.DecryptField(*f, env.AppKey)
		if err != nil {
			return models.Envelope{}, errcode.Wrap(errcode.CodeDecryptFailed, err)
		}
		*f = plain
	}
	return env, nil
}

// EncryptIdentity re-encrypts a response payload's personal fields with the
// bound app key.
func (c *Codec) EncryptIdentity(p models.IdentityPayload, appKey string) (models.IdentityPayload, error) {
	if !c.enabled {
		return p, nil
	}

	var err error
	for _, f := range []*string{
		&p.BirthDay, &p.SubCode, &p.UserName, &p.IssuedYmd,
		&p.Address, &p.DetailAddress, &p.Photo, &p.InstitutionName,
	} {
		if *f, err = c.EncryptField(*f, appKey); err != nil {
			return models.IdentityPayload{}, errcode.Wrap(errcode.CodeEncryptFailed, err)
		}
	}
	return p, nil
}

// EncryptRedemption builds a redemption response payload: personal fields
// under the app key, plus AppKey and DeviceInfo under the redeeming caller's
// per-request key, so a captured QR image alone cannot unlock the response.
func (c *Codec) EncryptRedemption(p models.IdentityPayload, appKey, encKey string) (models.IdentityPayload, error) {
	if !c.enabled {
		return p, nil
	}

	out, err := c.EncryptIdentity(p, appKey)
	if err != nil {
		return models.IdentityPayload{}, err
	}
	if out.AppKey, err = c.EncryptField(p.AppKey, encKey); err != nil {
		return models.IdentityPayload{}, errcode.Wrap(errcode.CodeEncryptFailed, err)
	}
	if out.DeviceInfo, err = c.EncryptField(p.DeviceInfo, encKey); err != nil {
		return models.IdentityPayload{}, errcode.Wrap(errcode.CodeEncryptFailed, err)
	}
	return out, nil
}
