// Package qr implements the visual token lifecycle: issue renders a subject
// id plus issuance timestamp as a base64 PNG, decode reverses it, and the
// window check bounds redemption in time.
package qr

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/png"
	"strings"
	"time"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	skqr "github.com/skip2/go-qrcode"

	"idgate/pkg/errcode"
)

const (
	delimiter       = "_"
	timestampLayout = "20060102150405"
)

// Token is the decoded content of a scanned QR image.
type Token struct {
	SubjectID string
	IssuedAt  time.Time
}

// Content returns the wire form of the token.
func (t Token) Content() string {
	return t.SubjectID + delimiter + t.IssuedAt.Format(timestampLayout)
}

// Service issues and decodes QR tokens. Window and margin together bound a
// token's redeemable life; the margin absorbs clock skew between the gateway
// and scanning devices.
type Service struct {
	size   int
	window time.Duration
	margin time.Duration
}

// New builds a QR service rendering images of the given edge size.
func New(size int, window, margin time.Duration) *Service {
	return &Service{size: size, window: window, margin: margin}
}

// Issue renders a token for the subject at the given instant and returns the
// PNG as base64. Nothing is persisted at issue time.
func (s *Service) Issue(subjectID string, now time.Time) (string, error) {
	content := Token{SubjectID: subjectID, IssuedAt: now}.Content()
	png, err := skqr.Encode(content, skqr.Medium, s.size)
	if err != nil {
		return "", errcode.Wrap(errcode.CodeQRCreateFailed, err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// Decode recovers the token from a base64 PNG. Any failure along the way, a
// bad encoding, an unscannable image or wrong content shape, reports the
// single malformed-token code.
func (s *Service) Decode(encoded string) (Token, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Token{}, errcode.Wrap(errcode.CodeQRMalformed, err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Token{}, errcode.Wrap(errcode.CodeQRMalformed, err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return Token{}, errcode.Wrap(errcode.CodeQRMalformed, err)
	}
	result, err := zxqr.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return Token{}, errcode.Wrap(errcode.CodeQRMalformed, err)
	}

	parts := strings.Split(result.GetText(), delimiter)
	if len(parts) != 2 {
		return Token{}, errcode.New(errcode.CodeQRMalformed)
	}
	issued, err := time.Parse(timestampLayout, parts[1])
	if err != nil {
		return Token{}, errcode.Wrap(errcode.CodeQRMalformed, err)
	}
	return Token{SubjectID: parts[0], IssuedAt: issued}, nil
}

// CheckWindow verifies the token is still redeemable at now. The effective
// TTL is window plus margin, inclusive at the boundary.
func (s *Service) CheckWindow(t Token, now time.Time) error {
	expiry := t.IssuedAt.Add(s.window + s.margin)
	if now.After(expiry) {
		return errcode.New(errcode.CodeQRExpired)
	}
	return nil
}
