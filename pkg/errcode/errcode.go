// Package errcode defines the closed result-code taxonomy of the verification
// protocol. Every failure the gateway reports maps to exactly one code;
// anything unrecognized collapses to CodeUnexpected so the caller-visible
// surface stays stable.
package errcode

import (
	"errors"
	"fmt"
)

// Code identifies one failure kind on the wire.
type Code string

const (
	CodeMalformedRequest Code = "F101"
	CodeMissingField     Code = "F102"
	CodeInvalidField     Code = "F103"

	CodeInstitutionNotAllowed Code = "F104"
	CodeApplicationNotAllowed Code = "F105"
	CodeURLNotAllowed         Code = "F106"
	CodeIPNotAllowed          Code = "F107"
	CodeKeyInvalid            Code = "F108"
	CodeDecryptFailed         Code = "F109"
	CodeEncryptFailed         Code = "F110"

	CodeIdentityNumberInvalid Code = "F111"
	CodeIdentityParity        Code = "F112"
	CodeLinkRequestFailed     Code = "F119"

	CodeAlreadyRegistered Code = "F200"
	CodeNotRegistered     Code = "F201"
	CodeMobileMismatch    Code = "F202"
	CodeDeviceMismatch    Code = "F203"
	CodeAppKeyMismatch    Code = "F204"
	CodeTelecomMismatch   Code = "F205"
	CodeServiceSuspended  Code = "F206"
	CodeServiceExpired    Code = "F207"
	CodeTokenExpired      Code = "F208"
	CodeRegistrationError Code = "F209"

	CodeEmploymentInactive Code = "F301"
	CodeCredentialInvalid  Code = "F302"
	CodeIdentityMismatch   Code = "F303"

	CodeQRCreateFailed Code = "F401"
	CodeQRInvalid      Code = "F402"
	CodeQRMobile       Code = "F403"
	CodeQRExpired      Code = "F404"
	CodeQRMalformed    Code = "F499"

	CodeLinkKeyIssueFailed   Code = "F501"
	CodePublicKeyIssueFailed Code = "F502"

	CodeInternal   Code = "F801"
	CodeUnexpected Code = "F901"
)

// descriptions carry the caller-facing message per code. Parameterized codes
// use a %s placeholder filled by Newf.
var descriptions = map[Code]string{
	CodeMalformedRequest:      "malformed request body",
	CodeMissingField:          "missing required value [%s]",
	CodeInvalidField:          "invalid value or format [%s]",
	CodeInstitutionNotAllowed: "institution not allowed",
	CodeApplicationNotAllowed: "application not allowed",
	CodeURLNotAllowed:         "URL not allowed",
	CodeIPNotAllowed:          "IP not allowed",
	CodeKeyInvalid:            "key pair missing or outside validity window",
	CodeDecryptFailed:         "envelope decrypt failed",
	CodeEncryptFailed:         "envelope encrypt failed",
	CodeIdentityNumberInvalid: "invalid identity number",
	CodeIdentityParity:        "identity number year and sub-code mismatch",
	CodeLinkRequestFailed:     "link request failed",
	CodeAlreadyRegistered:     "already registered",
	CodeNotRegistered:         "not registered",
	CodeMobileMismatch:        "mobile number mismatch",
	CodeDeviceMismatch:        "device information mismatch",
	CodeAppKeyMismatch:        "app key mismatch",
	CodeTelecomMismatch:       "telecom mismatch",
	CodeServiceSuspended:      "service suspended, re-registration required",
	CodeServiceExpired:        "service period expired",
	CodeTokenExpired:          "link token expired",
	CodeRegistrationError:     "registration information error",
	CodeEmploymentInactive:    "abnormal employment status",
	CodeCredentialInvalid:     "abnormal credential status",
	CodeIdentityMismatch:      "identity information mismatch",
	CodeQRCreateFailed:        "QR code creation failed",
	CodeQRInvalid:             "QR code verification failed",
	CodeQRMobile:              "QR mobile number mismatch",
	CodeQRExpired:             "QR code expired",
	CodeQRMalformed:           "QR code error",
	CodeLinkKeyIssueFailed:    "link key issuance failed",
	CodePublicKeyIssueFailed:  "public key issuance failed",
	CodeInternal:              "internal error [%s]",
	CodeUnexpected:            "unexpected error",
}

// Error is a typed failure carrying its code and caller-facing message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// New creates an error for the given code with its canonical message.
func New(code Code) *Error {
	return &Error{Code: code, Message: descriptions[code]}
}

// Newf creates an error for a parameterized code, filling its placeholder.
func Newf(code Code, detail string) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(descriptions[code], detail)}
}

// Wrap attaches a cause to a coded error. The cause is logged internally,
// never returned to the caller.
func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Message: descriptions[code], cause: cause}
}

// Wrapf attaches a cause to a parameterized coded error.
func Wrapf(code Code, cause error, detail string) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(descriptions[code], detail), cause: cause}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// CodeOf extracts the code from an error, mapping anything unrecognized to
// CodeUnexpected.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnexpected
}

// MessageOf extracts the caller-facing message from an error.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return descriptions[CodeUnexpected]
}
