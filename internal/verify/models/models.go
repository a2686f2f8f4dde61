// Package models holds the domain types shared by the verification pipeline:
// the resolved caller context, the canonical identity record, and the QR
// redemption history shapes.
package models

import (
	"strings"
	"time"
)

// EmploymentStatus is the subject's employment state. Only active subjects
// pass cross-record validation.
type EmploymentStatus string

const (
	EmploymentActive  EmploymentStatus = "active"
	EmploymentOnLeave EmploymentStatus = "on_leave"
	EmploymentRetired EmploymentStatus = "retired"
)

// CredentialStatus is the physical state of the issued employee ID.
type CredentialStatus string

const (
	CredentialNormal  CredentialStatus = "normal"
	CredentialDamaged CredentialStatus = "damaged"
	CredentialLost    CredentialStatus = "lost"
)

// DateLayout is the 8-digit calendar date format used throughout the wire
// protocol and validity windows.
const DateLayout = "20060102"

// KeyPair is the context's RSA material with its own validity window,
// independent of the institution and application windows.
type KeyPair struct {
	PublicKey  string
	PrivateKey string
	StartYmd   string
	EndYmd     string
}

// Context is the resolved institution+application pair authorizing a caller.
// Allow-lists are stored as comma-delimited text and parsed at validation
// time. Read-only during request handling.
type Context struct {
	InstitutionID     string
	InstitutionName   string
	InstitutionActive bool
	InstitutionStart  string
	InstitutionEnd    string

	ApplicationID     string
	ApplicationName   string
	ApplicationActive bool
	ApplicationStart  string
	ApplicationEnd    string

	AllowedIPs  string
	AllowedURLs string

	Keys *KeyPair
}

// AllowedIPSet parses the IP allow-list into a membership set.
func (c Context) AllowedIPSet() map[string]struct{} {
	return splitSet(c.AllowedIPs)
}

// AllowedURLSet parses the URL allow-list into a membership set.
func (c Context) AllowedURLSet() map[string]struct{} {
	return splitSet(c.AllowedURLs)
}

func splitSet(v string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}

// IdentityRecord is the canonical identity data for one individual, owned by
// the identity store. The pipeline reads and validates it; register and
// terminate are the only operations that mutate it.
type IdentityRecord struct {
	SubjectID string
	CI        string

	BirthDay  string
	SubCode   string
	UserName  string
	IssuedYmd string

	MobileNo   string
	DeviceInfo string
	Telecom    string
	AppKey     string

	Address1 string
	Address2 string
	Photo    []byte

	InstitutionName string

	Employment EmploymentStatus
	Credential CredentialStatus
	Registered bool
}

// QRHistoryStatus marks the outcome of a redemption attempt.
type QRHistoryStatus string

const (
	QRHistoryPending QRHistoryStatus = "P"
	QRHistorySuccess QRHistoryStatus = "S"
	QRHistoryFailed  QRHistoryStatus = "F"
)

// QRHistoryRecord records one redemption attempt. Exactly one row exists per
// attempt regardless of outcome.
type QRHistoryRecord struct {
	ID            int64
	Token         string
	SubjectID     string
	InstitutionID string
	ApplicationID string
	Status        QRHistoryStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HistoryQuery carries the pagination and filter surface of the history
// operation.
type HistoryQuery struct {
	InstitutionID string
	ApplicationID string

	// Page is 1-based; Limit is the page size. Order is "ASC" or "DESC" by
	// creation time.
	Page  int
	Limit int
	Order string

	// Status filters by outcome: "S", "F", or "A" for all.
	Status string
	// Range is "APP" to restrict to the calling application, "ALL" for every
	// application of the institution.
	Range string

	StartYmd string
	EndYmd   string
}

// HistoryPage is one page of redemption history.
type HistoryPage struct {
	Items   []QRHistoryRecord
	HasNext bool
	Total   int
}
