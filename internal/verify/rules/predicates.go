// Package rules implements the layered validation pipeline: pure field
// predicates composed into ordered rule chains. Evaluation is fail-fast; the
// first failing rule determines the reported code and later rules never run.
package rules

import (
	"regexp"
	"strings"
	"time"

	"idgate/internal/verify/models"
)

var nameRe = regexp.MustCompile(`^[a-zA-Z가-힣]*$`)

// IsBlank reports whether the value is empty after trimming whitespace.
func IsBlank(v string) bool {
	return strings.TrimSpace(v) == ""
}

// MaxLen reports whether the value fits within max characters.
func MaxLen(v string, max int) bool {
	return len([]rune(v)) <= max
}

// ValidDate reports whether the value is a real calendar date in 8-digit
// form.
func ValidDate(v string) bool {
	t, err := time.Parse(models.DateLayout, v)
	return err == nil && t.Format(models.DateLayout) == v
}

// IsPast reports whether the date is strictly before today.
func IsPast(v string, now time.Time) bool {
	t, err := time.Parse(models.DateLayout, v)
	if err != nil {
		return false
	}
	today, _ := time.Parse(models.DateLayout, now.Format(models.DateLayout))
	return t.Before(today)
}

// Numeric reports whether the value is an unsigned decimal number of at
// least min.
func Numeric(v string, min int) bool {
	if IsBlank(v) {
		return false
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return false
		}
		n = n*10 + int(r-'0')
	}
	return n >= min
}

// ValidName reports whether the value contains only Latin or Hangul letters.
func ValidName(v string) bool {
	return nameRe.MatchString(v)
}

// WithinWindow reports whether now falls inside [start, end] inclusive. A
// malformed bound fails closed.
func WithinWindow(now time.Time, startYmd, endYmd string) bool {
	if !ValidDate(startYmd) || !ValidDate(endYmd) {
		return false
	}
	today := now.Format(models.DateLayout)
	return today >= startYmd && today <= endYmd
}

// ValidMobileNo reports whether the number is all-numeric or carries the
// mobile prefix "01".
func ValidMobileNo(v string) bool {
	return Numeric(v, 0) || strings.HasPrefix(v, "01")
}

// ValidTelecom reports whether the carrier code is in the closed set.
func ValidTelecom(v string) bool {
	return v == "S" || v == "K" || v == "L"
}

// ValidSubCode checks the decade-parity rule binding the sub-code's first
// digit to the birth year: years 18xx allow {0,9}, odd decades {1,2,5,6},
// even decades {3,4,7,8}.
func ValidSubCode(birthDay, subCode string) bool {
	if len(birthDay) < 2 || subCode == "" {
		return false
	}
	century := birthDay[:2]
	first := subCode[0]

	if century == "18" {
		return first == '0' || first == '9'
	}
	if !Numeric(century, 0) {
		return false
	}
	n := int(century[0]-'0')*10 + int(century[1]-'0')
	if n%2 == 1 {
		return first == '1' || first == '2' || first == '5' || first == '6'
	}
	return first == '3' || first == '4' || first == '7' || first == '8'
}
