package rules

import (
	"time"

	"idgate/internal/verify/models"
)

// Input accumulates what earlier pipeline stages have produced. Later chains
// read prior-stage outputs from here instead of re-deriving them.
type Input struct {
	Now time.Time

	// Context resolution stage.
	Context     models.Context
	ClientIP    string
	RequestPath string

	// Envelope decryption stage.
	Envelope models.Envelope

	// Domain lookup stage. Nil means no stored record was found.
	Record *models.IdentityRecord
}

// Rule is one ordered check over the accumulated input. A nil return means
// the check passed.
type Rule func(in *Input) error

// Run evaluates chains in order and stops at the first failure.
func Run(in *Input, chains ...[]Rule) error {
	for _, chain := range chains {
		for _, rule := range chain {
			if err := rule(in); err != nil {
				return err
			}
		}
	}
	return nil
}
