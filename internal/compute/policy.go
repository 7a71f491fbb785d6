package compute

import (
	"fmt"

	"github.com/chaoschain/go-evidence-provider/internal/models"
)

type PolicyEntry struct {
	Multiplier    float64
	BonusEligible bool
}

type PolicyTable map[models.VerificationMethod]PolicyEntry

func DefaultPolicy() PolicyTable {
	return PolicyTable{
		models.VerificationNone:  {Multiplier: 1.0, BonusEligible: false},
		models.VerificationTeeML: {Multiplier: 1.5, BonusEligible: true},
		models.VerificationOpML:  {Multiplier: 1.2, BonusEligible: false},
	}
}

// Override returns a copy of p with entry set for method.
func (p PolicyTable) Override(method models.VerificationMethod, entry PolicyEntry) PolicyTable {
	table := make(PolicyTable, len(p)+1)
	for k, v := range p {
		table[k] = v
	}
	table[method] = entry
	return table
}

func (e PolicyEntry) validate() error {
	if e.Multiplier <= 0 {
		return fmt.Errorf("reputation multiplier must be positive, got %v", e.Multiplier)
	}
	return nil
}

// apply settles the reputation outcome of one verification.
func (e PolicyEntry) apply(verified bool) (bool, float64) {
	if verified && e.BonusEligible {
		return true, e.Multiplier
	}
	return false, 1.0
}
