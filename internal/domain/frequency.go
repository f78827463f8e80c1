package domain

import "fmt"

// Frequency is the cadence of a recurrence rule.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// ParseFrequency validates a raw frequency string.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(s)
	if !f.Valid() {
		return "", fmt.Errorf("ParseFrequency: unknown frequency %q", s)
	}
	return f, nil
}

// Valid reports whether f is one of the supported cadences.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly,
		FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// Kind distinguishes money coming in from money going out.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// ParseKind validates a raw kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if k != KindIncome && k != KindExpense {
		return "", fmt.Errorf("ParseKind: unknown kind %q", s)
	}
	return k, nil
}

// Payment methods are fixed per kind; the recurring engine never lets the
// user pick a method per occurrence.
const (
	MethodDirectDeposit = "direct_deposit"
	MethodBankTransfer  = "bank_transfer"
)

// MethodFor returns the payment method recorded on materialized
// transactions of the given kind.
func MethodFor(k Kind) string {
	if k == KindIncome {
		return MethodDirectDeposit
	}
	return MethodBankTransfer
}
