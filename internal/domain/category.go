package domain

import "strings"

// CategoryOther is the fallback ledger category for rules whose free-form
// category label is not part of the closed taxonomy.
const CategoryOther = "Other"

// ledgerCategories is the closed set of categories the ledger accepts.
// Keys are normalized; values are the canonical spelling.
var ledgerCategories = map[string]string{}

func init() {
	for _, name := range []string{
		"Housing",
		"Transportation",
		"Food",
		"Utilities",
		"Insurance",
		"Healthcare",
		"Entertainment",
		"Personal",
		"Savings",
		"Debt",
		"Salary",
		"Investment",
		CategoryOther,
	} {
		ledgerCategories[normalizeCategory(name)] = name
	}
}

// ResolveLedgerCategory maps a rule's free-form category label onto the
// closed ledger set, substituting CategoryOther when it does not belong.
// Matching is case-insensitive and whitespace-tolerant.
func ResolveLedgerCategory(category string) string {
	if canonical, ok := ledgerCategories[normalizeCategory(category)]; ok {
		return canonical
	}
	return CategoryOther
}

// normalizeCategory normalizes a category name for comparison.
func normalizeCategory(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
