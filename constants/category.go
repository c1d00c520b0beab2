package constants

import (
	"strings"
)

// Category is the product category of an invoiced line. It decides the ledger account.
type Category string

const (
	SoftwareLicense      Category = "SoftwareLicense"
	SoftwareSubscription Category = "SoftwareSubscription"
	CloudService         Category = "CloudService"
	Hardware             Category = "Hardware"
	Consulting           Category = "Consulting"
	Other                Category = "Other"
)

var allCategories = []Category{
	SoftwareLicense,
	SoftwareSubscription,
	CloudService,
	Hardware,
	Consulting,
	Other,
}

// accountCodes maps a category to the ledger account in the target system.
var accountCodes = map[Category]string{
	SoftwareLicense:      "5420",
	SoftwareSubscription: "5420",
	CloudService:         "5421",
	Hardware:             "5410",
	Consulting:           "6550",
	Other:                "6990",
}

// AccountCode returns the ledger account for a category; unknown categories map to Other.
func AccountCode(c Category) string {
	if code, ok := accountCodes[c]; ok {
		return code
	}
	return accountCodes[Other]
}

func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map (Swedish labels come from the reference workbook)
	synonyms := map[string]Category{
		"license":       SoftwareLicense,
		"licens":        SoftwareLicense,
		"licenser":      SoftwareLicense,
		"csp":           SoftwareLicense,
		"saas":          SoftwareSubscription,
		"subscription":  SoftwareSubscription,
		"prenumeration": SoftwareSubscription,
		"azure":         CloudService,
		"cloud":         CloudService,
		"molntjänst":    CloudService,
		"hårdvara":      Hardware,
		"konsult":       Consulting,
		"consulting":    Consulting,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	// check if it matches any category string
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return Other, false
}
