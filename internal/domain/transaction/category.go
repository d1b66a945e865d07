package transaction

import "strings"

// Uncategorized is stored when the provider sends no category.
const Uncategorized = "uncategorized"

// categoryAliases maps provider category labels (lowercased) onto the
// categories the app groups spending by.
var categoryAliases = map[string]string{
	"food and drink":      "dining",
	"food & drink":        "dining",
	"restaurants":         "dining",
	"fast food":           "dining",
	"food delivery":       "dining",
	"groceries":           "groceries",
	"supermarkets":        "groceries",
	"entertainment":       "entertainment",
	"streaming":           "entertainment",
	"music":               "entertainment",
	"video streaming":     "entertainment",
	"shopping":            "shopping",
	"general merchandise": "shopping",
	"online marketplaces": "shopping",
	"transportation":      "transport",
	"rideshare":           "transport",
	"taxi":                "transport",
	"travel":              "travel",
	"subscription":        "subscriptions",
	"subscriptions":       "subscriptions",
}

// NormalizeCategory returns the canonical category for a provider label.
// Unknown labels are kept, lowercased and trimmed.
func NormalizeCategory(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return Uncategorized
	}
	if canonical, ok := categoryAliases[key]; ok {
		return canonical
	}
	return key
}
