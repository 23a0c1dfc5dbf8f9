// Package address normalizes raw street and town text into the canonical
// single-line address used for geocoding queries and drift comparison.
package address

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Canonical is the derived address value for one service record.
type Canonical struct {
	// Street and Town are the normalized display values.
	Street string
	Town   string

	// Address is the single-line canonical form: street alone when town is
	// empty, "street, town" otherwise, empty when street is empty.
	Address string

	// UsedFallback is true when the service had no install street and the
	// customer's own address was substituted.
	UsedFallback bool
}

// Canonicalize derives the canonical address for a service. When the
// service-level install street is empty, the customer's street and city
// take its place and UsedFallback is set.
func Canonicalize(installStreet, installTown, customerStreet, customerCity string) Canonical {
	street, town := installStreet, installTown
	usedFallback := false
	if strings.TrimSpace(street) == "" {
		street = customerStreet
		town = customerCity
		usedFallback = true
	}

	c := Canonical{
		Street:       TitleWords(street),
		Town:         TitleWords(town),
		UsedFallback: usedFallback,
	}

	switch {
	case c.Street == "":
		c.Address = ""
	case c.Town == "":
		c.Address = c.Street
	default:
		c.Address = c.Street + ", " + c.Town
	}
	return c
}

// TitleWords lower-cases the input and capitalizes the first letter of each
// whitespace-separated word. Empty input normalizes to the empty string.
// Words are split on whitespace only, so hyphenated compounds keep a single
// leading capital ("mt-eden" becomes "Mt-eden").
func TitleWords(s string) string {
	// Casers are stateful and not safe for concurrent use, so each call
	// gets its own.
	lower := cases.Lower(language.English)
	words := strings.Fields(lower.String(s))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if r == utf8.RuneError {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
