package model

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// TaxIDLength is the number of digits in a cleaned CNPJ.
const TaxIDLength = 14

// ErrInvalidTaxID is returned when a tax ID does not clean to 14 digits.
var ErrInvalidTaxID = eris.New("invalid CNPJ: expected 14 digits")

var formattedTaxID = regexp.MustCompile(`^\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}$`)

// CleanTaxID strips every non-digit character.
func CleanTaxID(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidTaxID reports whether s cleans to exactly 14 digits.
func ValidTaxID(s string) bool {
	return len(CleanTaxID(s)) == TaxIDLength
}

// IsTaxID reports whether a free-text chat message should be treated as a
// CNPJ lookup rather than conversation.
func IsTaxID(text string) bool {
	text = strings.TrimSpace(text)
	return ValidTaxID(text) || formattedTaxID.MatchString(text)
}

// FormatTaxID renders a 14-digit CNPJ as NN.NNN.NNN/NNNN-NN. Other inputs
// are returned unchanged.
func FormatTaxID(s string) string {
	d := CleanTaxID(s)
	if len(d) != TaxIDLength {
		return s
	}
	return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14]
}
