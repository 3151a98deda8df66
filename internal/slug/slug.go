// Package slug normalizes template names into stable identifiers.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxLen is the longest accepted template name.
const MaxLen = 64

var reName = regexp.MustCompile(`^[a-z][a-z0-9_]{1,63}$`)

// IsSlug reports whether s is a valid template name: lowercase ASCII letters, digits
// and underscores, starting with a letter, 2 to 64 characters.
func IsSlug(s string) bool {
	return reName.MatchString(s)
}

// Slugify turns a display name such as "Factura de Venta (CO)" into
// "factura_de_venta_co". Accents are stripped; runs of other characters become a
// single underscore.
func Slugify(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range norm.NFD.String(strings.ToLower(s)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
		default:
			pending = true
		}
		if b.Len() >= MaxLen {
			break
		}
	}
	out := b.String()
	if len(out) > MaxLen {
		out = out[:MaxLen]
	}
	return strings.TrimRight(out, "_")
}
