package callsync

import "strings"

// NormalizePhone keeps only the ASCII digits of a raw phone field.
// "(11) 98888-0000" becomes "11988880000".
func NormalizePhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
