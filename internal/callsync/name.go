package callsync

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/callsync/pkg/threec"
)

// Name is the display name derived for a contact.
type Name struct {
	Value string
	// IsGeneric marks the placeholder. Generic names never overwrite a name
	// already stored in the CRM.
	IsGeneric bool
}

// Mailing uploads use whatever column names the operator picked. These are
// tried first, in order.
var nameKeys = []string{"Nome", "nome", "NOME", "name", "Name", "NAME"}

// Any other key containing one of these (case-insensitive) is a fallback.
var nameKeyFragments = []string{"name", "nome", "cliente", "customer"}

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	entityDecoder = strings.NewReplacer(
		"&nbsp;", " ",
		"&#160;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#34;", `"`,
		"&#39;", "'",
		"&apos;", "'",
	)
)

const quoteChars = `"'` + "`“”‘’"

// DeriveName returns the sanitized mailing name, or the placeholder when the
// mailing carries none.
func DeriveName(m *threec.Mailing, placeholder string) Name {
	if name, ok := ExtractName(m); ok {
		return Name{Value: name}
	}
	return Name{Value: placeholder, IsGeneric: true}
}

// ExtractName finds a person's name in the first mailing row. This is a
// best-effort heuristic over vendor column names.
func ExtractName(m *threec.Mailing) (string, bool) {
	row := m.First()
	if row == nil {
		return "", false
	}

	for _, key := range nameKeys {
		if name, ok := nameValue(row[key]); ok {
			return name, true
		}
	}

	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		lower := strings.ToLower(key)
		for _, frag := range nameKeyFragments {
			if !strings.Contains(lower, frag) {
				continue
			}
			if name, ok := nameValue(row[key]); ok {
				return name, true
			}
			break
		}
	}
	return "", false
}

func nameValue(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	name := SanitizeName(s)
	if name == "" || name == "-" {
		return "", false
	}
	return name, true
}

// SanitizeName strips markup and entities from a vendor-supplied name.
// "<span>João&nbsp;Silva</span>" becomes "João Silva".
func SanitizeName(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = entityDecoder.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, quoteChars)
	s = strings.TrimSpace(s)
	return norm.NFC.String(s)
}
