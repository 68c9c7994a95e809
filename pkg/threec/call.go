package threec

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// QualificationKind tags how the qualification field arrived on the wire.
type QualificationKind int

const (
	// QualificationNone means the field was absent or null.
	QualificationNone QualificationKind = iota
	// QualificationText means the field was a plain string.
	QualificationText
	// QualificationObject means the field was an object carrying a name.
	QualificationObject
)

// Qualification is the agent's tabulation for a call. The API sends either a
// bare string or an object with a "name" field; both collapse to Name here.
type Qualification struct {
	Kind QualificationKind
	Name string
}

// Label returns the qualification name when it is usable as a status label.
func (q Qualification) Label() (string, bool) {
	if q.Kind == QualificationNone {
		return "", false
	}
	name := strings.TrimSpace(q.Name)
	if name == "" || name == "-" {
		return "", false
	}
	return name, true
}

func (q *Qualification) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*q = Qualification{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "threec: decode qualification")
		}
		*q = Qualification{Kind: QualificationText, Name: s}
	case data[0] == '{':
		var obj struct {
			Name json.RawMessage `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return eris.Wrap(err, "threec: decode qualification")
		}
		*q = Qualification{Kind: QualificationObject, Name: flexString(obj.Name)}
	default:
		*q = Qualification{Kind: QualificationText, Name: flexString(data)}
	}
	return nil
}

// Mailing holds the vendor-defined mailing rows attached to a call. Key names
// are whatever the mailing list uploader used.
type Mailing struct {
	Records []map[string]any
}

// First returns the first mailing row, or nil when there is none. Row order
// is taken as the API returns it.
func (m *Mailing) First() map[string]any {
	if m == nil || len(m.Records) == 0 {
		return nil
	}
	return m.Records[0]
}

func (m *Mailing) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		m.Records = nil
		return nil
	}

	// {"data": [...]} or {"data": {...}} is the documented shape; a bare
	// array or a bare row also show up in older accounts.
	if data[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return eris.Wrap(err, "threec: decode mailing data")
		}
		if inner, ok := wrapper["data"]; ok {
			return m.decodeRows(inner)
		}
	}
	return m.decodeRows(data)
}

func (m *Mailing) decodeRows(data []byte) error {
	data = bytes.TrimSpace(data)
	m.Records = nil
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '[':
		var rows []json.RawMessage
		if err := json.Unmarshal(data, &rows); err != nil {
			return eris.Wrap(err, "threec: decode mailing rows")
		}
		for _, raw := range rows {
			var row map[string]any
			if err := json.Unmarshal(raw, &row); err != nil {
				// Non-object rows carry nothing we can read a name from.
				continue
			}
			if row != nil {
				m.Records = append(m.Records, row)
			}
		}
	case '{':
		var row map[string]any
		if err := json.Unmarshal(data, &row); err != nil {
			return eris.Wrap(err, "threec: decode mailing row")
		}
		m.Records = []map[string]any{row}
	}
	return nil
}

// Call is one call attempt as reported by the 3C calls endpoint. Only the
// fields the sync engine reads are decoded.
type Call struct {
	ID                 string
	Number             string
	SpeakingTime       string
	Qualification      Qualification
	ReadableStatusText string
	CallDate           string
	CreatedAt          string
	Mailing            *Mailing
}

type wireCall struct {
	ID                 json.RawMessage `json:"id"`
	LegacyID           json.RawMessage `json:"_id"`
	Number             json.RawMessage `json:"number"`
	SpeakingTime       json.RawMessage `json:"speaking_time"`
	Qualification      Qualification   `json:"qualification"`
	ReadableStatusText json.RawMessage `json:"readable_status_text"`
	CallDate           json.RawMessage `json:"call_date_rfc3339"`
	CreatedAt          json.RawMessage `json:"created_at"`
	Mailing            *Mailing        `json:"mailing_data"`
}

func (c *Call) UnmarshalJSON(data []byte) error {
	var w wireCall
	if err := json.Unmarshal(data, &w); err != nil {
		return eris.Wrap(err, "threec: decode call")
	}
	id := flexString(w.ID)
	if id == "" {
		id = flexString(w.LegacyID)
	}
	*c = Call{
		ID:                 id,
		Number:             flexString(w.Number),
		SpeakingTime:       flexString(w.SpeakingTime),
		Qualification:      w.Qualification,
		ReadableStatusText: flexString(w.ReadableStatusText),
		CallDate:           flexString(w.CallDate),
		CreatedAt:          flexString(w.CreatedAt),
		Mailing:            w.Mailing,
	}
	return nil
}

// Timestamp returns the primary call timestamp, falling back to created_at.
func (c Call) Timestamp() string {
	if c.CallDate != "" {
		return c.CallDate
	}
	return c.CreatedAt
}

// flexString renders a JSON scalar as a string. Strings are returned as-is,
// numbers in their literal form, everything else as "".
func flexString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return ""
		}
		return n.String()
	default:
		return ""
	}
}

// DecodeCalls decodes a call listing, either {"data": [...]} or a bare array.
func DecodeCalls(body []byte) ([]Call, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, eris.New("threec: empty response body")
	}

	if body[0] == '[' {
		var calls []Call
		if err := json.Unmarshal(body, &calls); err != nil {
			return nil, eris.Wrap(err, "threec: unmarshal calls")
		}
		return calls, nil
	}

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, eris.Wrap(err, "threec: unmarshal response")
	}
	data := bytes.TrimSpace(wrapper.Data)
	if len(data) == 0 || data[0] != '[' {
		return nil, eris.New("threec: response has no call list")
	}
	var calls []Call
	if err := json.Unmarshal(data, &calls); err != nil {
		return nil, eris.Wrap(err, "threec: unmarshal calls")
	}
	return calls, nil
}
