package callsync

import (
	"strconv"
	"strings"

	"github.com/sells-group/callsync/pkg/threec"
)

// Verdict is the outcome of a single call attempt.
type Verdict int

const (
	// VerdictNoAnswer covers every call without usable talk time.
	VerdictNoAnswer Verdict = iota
	// VerdictSuccess means someone talked on the call.
	VerdictSuccess
	// VerdictVoicemail means the call reached a voicemail box. It may carry
	// talk time but never counts as a success.
	VerdictVoicemail
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictVoicemail:
		return "voicemail"
	default:
		return "no_answer"
	}
}

// Classification is the classifier's result for one call.
type Classification struct {
	StatusLabel string  `json:"status_label"`
	Seconds     int     `json:"seconds"`
	Verdict     Verdict `json:"-"`
}

// IsSuccess reports whether the call counts as a successful contact.
func (c Classification) IsSuccess() bool {
	return c.Verdict == VerdictSuccess
}

// Classifier derives the status label and verdict of a call.
type Classifier struct {
	defaultLabel string
	voicemail    map[string]struct{}
}

// NewClassifier creates a Classifier. Voicemail labels match exactly and
// case-sensitively.
func NewClassifier(defaultLabel string, voicemailLabels []string) *Classifier {
	vm := make(map[string]struct{}, len(voicemailLabels))
	for _, l := range voicemailLabels {
		vm[l] = struct{}{}
	}
	return &Classifier{defaultLabel: defaultLabel, voicemail: vm}
}

// Classify never fails; unusable inputs fall through to the default label
// and zero seconds.
func (c *Classifier) Classify(call threec.Call) Classification {
	label := c.statusLabel(call)
	seconds := ParseTalkTime(call.SpeakingTime)

	verdict := VerdictNoAnswer
	switch {
	case c.isVoicemail(label):
		verdict = VerdictVoicemail
	case seconds > 0:
		verdict = VerdictSuccess
	}

	return Classification{StatusLabel: label, Seconds: seconds, Verdict: verdict}
}

func (c *Classifier) statusLabel(call threec.Call) string {
	if label, ok := call.Qualification.Label(); ok {
		return label
	}
	if text := strings.TrimSpace(call.ReadableStatusText); text != "" && text != "-" {
		return text
	}
	return c.defaultLabel
}

func (c *Classifier) isVoicemail(label string) bool {
	_, ok := c.voicemail[label]
	return ok
}

// talkTimeFields bounds each field of a talk time: hours, minutes, seconds.
var talkTimeFields = []struct {
	unit, limit int
}{
	{3600, 100_000},
	{60, 60},
	{1, 60},
}

// ParseTalkTime converts "HH:MM:SS" to whole seconds. Anything that is not
// three non-negative integer fields within range yields 0.
func ParseTalkTime(s string) int {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != len(talkTimeFields) {
		return 0
	}
	total := 0
	for i, f := range talkTimeFields {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 || n >= f.limit {
			return 0
		}
		total += n * f.unit
	}
	return total
}
