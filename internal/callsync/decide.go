package callsync

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/callsync/internal/config"
	"github.com/sells-group/callsync/pkg/hubspot"
	"github.com/sells-group/callsync/pkg/threec"
)

// ActionKind is one of the CRM writes the decision table can produce.
type ActionKind int

const (
	// ActionSkip performs no write.
	ActionSkip ActionKind = iota
	// ActionUpdateSuccess refreshes every outcome field of an existing contact.
	ActionUpdateSuccess
	// ActionUpdateFailure only stamps the last unsuccessful attempt.
	ActionUpdateFailure
	// ActionCreateSuccess creates a contact from an answered call.
	ActionCreateSuccess
	// ActionCreateFailure creates a contact from an unanswered first call.
	ActionCreateFailure
)

func (k ActionKind) String() string {
	switch k {
	case ActionUpdateSuccess:
		return "update_success"
	case ActionUpdateFailure:
		return "update_failure"
	case ActionCreateSuccess:
		return "create_success"
	case ActionCreateFailure:
		return "create_failure"
	default:
		return "skip"
	}
}

// IsCreate reports whether the action creates a new contact.
func (k ActionKind) IsCreate() bool {
	return k == ActionCreateSuccess || k == ActionCreateFailure
}

// Action is a single CRM write, fully computed before it is applied.
type Action struct {
	Kind       ActionKind
	ContactID  string
	Phone      string
	Properties hubspot.Properties
}

// Decider turns an outcome and an optional existing contact into an Action.
type Decider struct {
	props             config.PropertyConfig
	defaultLabel      string
	notAnsweredLabel  string
	skipUnansweredNew bool
	recordingURL      func(callID string) string
	times             *TimeFormatter
}

// NewDecider creates a Decider. recordingURL derives the recording link from
// a call id.
func NewDecider(props config.PropertyConfig, sc config.SyncConfig, recordingURL func(string) string, times *TimeFormatter) *Decider {
	return &Decider{
		props:             props,
		defaultLabel:      sc.DefaultStatusLabel,
		notAnsweredLabel:  sc.NotAnsweredLabel,
		skipUnansweredNew: sc.SkipUnansweredNew,
		recordingURL:      recordingURL,
		times:             times,
	}
}

// Decide applies the decision table:
//
//	existing  success  action
//	yes       yes      full update (name only when not generic)
//	yes       no       stamp last unsuccessful attempt only
//	no        yes      create with the full property set
//	no        no       create with sentinel values (or skip, if configured)
func (d *Decider) Decide(existingID string, cls Classification, name Name, phone string, call threec.Call) Action {
	when := d.times.Format(call.Timestamp())

	switch {
	case existingID != "" && cls.IsSuccess():
		props := d.successProps(cls, call, when)
		if !name.IsGeneric {
			props[d.props.FirstName] = name.Value
		}
		return Action{Kind: ActionUpdateSuccess, ContactID: existingID, Phone: phone, Properties: props}

	case existingID != "":
		return Action{
			Kind:       ActionUpdateFailure,
			ContactID:  existingID,
			Phone:      phone,
			Properties: hubspot.Properties{d.props.LastFailure: when},
		}

	case cls.IsSuccess():
		props := d.successProps(cls, call, when)
		props[d.props.Phone] = phone
		props[d.props.FirstName] = name.Value
		return Action{Kind: ActionCreateSuccess, Phone: phone, Properties: props}

	case d.skipUnansweredNew:
		return Action{Kind: ActionSkip, Phone: phone}

	default:
		return Action{
			Kind:  ActionCreateFailure,
			Phone: phone,
			Properties: hubspot.Properties{
				d.props.Phone:         phone,
				d.props.FirstName:     name.Value,
				d.props.StatusLabel:   d.defaultLabel,
				d.props.RecordingLink: d.notAnsweredLabel,
				d.props.LastSuccess:   d.notAnsweredLabel,
				d.props.Contacted:     "false",
				d.props.LastFailure:   when,
			},
		}
	}
}

func (d *Decider) successProps(cls Classification, call threec.Call, when string) hubspot.Properties {
	return hubspot.Properties{
		d.props.StatusLabel:   cls.StatusLabel,
		d.props.RecordingLink: d.recordingURL(call.ID),
		d.props.Contacted:     "true",
		d.props.LastSuccess:   when,
	}
}

// Writer applies Actions against the CRM, one remote write per action.
type Writer struct {
	crm      hubspot.Client
	resolver *IdentityResolver
}

// NewWriter creates a Writer. Created contact ids are remembered in resolver.
func NewWriter(crm hubspot.Client, resolver *IdentityResolver) *Writer {
	return &Writer{crm: crm, resolver: resolver}
}

// Apply performs the action and returns the id of the contact written.
func (w *Writer) Apply(ctx context.Context, a Action) (string, error) {
	switch a.Kind {
	case ActionSkip:
		return "", nil
	case ActionUpdateSuccess, ActionUpdateFailure:
		if err := w.crm.UpdateContact(ctx, a.ContactID, a.Properties); err != nil {
			return "", eris.Wrapf(err, "callsync: %s", a.Kind)
		}
		return a.ContactID, nil
	case ActionCreateSuccess, ActionCreateFailure:
		id, err := w.crm.CreateContact(ctx, a.Properties)
		if err != nil {
			return "", eris.Wrapf(err, "callsync: %s", a.Kind)
		}
		w.resolver.Remember(a.Phone, id)
		return id, nil
	default:
		return "", eris.Errorf("callsync: unknown action %d", a.Kind)
	}
}
