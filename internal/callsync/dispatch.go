package callsync

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/callsync/internal/store"
	"github.com/sells-group/callsync/pkg/threec"
)

// DispatchStats counts per-record results of one dispatch pass.
type DispatchStats struct {
	Dispatched int `json:"dispatched"`
	Created    int `json:"created"`
	Updated    int `json:"updated"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Deferred   int `json:"deferred"`
}

// Reasons a call is skipped without a CRM write.
const (
	ReasonMissingID        = "missing call id"
	ReasonAlreadySeen      = "already dispatched"
	ReasonNoPhone          = "no phone digits"
	ReasonUnansweredNewNum = "unanswered call for unknown contact"
	ReasonCRMUnavailable   = "crm unavailable"
)

// Result is what happened to a single call.
type Result struct {
	CallID    string     `json:"call_id"`
	Phone     string     `json:"phone,omitempty"`
	Verdict   string     `json:"verdict,omitempty"`
	Action    ActionKind `json:"-"`
	ContactID string     `json:"contact_id,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Remote    bool       `json:"-"`
	Err       error      `json:"-"`
}

// Dispatcher drives calls through classification, identity resolution and
// the CRM write, one at a time and in call order.
type Dispatcher struct {
	seen        store.SeenSet
	classifier  *Classifier
	resolver    *IdentityResolver
	decider     *Decider
	writer      *Writer
	placeholder string
	pacing      time.Duration
	loc         *time.Location
	sleep       func(ctx context.Context, d time.Duration)

	// ready gates each call before it is marked seen. Calls arriving while
	// it reports false stay unseen and are picked up by a later cycle.
	ready func() bool
}

// NewDispatcher wires a Dispatcher. pacing is the pause after every call that
// reached the CRM.
func NewDispatcher(
	seen store.SeenSet,
	classifier *Classifier,
	resolver *IdentityResolver,
	decider *Decider,
	writer *Writer,
	placeholder string,
	pacing time.Duration,
	loc *time.Location,
) *Dispatcher {
	return &Dispatcher{
		seen:        seen,
		classifier:  classifier,
		resolver:    resolver,
		decider:     decider,
		writer:      writer,
		placeholder: placeholder,
		pacing:      pacing,
		loc:         loc,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// SortChronologically returns a copy of calls ordered by call timestamp,
// oldest first. Equal or unreadable timestamps keep their input order.
func SortChronologically(calls []threec.Call, loc *time.Location) []threec.Call {
	type keyed struct {
		call threec.Call
		at   time.Time
	}
	ks := make([]keyed, len(calls))
	for i, c := range calls {
		at, _ := ParseCallTime(c.Timestamp(), loc)
		ks[i] = keyed{call: c, at: at}
	}
	sort.SliceStable(ks, func(a, b int) bool {
		return ks[a].at.Before(ks[b].at)
	})

	out := make([]threec.Call, len(ks))
	for i, k := range ks {
		out[i] = k.call
	}
	return out
}

// Dispatch sorts the batch and processes every call. A failure on one call is
// logged and does not stop the rest. Cancelling ctx stops before the next call.
func (d *Dispatcher) Dispatch(ctx context.Context, batch []threec.Call) DispatchStats {
	log := zap.L().With(zap.String("component", "callsync.dispatch"))
	var stats DispatchStats
	defer func() {
		if stats.Deferred > 0 {
			log.Warn("dispatch: crm unavailable, calls deferred to next cycle",
				zap.Int("deferred", stats.Deferred),
			)
		}
	}()

	for _, call := range SortChronologically(batch, d.loc) {
		if ctx.Err() != nil {
			log.Warn("dispatch: stopping early", zap.Error(ctx.Err()))
			break
		}

		res := d.Process(ctx, call)
		switch {
		case res.Err != nil:
			stats.Failed++
			log.Error("dispatch: call failed",
				zap.String("call_id", res.CallID),
				zap.String("phone", res.Phone),
				zap.String("action", res.Action.String()),
				zap.Error(res.Err),
			)
		case res.Reason == ReasonCRMUnavailable:
			stats.Deferred++
		case res.Action == ActionSkip:
			stats.Skipped++
			log.Debug("dispatch: call skipped",
				zap.String("call_id", res.CallID),
				zap.String("reason", res.Reason),
			)
		case res.Action.IsCreate():
			stats.Created++
			log.Info("dispatch: contact created",
				zap.String("call_id", res.CallID),
				zap.String("phone", res.Phone),
				zap.String("contact_id", res.ContactID),
				zap.String("verdict", res.Verdict),
			)
		default:
			stats.Updated++
			log.Info("dispatch: contact updated",
				zap.String("call_id", res.CallID),
				zap.String("phone", res.Phone),
				zap.String("contact_id", res.ContactID),
				zap.String("action", res.Action.String()),
			)
		}
		if res.Reason != ReasonAlreadySeen && res.Reason != ReasonCRMUnavailable {
			stats.Dispatched++
		}

		if res.Remote {
			d.sleep(ctx, d.pacing)
		}
	}
	return stats
}

// Process handles one call. The call id enters the seen set before any remote
// call so that a failed write is never retried by a later cycle.
func (d *Dispatcher) Process(ctx context.Context, call threec.Call) Result {
	res := Result{CallID: call.ID, Action: ActionSkip}

	if call.ID == "" {
		res.Reason = ReasonMissingID
		return res
	}
	if d.seen.Has(call.ID) {
		res.Reason = ReasonAlreadySeen
		return res
	}
	if d.ready != nil && !d.ready() {
		res.Reason = ReasonCRMUnavailable
		return res
	}
	d.seen.Add(call.ID)

	cls := d.classifier.Classify(call)
	res.Verdict = cls.Verdict.String()

	phone := NormalizePhone(call.Number)
	if phone == "" {
		res.Reason = ReasonNoPhone
		return res
	}
	res.Phone = phone

	name := DeriveName(call.Mailing, d.placeholder)

	res.Remote = true
	existingID, _, err := d.resolver.Resolve(ctx, phone)
	if err != nil {
		res.Err = err
		return res
	}

	action := d.decider.Decide(existingID, cls, name, phone, call)
	res.Action = action.Kind
	if action.Kind == ActionSkip {
		res.Reason = ReasonUnansweredNewNum
		return res
	}

	id, err := d.writer.Apply(ctx, action)
	if err != nil {
		res.Err = err
		return res
	}
	res.ContactID = id
	return res
}
