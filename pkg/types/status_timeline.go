package types

import "time"

// SystemActor is recorded when a transition is driven by the system itself
// (payment callbacks, the sweeper) rather than a signed-in member.
const SystemActor = "system"

// StatusStamp records when a status was entered and by whom. The actor is a
// member id or SystemActor.
type StatusStamp struct {
	Time  time.Time `json:"time"`
	Actor string    `json:"actor"`
}

// StatusTimeline maps a status name to the stamp of its first entry. It is
// the authoritative audit trail for carts and orders: entries are append-only
// and Record is the only mutator, so a stamp is never overwritten once its
// status has been entered.
type StatusTimeline map[string]StatusStamp

// Record stamps the given status if it has not been entered before. It
// reports whether a new entry was written.
func (t *StatusTimeline) Record(status string, actor string, at time.Time) bool {
	if *t == nil {
		*t = StatusTimeline{}
	}
	if _, entered := (*t)[status]; entered {
		return false
	}
	(*t)[status] = StatusStamp{Time: at.UTC(), Actor: actor}
	return true
}

// Entered reports whether the timeline holds a stamp for the status.
func (t StatusTimeline) Entered(status string) bool {
	_, ok := t[status]
	return ok
}

// At returns the stamp for a status, if entered.
func (t StatusTimeline) At(status string) (StatusStamp, bool) {
	stamp, ok := t[status]
	return stamp, ok
}
