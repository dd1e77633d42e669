package application

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/example/room-scheduler/internal/itip"
)

const (
	defaultDecisionTTL  = 24 * time.Hour
	defaultDecisionSize = 4096
)

type decisionKey struct {
	uid       string
	roomEmail string
}

func newDecisionKey(uid, roomEmail string) decisionKey {
	return decisionKey{uid: uid, roomEmail: strings.ToLower(itip.StripMailto(roomEmail))}
}

// DecisionLedger remembers the last partstat decided for each (uid, room)
// pair so organizer copies can be patched after the engine has replied.
// Entries expire after the TTL and the least recently used entries are
// evicted beyond the size bound.
type DecisionLedger struct {
	entries *expirable.LRU[decisionKey, itip.PartStat]
}

// NewDecisionLedger constructs a ledger. Non-positive arguments select the
// defaults of 4096 entries and 24 hours.
func NewDecisionLedger(size int, ttl time.Duration) *DecisionLedger {
	if size <= 0 {
		size = defaultDecisionSize
	}
	if ttl <= 0 {
		ttl = defaultDecisionTTL
	}
	return &DecisionLedger{entries: expirable.NewLRU[decisionKey, itip.PartStat](size, nil, ttl)}
}

// Record stores the decision, replacing any earlier one.
func (l *DecisionLedger) Record(uid, roomEmail string, partstat itip.PartStat) {
	if l == nil || uid == "" || partstat == "" {
		return
	}
	l.entries.Add(newDecisionKey(uid, roomEmail), partstat)
}

// Lookup returns the recorded decision.
func (l *DecisionLedger) Lookup(uid, roomEmail string) (itip.PartStat, bool) {
	if l == nil || uid == "" {
		return "", false
	}
	return l.entries.Get(newDecisionKey(uid, roomEmail))
}

// Forget drops the decision, if any.
func (l *DecisionLedger) Forget(uid, roomEmail string) {
	if l == nil {
		return
	}
	l.entries.Remove(newDecisionKey(uid, roomEmail))
}

// Len reports the number of live entries.
func (l *DecisionLedger) Len() int {
	if l == nil {
		return 0
	}
	return l.entries.Len()
}
