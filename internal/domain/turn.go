package domain

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewID returns a lexicographically sortable identifier. Turns, crisis
// events and audit entries all use it so their logs order by id.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Turn is one inbound message plus its resulting outbound (or suppression).
// Append-only; the durable turn log is the source of truth for context
// rebuilds.
type Turn struct {
	ID               string           `json:"id"`
	Handle           string           `json:"handle"`
	Seq              int64            `json:"seq"`
	EventID          string           `json:"event_id"`
	InboundText      string           `json:"inbound_text"`
	OutboundText     string           `json:"outbound_text,omitempty"`
	Suppressed       bool             `json:"suppressed"`
	SuppressReason   SuppressReason   `json:"suppress_reason,omitempty"`
	CrisisCategories []CrisisCategory `json:"crisis_categories,omitempty"`
	GenerationFailed bool             `json:"generation_failed,omitempty"`
	Provider         string           `json:"provider,omitempty"`
	Model            string           `json:"model,omitempty"`
	LatencyMS        int64            `json:"latency_ms,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}
