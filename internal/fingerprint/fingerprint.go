// Package fingerprint computes the deterministic, order-independent digest
// of an event set used as the coordinator/worker idempotency key (spec §4.7).
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rawblock/trade-surveillance-engine/internal/domain"
)

// Compute produces the 64-character lowercase hex digest for a set of
// events. Order-independence is the whole point: two calls with the same
// multiset of events, in any order, return identical fingerprints.
func Compute(events []domain.TransactionEvent) string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, encode(e))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// encode produces the canonical fixed-order tuple encoding for one event:
// (timestamp.isoformat, account_id, product_id, side, decimal_string(price),
// quantity, event_type), joined with '|'. The separator is not escaped:
// the side, event type and numeric fields never contain it, but the opaque
// account and product ids are hashed as given, '|' included.
func encode(e domain.TransactionEvent) string {
	var b strings.Builder
	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.WriteString(e.AccountID)
	b.WriteByte('|')
	b.WriteString(e.ProductID)
	b.WriteByte('|')
	b.WriteString(string(e.Side))
	b.WriteByte('|')
	b.WriteString(e.Price.String())
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(e.Quantity, 10))
	b.WriteByte('|')
	b.WriteString(string(e.EventType))
	return b.String()
}
