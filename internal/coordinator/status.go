// Package coordinator drives the distributed detection fan-out: it calls
// each worker with retry/backoff, tracks completion per spec's service
// status record, and, once every worker is final, hands the merged
// request off to the aggregator.
package coordinator

import (
	"sync"

	"github.com/rawblock/trade-surveillance-engine/internal/domain"
)

// Status is the lifecycle state of one worker within a request.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSuccess   Status = "SUCCESS"
	StatusExhausted Status = "EXHAUSTED"
)

// ServiceStatus is the coordinator-internal, mutable per-worker record.
type ServiceStatus struct {
	ServiceName string
	Status      Status
	FinalStatus bool
	RetryCount  int
	Result      []domain.SuspiciousSequence
	Error       string
}

// statusBoard tracks one ServiceStatus per expected worker, safe for
// concurrent updates from the per-worker goroutines the fan-out spawns.
type statusBoard struct {
	mu       sync.Mutex
	byService map[string]*ServiceStatus
}

func newStatusBoard(services []string) *statusBoard {
	b := &statusBoard{byService: make(map[string]*ServiceStatus, len(services))}
	for _, name := range services {
		b.byService[name] = &ServiceStatus{ServiceName: name, Status: StatusPending}
	}
	return b
}

func (b *statusBoard) update(fn func(*ServiceStatus)) func(name string) {
	return func(name string) {
		b.mu.Lock()
		defer b.mu.Unlock()
		fn(b.byService[name])
	}
}

func (b *statusBoard) get(name string) ServiceStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.byService[name]
}

// snapshot returns a stable-ordered copy of every tracked status,
// following the caller-supplied service order.
func (b *statusBoard) snapshot(order []string) []ServiceStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ServiceStatus, 0, len(order))
	for _, name := range order {
		out = append(out, *b.byService[name])
	}
	return out
}

// allFinal reports whether every tracked worker has FinalStatus=true —
// the validation gate the coordinator asserts before calling the
// aggregator (spec: "failing this assertion is a programmer error").
func (b *statusBoard) allFinal() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.byService {
		if !s.FinalStatus {
			return false
		}
	}
	return true
}
