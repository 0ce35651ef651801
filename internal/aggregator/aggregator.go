// Package aggregator merges the per-worker detection results into the
// final request-level result set: it validates completeness, merges
// SUCCESS entries, records EXHAUSTED entries as failed services, and
// deduplicates findings that more than one worker happened to emit.
package aggregator

import (
	"fmt"
	"sort"

	"github.com/rawblock/trade-surveillance-engine/internal/domain"
	"github.com/rawblock/trade-surveillance-engine/internal/transport"
)

// Policy carries the two knobs spec §4.6 names. Merge reads only
// AllowPartialResults; ValidationStrict is carried but not consulted, so a
// missing expected service always fails validation.
type Policy struct {
	ValidationStrict    bool
	AllowPartialResults bool
}

// DefaultPolicy matches VALIDATION_STRICT=true, ALLOW_PARTIAL_RESULTS=false.
func DefaultPolicy() Policy {
	return Policy{ValidationStrict: true, AllowPartialResults: false}
}

// Result is the outcome of one Merge call.
type Result struct {
	Status         transport.AggregateStatus
	Findings       []domain.SuspiciousSequence
	FailedServices []string
	Err            error
}

// Merge validates an AggregateRequest and, if it passes, concatenates
// and deduplicates the SUCCESS entries' findings.
func Merge(req transport.AggregateRequest, policy Policy) Result {
	if err := validate(req, policy); err != nil {
		return Result{Status: transport.AggregateValidationFailed, Err: err}
	}

	var findings []domain.SuspiciousSequence
	var failed []string

	for _, entry := range req.Results {
		switch entry.Status {
		case "SUCCESS":
			for _, w := range entry.Results {
				seq, err := transport.FromWireSequence(w)
				if err != nil {
					continue
				}
				findings = append(findings, seq)
			}
		case "EXHAUSTED":
			failed = append(failed, entry.ServiceName)
		}
	}

	findings = dedup(findings)
	sort.Slice(findings, func(i, j int) bool { return domain.ByGroupThenEnd(findings[i], findings[j]) < 0 })
	sort.Strings(failed)

	return Result{
		Status:         transport.AggregateCompleted,
		Findings:       findings,
		FailedServices: failed,
	}
}

// validate enforces (a) every expected service is present and (b) every
// entry has final_status=true. ALLOW_PARTIAL_RESULTS skips check (b):
// entries that are not yet final are accepted and contribute no findings.
func validate(req transport.AggregateRequest, policy Policy) error {
	present := make(map[string]transport.AlgorithmResponse, len(req.Results))
	for _, r := range req.Results {
		present[r.ServiceName] = r
	}

	var missing []string
	for _, name := range req.ExpectedServices {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return transport.Classify(transport.KindCompleteness,
			fmt.Errorf("missing results from expected services: %v", missing))
	}

	if policy.AllowPartialResults {
		return nil
	}

	var nonFinal []string
	for _, r := range req.Results {
		if !r.FinalStatus {
			nonFinal = append(nonFinal, r.ServiceName)
		}
	}
	if len(nonFinal) > 0 {
		return transport.Classify(transport.KindCompleteness,
			fmt.Errorf("services not yet final: %v", nonFinal))
	}
	return nil
}

// dedup removes findings with an identical
// (account_id, product_id, start_timestamp, end_timestamp, detection_type)
// key, keeping the first occurrence.
func dedup(findings []domain.SuspiciousSequence) []domain.SuspiciousSequence {
	seen := make(map[domain.DedupKey]struct{}, len(findings))
	out := make([]domain.SuspiciousSequence, 0, len(findings))
	for _, f := range findings {
		key := f.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}
