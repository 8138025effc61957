// Package decision maintains the append-only, bounded decision log
// written to status.decisions.
package decision

import "github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"

// MaxEntries bounds status.decisions. The spec requires N ≥ 50 and
// leaves the exact value open; 50 is the smallest compliant bound and
// keeps the status subresource small.
const MaxEntries = 50

// Append adds d to decisions, dropping from the head once the list
// exceeds MaxEntries so the log stays append-only in spirit (new entries
// always survive; only the oldest are evicted).
func Append(decisions []v1alpha1.Decision, d v1alpha1.Decision) []v1alpha1.Decision {
	out := append(decisions, d)
	if len(out) <= MaxEntries {
		return out
	}
	return out[len(out)-MaxEntries:]
}
