// Package review persists agent acknowledgement of flagged renewal
// changes. It stores only the (renewalId, ruleId, field) -> reviewed
// mapping; the check results themselves are recomputed on demand and the
// flags are joined back on afterward, so the comparison engine stays a
// pure function of its snapshots.
package review

import (
	"fmt"
	"sync"
	"time"

	"github.com/copperkey/renewals/compare"
)

// Flag is one persisted acknowledgement.
type Flag struct {
	RenewalID  string    `json:"renewalId"`
	RuleID     string    `json:"ruleId"`
	Field      string    `json:"field"`
	Reviewed   bool      `json:"reviewed"`
	ReviewedBy string    `json:"reviewedBy,omitempty"`
	ReviewedAt time.Time `json:"reviewedAt"`
}

// Store manages reviewed-flag persistence. Writes are last-write-wins on
// the supplied timestamp: each toggle targets a single composite key with
// no dependency on the prior value, so no transaction spanning keys is
// ever needed.
type Store interface {
	// SetReviewed upserts one flag
	SetReviewed(flag Flag) error

	// IsReviewed reports the current flag for one key
	IsReviewed(renewalID, ruleID, field string) (bool, error)

	// List returns all flags for one renewal
	List(renewalID string) ([]Flag, error)
}

// Apply joins persisted flags onto freshly computed check results by
// (ruleId, field) key.
func Apply(results []compare.CheckResult, flags []Flag) {
	if len(flags) == 0 {
		return
	}
	reviewed := make(map[string]bool, len(flags))
	for _, f := range flags {
		reviewed[f.RuleID+"\x00"+f.Field] = f.Reviewed
	}
	for i := range results {
		if r, ok := reviewed[results[i].RuleID+"\x00"+results[i].Field]; ok {
			results[i].Reviewed = r
		}
	}
}

// InMemoryStore implements Store with a map. Thread-safe.
type InMemoryStore struct {
	flags map[string]Flag
	mu    sync.RWMutex
}

// NewInMemoryStore creates a new in-memory review store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{flags: make(map[string]Flag)}
}

func key(renewalID, ruleID, field string) string {
	return fmt.Sprintf("%s\x00%s\x00%s", renewalID, ruleID, field)
}

// SetReviewed upserts a flag, keeping the newer write on timestamp ties
// going to the incoming value.
func (s *InMemoryStore) SetReviewed(flag Flag) error {
	if flag.RenewalID == "" || flag.RuleID == "" || flag.Field == "" {
		return fmt.Errorf("renewalId, ruleId and field are all required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(flag.RenewalID, flag.RuleID, flag.Field)
	if existing, ok := s.flags[k]; ok && existing.ReviewedAt.After(flag.ReviewedAt) {
		// A newer write already landed; last-write-wins.
		return nil
	}
	s.flags[k] = flag
	return nil
}

// IsReviewed reports the flag for one key; false when never set.
func (s *InMemoryStore) IsReviewed(renewalID, ruleID, field string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flag, ok := s.flags[key(renewalID, ruleID, field)]
	if !ok {
		return false, nil
	}
	return flag.Reviewed, nil
}

// List returns all flags for one renewal.
func (s *InMemoryStore) List(renewalID string) ([]Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var flags []Flag
	for _, f := range s.flags {
		if f.RenewalID == renewalID {
			flags = append(flags, f)
		}
	}
	return flags, nil
}
