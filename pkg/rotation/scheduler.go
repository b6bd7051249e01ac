// Package rotation selects which account a session should use. Both
// strategies are pure functions over the current record set and a clock,
// so scheduling decisions are reproducible in tests.
package rotation

import (
	"sort"
	"time"

	"xhsmonitor/pkg/account"
)

// Scheduler holds the rotation parameters. The zero value uses a one hour
// cooldown and the real clock.
type Scheduler struct {
	// CooldownHours is how long an account rests after a use
	CooldownHours float64
	// Now is swapped in tests for a fixed clock
	Now func() time.Time
}

// NewScheduler creates a scheduler with the given cooldown
func NewScheduler(cooldownHours float64) *Scheduler {
	return &Scheduler{
		CooldownHours: cooldownHours,
		Now:           time.Now,
	}
}

// Selection is the result of a cooldown-respecting pick
type Selection struct {
	Record *account.Record
	// CoolingFallback is set when every candidate was still cooling down
	// and the one with the earliest expiry was returned anyway
	CoolingFallback bool
}

func (s *Scheduler) cooldown() time.Duration {
	hours := s.CooldownHours
	if hours <= 0 {
		hours = 1
	}
	return time.Duration(hours * float64(time.Hour))
}

func (s *Scheduler) clock() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// PickNext is the cooldown-respecting strategy. BANNED and LIMITED accounts
// are never returned. Rested accounts win, least-worn first; when everything
// is cooling the earliest expiry is returned with CoolingFallback set so the
// caller can warn. Returns nil when no account is selectable at all.
func (s *Scheduler) PickNext(records []*account.Record, respectCooldown bool) *Selection {
	now := s.clock()
	cooldown := s.cooldown()

	var available, cooling []*account.Record
	for _, r := range records {
		if !r.Selectable() {
			continue
		}
		if respectCooldown && r.InCooldown(now, cooldown) {
			cooling = append(cooling, r)
		} else {
			available = append(available, r)
		}
	}

	if len(available) > 0 {
		sort.SliceStable(available, func(i, j int) bool {
			a, b := available[i], available[j]
			aPenalty, bPenalty := a.Status != account.StatusActive, b.Status != account.StatusActive
			if aPenalty != bPenalty {
				return !aPenalty
			}
			if a.TotalUses != b.TotalUses {
				return a.TotalUses < b.TotalUses
			}
			return lastUsed(a).Before(lastUsed(b))
		})
		return &Selection{Record: available[0]}
	}

	if len(cooling) > 0 {
		sort.SliceStable(cooling, func(i, j int) bool {
			return lastUsed(cooling[i]).Before(lastUsed(cooling[j]))
		})
		return &Selection{Record: cooling[0], CoolingFallback: true}
	}

	return nil
}

// PickForTask is the scored strategy used for production runs. BANNED and
// LIMITED accounts and accounts past the failure threshold are excluded;
// the lowest score wins, ties broken by id.
func (s *Scheduler) PickForTask(records []*account.Record) *account.Record {
	var candidates []*account.Record
	for _, r := range records {
		if r.Eligible() {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := s.Score(candidates[i]), s.Score(candidates[j])
		if si != sj {
			return si < sj
		}
		return candidates[i].ID < candidates[j].ID
	})

	return candidates[0]
}

// Score computes the selection cost of a record. The failure weight
// dominates raw usage so a flaky account is deprioritized quickly; the
// status penalty keeps non-ACTIVE accounts as a last resort.
func (s *Scheduler) Score(r *account.Record) int {
	score := r.TotalUses*10 + r.ConsecutiveFailures*50

	remaining := r.RemainingCooldown(s.clock(), s.cooldown())
	score += int(remaining.Minutes())

	if r.Status != account.StatusActive {
		score += 100
	}

	return score
}

// lastUsed treats never-used accounts as used at the zero time so they
// sort first
func lastUsed(r *account.Record) time.Time {
	if r.LastUsedAt == nil {
		return time.Time{}
	}
	return *r.LastUsedAt
}
