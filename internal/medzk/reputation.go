package medzk

import (
	"fmt"
	"math"
	"time"

	"medzk-go/internal/model"
)

// DecayPolicy is the tunable scoring configuration. Rate is the fraction
// lost per Period, compounded over fractional elapsed periods; the derived
// score never falls below MinScore.
type DecayPolicy struct {
	Rate            float64
	Period          time.Duration
	MinScore        int64
	InitialScore    int64
	DiagnosisReward int64
}

// DefaultDecayPolicy mirrors the deployed policy: 1% per 30 days, floor 100,
// experts start at 1000 and earn +5 per accepted diagnosis.
func DefaultDecayPolicy() DecayPolicy {
	return DecayPolicy{
		Rate:            0.01,
		Period:          30 * 24 * time.Hour,
		MinScore:        100,
		InitialScore:    1000,
		DiagnosisReward: 5,
	}
}

func (p DecayPolicy) Validate() error {
	if p.Rate < 0 || p.Rate >= 1 {
		return fmt.Errorf("decay rate must be in [0,1), got %g", p.Rate)
	}
	if p.Period <= 0 {
		return fmt.Errorf("decay period must be positive, got %s", p.Period)
	}
	if p.MinScore < 0 {
		return fmt.Errorf("min score must be non-negative, got %d", p.MinScore)
	}
	if p.InitialScore < p.MinScore {
		return fmt.Errorf("initial score %d below floor %d", p.InitialScore, p.MinScore)
	}
	return nil
}

// Decayed derives the current score from a stored base. The result is
// non-increasing in elapsed time and clamped at the floor; negative elapsed
// time (clock skew) leaves the base untouched.
func (p DecayPolicy) Decayed(base int64, last, now time.Time) int64 {
	if base < p.MinScore {
		return p.MinScore
	}
	elapsed := now.Sub(last)
	if elapsed <= 0 || p.Rate == 0 {
		return base
	}
	periods := float64(elapsed) / float64(p.Period)
	score := int64(math.Floor(float64(base) * math.Pow(1-p.Rate, periods)))
	if score < p.MinScore {
		return p.MinScore
	}
	return score
}

// clamp applies delta to a decayed score and enforces the floor.
func (p DecayPolicy) clamp(score, delta int64) int64 {
	next := score + delta
	if next < p.MinScore {
		return p.MinScore
	}
	return next
}

// expertExistence is the slice of ExpertDirectory the ledger depends on.
type expertExistence interface {
	Exists(expertID int64) (bool, error)
}

// ReputationLedger computes decayed scores and applies bounded deltas.
// Only the coordinator is constructed with a ledger handle; nothing else in
// the system writes scores.
type ReputationLedger struct {
	store   ReputationStore
	experts expertExistence
	policy  DecayPolicy
	logger  Logger
	clock   Clock
}

func NewReputationLedger(store ReputationStore, experts expertExistence, policy DecayPolicy, logger Logger, clock Clock) *ReputationLedger {
	return &ReputationLedger{
		store:   store,
		experts: experts,
		policy:  policy,
		logger:  logger,
		clock:   clock,
	}
}

// Policy returns the ledger's decay configuration.
func (l *ReputationLedger) Policy() DecayPolicy { return l.policy }

// GetReputation returns the expert's current decayed score.
func (l *ReputationLedger) GetReputation(expertID int64) (int64, error) {
	rec, err := l.load(expertID)
	if err != nil {
		return 0, err
	}
	return l.policy.Decayed(rec.BaseScore, rec.LastUpdate, l.clock.Now()), nil
}

// ApplyDelta folds delta into the decay-corrected score, clamps at the
// floor, and persists the result as the new base with the decay clock reset
// to now. Persisting the corrected value (not the stale base) is what keeps
// decay from being counted twice on the next read.
func (l *ReputationLedger) ApplyDelta(expertID int64, delta int64) (int64, error) {
	next, err := l.NextBase(expertID, delta)
	if err != nil {
		return 0, err
	}
	if err := l.store.SetReputation(expertID, next, l.clock.Now()); err != nil {
		return 0, fmt.Errorf("storing reputation: %w", err)
	}
	l.logger.Debug("reputation updated", "expert_id", expertID, "delta", delta, "score", next)
	return next, nil
}

// NextBase computes what ApplyDelta would persist, without persisting.
// The coordinator uses it to fold a reputation write into the diagnosis
// transaction.
func (l *ReputationLedger) NextBase(expertID int64, delta int64) (int64, error) {
	rec, err := l.load(expertID)
	if err != nil {
		return 0, err
	}
	current := l.policy.Decayed(rec.BaseScore, rec.LastUpdate, l.clock.Now())
	return l.policy.clamp(current, delta), nil
}

func (l *ReputationLedger) load(expertID int64) (*model.Reputation, error) {
	exists, err := l.experts.Exists(expertID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("expert %d: %w", expertID, ErrUnknownExpert)
	}
	rec, err := l.store.GetReputation(expertID)
	if err != nil {
		return nil, fmt.Errorf("loading reputation: %w", err)
	}
	if rec == nil {
		// Directory and ledger rows are created in one transaction, so a
		// missing row means the id was never registered.
		return nil, fmt.Errorf("expert %d: %w", expertID, ErrUnknownExpert)
	}
	return rec, nil
}
