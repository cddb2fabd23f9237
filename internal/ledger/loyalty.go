package ledger

import "go-pos-admin/internal/model"

type tierBand struct {
	tier model.Tier
	min  int
}

// Ordered by ascending minimum. Minimums are inclusive.
var tierBands = []tierBand{
	{model.TierBronze, 0},
	{model.TierSilver, 1_000},
	{model.TierGold, 5_000},
	{model.TierPlatinum, 10_000},
}

// TierFor returns the tier whose range contains points.
func TierFor(points int) model.Tier {
	tier := model.TierBronze
	for _, b := range tierBands {
		if points >= b.min {
			tier = b.tier
		}
	}
	return tier
}

// Standing is a customer's position on the tier ladder.
type Standing struct {
	Tier            model.Tier  `json:"tier"`
	ProgressPercent float64     `json:"progress_percent"`
	RemainingPoints int         `json:"remaining_points"`
	NextTier        *model.Tier `json:"next_tier"`
}

// StandingFor computes standing using the tier derived from points.
func StandingFor(points int) Standing {
	return ProgressFor(points, TierFor(points))
}

// ProgressFor measures progress from tier's minimum toward the next tier.
// tier may differ from TierFor(points) when an override is in effect.
func ProgressFor(points int, tier model.Tier) Standing {
	idx := bandIndex(tier)
	if idx == len(tierBands)-1 {
		return Standing{Tier: tier, ProgressPercent: 100, RemainingPoints: 0}
	}
	cur, next := tierBands[idx], tierBands[idx+1]
	pct := float64(points-cur.min) / float64(next.min-cur.min) * 100
	remaining := next.min - points
	if remaining < 0 {
		remaining = 0
	}
	nextTier := next.tier
	return Standing{
		Tier:            tier,
		ProgressPercent: clamp(pct, 0, 100),
		RemainingPoints: remaining,
		NextTier:        &nextTier,
	}
}

func bandIndex(tier model.Tier) int {
	for i, b := range tierBands {
		if b.tier == tier {
			return i
		}
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TierDecision is the outcome of a points/tier update request.
type TierDecision struct {
	Tier     model.Tier
	Override bool
}

// DecideTier picks the tier to persist. An explicit tier always wins and is
// flagged as an override; otherwise the tier follows the new point balance.
// It returns nil when neither points nor tier are being changed.
func DecideTier(newPoints *int, explicit *model.Tier) (*TierDecision, error) {
	if newPoints != nil && *newPoints < 0 {
		return nil, ErrNegativePoints
	}
	if explicit != nil {
		if !explicit.IsValid() {
			return nil, ErrInvalidTier
		}
		return &TierDecision{Tier: *explicit, Override: true}, nil
	}
	if newPoints == nil {
		return nil, nil
	}
	return &TierDecision{Tier: TierFor(*newPoints)}, nil
}
