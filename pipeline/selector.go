package pipeline

import "tcm-backend/config"

// Capability tiers. A doctor's account level maps onto one of these;
// patient-facing endpoints pick a tier per endpoint.
const (
	TierFast   = "fast"
	TierExpert = "expert"
	TierMaster = "master"
)

// Selector maps a capability tier to an ordered candidate model list,
// most capable first. Unknown tiers silently degrade to the default
// tier instead of erroring.
type Selector struct {
	tiers       map[string][]string
	defaultTier string
}

func NewSelector(cfg config.AIConfig) *Selector {
	return &Selector{
		tiers: map[string][]string{
			TierFast:   cfg.FastModels,
			TierExpert: cfg.ExpertModels,
			TierMaster: cfg.MasterModels,
		},
		defaultTier: TierExpert,
	}
}

// Candidates returns a copy of the candidate list for the tier.
func (s *Selector) Candidates(tier string) []string {
	models, ok := s.tiers[tier]
	if !ok || len(models) == 0 {
		models = s.tiers[s.defaultTier]
	}
	out := make([]string, len(models))
	copy(out, models)
	return out
}

// TierForLevel maps a doctor account level to a capability tier.
// Unrecognized levels degrade to the default tier.
func (s *Selector) TierForLevel(level string) string {
	switch level {
	case "resident", "junior":
		return TierFast
	case "attending", "senior":
		return TierExpert
	case "chief", "master":
		return TierMaster
	}
	return s.defaultTier
}
