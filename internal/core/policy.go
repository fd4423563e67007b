package core

import "harvest_service/internal/domain/model"

// Branch names an input signal group that can decide a recommendation.
type Branch string

const (
	BranchGeospatial Branch = "geospatial"
	BranchSpoilage   Branch = "spoilage"
	BranchMarket     Branch = "market"
)

type PolicyInput struct {
	CropReady           bool
	StormWithin48h      bool
	SpoilageSeverity    model.Severity
	NetAdvantage        float64
	MarketAvailable     bool
	PriceSpikeThreshold float64
}

func (in PolicyInput) priceSpike() bool {
	return in.MarketAvailable && in.NetAdvantage > in.PriceSpikeThreshold
}

// Decision is the outcome of the priority cascade.
type Decision struct {
	Action  model.Action
	Urgency model.Urgency
	Factor  model.Factor
	// Rule is the 1-based cascade position that fired.
	Rule int
	// Branches are the signal groups that decided the outcome; confidence
	// is averaged over these only.
	Branches []Branch
}

// Decide applies the cascade; the first matching rule wins.
//
//  1. storm within 48h and crop ready      -> harvest_now / critical
//  2. matched rule severity is critical    -> harvest_now / high
//  3. crop ready and price spike           -> sell_now / medium
//  4. otherwise                            -> wait / low
func Decide(in PolicyInput) Decision {
	switch {
	case in.StormWithin48h && in.CropReady:
		return Decision{
			Action: model.ActionHarvestNow, Urgency: model.UrgencyCritical, Factor: model.FactorStormRisk,
			Rule: 1, Branches: []Branch{BranchGeospatial},
		}
	case in.SpoilageSeverity == model.SeverityCritical:
		return Decision{
			Action: model.ActionHarvestNow, Urgency: model.UrgencyHigh, Factor: model.FactorSpoilageRisk,
			Rule: 2, Branches: []Branch{BranchSpoilage},
		}
	case in.CropReady && in.priceSpike():
		return Decision{
			Action: model.ActionSellNow, Urgency: model.UrgencyMedium, Factor: model.FactorMarketOpportunity,
			Rule: 3, Branches: []Branch{BranchGeospatial, BranchMarket},
		}
	default:
		return Decision{
			Action: model.ActionWait, Urgency: model.UrgencyLow, Factor: model.FactorOptimalTiming,
			Rule: 4, Branches: []Branch{BranchGeospatial, BranchSpoilage, BranchMarket},
		}
	}
}

// Confidence averages the quality scores of the decision's branches.
func Confidence(d Decision, quality map[Branch]model.DataQuality) float64 {
	if len(d.Branches) == 0 {
		return model.QualityPoor.Score()
	}
	sum := 0.0
	for _, b := range d.Branches {
		sum += quality[b].Score()
	}
	return sum / float64(len(d.Branches))
}
