package core

import (
	"fmt"
	"math"

	"harvest_service/internal/domain/model"
)

// Match is the rule selected for a reading.
type Match struct {
	Rule   model.SpoilageRule `json:"rule"`
	Source model.Source       `json:"source"`
	// Approximate is set when no rule range contains the reading and the
	// nearest rule was used instead.
	Approximate bool `json:"approximate"`
	// Distance from the reading to the rule's range rectangle; zero for
	// exact matches.
	Distance float64 `json:"distance"`
}

// RuleMatcher selects the governing spoilage rule for a crop under given
// conditions.
type RuleMatcher struct {
	rules *RuleStore
}

func NewRuleMatcher(rules *RuleStore) *RuleMatcher {
	return &RuleMatcher{rules: rules}
}

// Match returns the highest-priority rule whose ranges contain the reading,
// or the nearest rule flagged Approximate. It returns false only when the
// crop has no rules at all.
func (m *RuleMatcher) Match(crop string, tempC, humidityPct float64) (Match, bool) {
	rules := m.rules.Rules(crop)
	if len(rules) == 0 {
		return Match{}, false
	}

	// rules are already in priority order, so the first containing rule wins
	for _, rule := range rules {
		if rule.Covers(tempC, humidityPct) {
			return m.match(rule, false, 0), true
		}
	}

	best := rules[0]
	bestDist := rectDistance(best, tempC, humidityPct)
	for _, rule := range rules[1:] {
		d := rectDistance(rule, tempC, humidityPct)
		if d < bestDist || (d == bestDist && higherPriority(rule, best)) {
			best, bestDist = rule, d
		}
	}
	return m.match(best, true, bestDist), true
}

// Candidates returns every rule containing the reading, in priority order.
func (m *RuleMatcher) Candidates(crop string, tempC, humidityPct float64) []model.SpoilageRule {
	var out []model.SpoilageRule
	for _, rule := range m.rules.Rules(crop) {
		if rule.Covers(tempC, humidityPct) {
			out = append(out, rule)
		}
	}
	return out
}

func (m *RuleMatcher) Rules(crop string) []model.SpoilageRule {
	return m.rules.Rules(crop)
}

func (m *RuleMatcher) match(rule model.SpoilageRule, approximate bool, dist float64) Match {
	src, _ := m.rules.Source(rule.SourceID)
	return Match{Rule: rule, Source: src, Approximate: approximate, Distance: dist}
}

// Citation builds the citation for the matched rule.
func (m Match) Citation() model.Citation {
	return model.Citation{
		Source:      m.Source.Name,
		Type:        m.Source.Type,
		Reference:   m.Rule.SourceReference,
		Credibility: m.Source.Credibility,
	}
}

// rectDistance is the Euclidean distance from the point to the rule's
// (temperature, humidity) rectangle.
func rectDistance(rule model.SpoilageRule, tempC, humidityPct float64) float64 {
	dt := math.Max(0, math.Max(rule.TempMin-tempC, tempC-rule.TempMax))
	dh := math.Max(0, math.Max(rule.HumidityMin-humidityPct, humidityPct-rule.HumidityMax))
	return math.Hypot(dt, dh)
}

// SpoilageUnit is the unit a spoilage time is displayed in.
type SpoilageUnit string

const (
	UnitHours SpoilageUnit = "hours"
	UnitDays  SpoilageUnit = "days"
	UnitWeeks SpoilageUnit = "weeks"
)

// SpoilageSpan converts hours into the display value: hours below a day,
// whole days below a week, whole weeks beyond.
func SpoilageSpan(hours int) (int, SpoilageUnit) {
	switch {
	case hours < 24:
		return hours, UnitHours
	case hours < 168:
		return hours / 24, UnitDays
	default:
		return hours / 168, UnitWeeks
	}
}

// FormatSpoilage renders a spoilage time in English, e.g. "2 days".
func FormatSpoilage(hours int) string {
	n, unit := SpoilageSpan(hours)
	if n == 1 {
		return fmt.Sprintf("1 %s", unit[:len(unit)-1])
	}
	return fmt.Sprintf("%d %s", n, unit)
}

// RiskFactors lists plain-language factors for a rule: the temperature and
// humidity bands it sits in, then its condition text.
func RiskFactors(rule model.SpoilageRule) []string {
	var factors []string
	switch {
	case rule.TempMax > 30:
		factors = append(factors, "High temperature accelerating spoilage")
	case rule.TempMin < 10:
		factors = append(factors, "Low temperature risk (chilling injury)")
	}
	switch {
	case rule.HumidityMin > 85:
		factors = append(factors, "High humidity promoting fungal growth")
	case rule.HumidityMax < 70:
		factors = append(factors, "Low humidity causing dehydration")
	}
	return append(factors, rule.Condition)
}

// Citations deduplicates citations by source type and reference, keeping
// first-seen order.
func Citations(cites ...model.Citation) []model.Citation {
	seen := make(map[string]struct{}, len(cites))
	out := make([]model.Citation, 0, len(cites))
	for _, c := range cites {
		key := c.Type + ":" + c.Reference
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
