package core

import "harvest_service/internal/domain/model"

// SpoilageReport is the matcher's verdict for the current conditions.
type SpoilageReport struct {
	Match       *Match            `json:"match,omitempty"`
	Conditions  model.Conditions  `json:"conditions"`
	RiskFactors []string          `json:"risk_factors,omitempty"`
	Citations   []model.Citation  `json:"citations"`
	Quality     model.DataQuality `json:"data_quality"`
}

// Severity is the matched rule's severity, empty when nothing matched.
func (r SpoilageReport) Severity() model.Severity {
	if r.Match == nil {
		return ""
	}
	return r.Match.Rule.Severity
}

// AssessSpoilage matches the conditions against the crop's rules. Exact
// matches are excellent, nearest-rule matches fair and a crop without rules
// poor; defaulted conditions cap the result at fair.
func AssessSpoilage(matcher *RuleMatcher, crop string, cond model.Conditions) SpoilageReport {
	report := SpoilageReport{Conditions: cond, Quality: model.QualityPoor}

	match, ok := matcher.Match(crop, cond.TemperatureC, cond.HumidityPct)
	if !ok {
		report.Citations = []model.Citation{}
		return report
	}
	report.Match = &match
	report.RiskFactors = RiskFactors(match.Rule)

	cites := []model.Citation{match.Citation()}
	for _, rule := range matcher.Candidates(crop, cond.TemperatureC, cond.HumidityPct) {
		cites = append(cites, matcher.match(rule, false, 0).Citation())
	}
	report.Citations = Citations(cites...)

	report.Quality = model.QualityExcellent
	if match.Approximate {
		report.Quality = model.QualityFair
	}
	if cond.Defaulted {
		report.Quality = report.Quality.Worse(model.QualityFair)
	}
	return report
}
