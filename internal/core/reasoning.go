package core

import (
	"fmt"
	"time"
)

const sourceRules = "biological_rules"

// Evidence is everything the reasoning text is rendered from.
type Evidence struct {
	Crop       string
	CropName   string
	Geo        GeospatialReport
	Spoilage   SpoilageReport
	Market     MarketReport
	Decision   Decision
	Settings   EvidenceSettings
	ObservedAt time.Time
}

type EvidenceSettings struct {
	StaleQuoteHours float64
}

// Explanation is the rendered, localized text for one recommendation.
type Explanation struct {
	Message string   `json:"message"`
	Summary string   `json:"summary"`
	Chain   []string `json:"chain"`
}

// Explain renders the primary message, summary and reasoning chain.
func Explain(msgs *Messages, ev Evidence) Explanation {
	return Explanation{
		Message: primaryMessage(msgs, ev),
		Summary: Join(summaryParts(msgs, ev)),
		Chain:   ReasoningChain(msgs, ev),
	}
}

func primaryMessage(msgs *Messages, ev Evidence) string {
	switch ev.Decision.Rule {
	case 1:
		return msgs.Sprintf(msgHarvestStorm, ev.CropName, msgs.Impact(ev.Geo.Storm.Impact), msgs.Window(ev.Geo.Storm.Window))
	case 2:
		return msgs.Sprintf(msgHarvestSpoilage, ev.CropName, msgs.Spoilage(ev.Spoilage.Match.Rule.SpoilageTimeHours))
	case 3:
		return msgs.Sprintf(msgSell, ev.Market.BestMarket.MarketName, ev.Market.NetAdvantage)
	}
	if ev.Geo.Snapshot.CropReady {
		return msgs.Sprintf(msgWaitReady)
	}
	return msgs.Sprintf(msgWaitNotReady, ev.CropName)
}

func summaryParts(msgs *Messages, ev Evidence) []string {
	switch ev.Decision.Rule {
	case 1:
		return []string{msgs.Sprintf(msgSumStorm), msgs.Sprintf(msgSumReady)}
	case 2:
		return []string{msgs.Sprintf(msgSumSpoilage, msgs.Severity(ev.Spoilage.Severity())), msgs.Sprintf(msgSumAccelerates)}
	case 3:
		return []string{msgs.Sprintf(msgSumMarket, ev.Market.NetAdvantage, ev.Market.BestMarket.MarketName), msgs.Sprintf(msgSumReadySale)}
	}
	parts := []string{msgs.Sprintf(msgSumNoThreats)}
	if !ev.Geo.Snapshot.CropReady {
		parts = append(parts, msgs.Sprintf(msgSumNeedsTime))
	}
	return parts
}

// ReasoningChain lists the facts behind each condition the cascade evaluated,
// in evaluation order and annotated with source and time, then a note per
// degraded signal, then the recommendation line.
func ReasoningChain(msgs *Messages, ev Evidence) []string {
	chain := []string{weatherLine(msgs, ev.Geo), cropLine(msgs, ev.Geo)}
	if ev.Decision.Rule >= 2 {
		chain = append(chain, spoilageLine(msgs, ev))
	}
	if ev.Decision.Rule >= 3 {
		chain = append(chain, marketLine(msgs, ev))
	}
	chain = append(chain, notes(msgs, ev)...)
	return append(chain, msgs.Sprintf(msgChainRecommend, msgs.Factor(ev.Decision.Factor), msgs.Action(ev.Decision.Action)))
}

func annotate(line, source string, at time.Time) string {
	return fmt.Sprintf("%s [%s, %s]", line, source, at.UTC().Format(time.RFC3339))
}

func weatherLine(msgs *Messages, geo GeospatialReport) string {
	var line string
	switch {
	case geo.Defaulted:
		line = msgs.Sprintf(msgChainNoWeather)
	case geo.Storm.Within48h:
		day := geo.Storm.Day
		line = msgs.Sprintf(msgChainStorm, msgs.Impact(geo.Storm.Impact), msgs.Window(geo.Storm.Window),
			day.PrecipProbability*100, day.PrecipAmountMM)
	default:
		line = msgs.Sprintf(msgChainNoStorm)
	}
	return annotate(line, geo.Snapshot.Source, geo.Snapshot.CapturedAt)
}

func cropLine(msgs *Messages, geo GeospatialReport) string {
	snap := geo.Snapshot
	var line string
	switch {
	case geo.Defaulted:
		line = msgs.Sprintf(msgChainNoSatellite)
	case snap.CropReady:
		line = msgs.Sprintf(msgChainReady, snap.NDVI, snap.SoilMoisture)
	default:
		line = msgs.Sprintf(msgChainNotReady, snap.NDVI, snap.SoilMoisture)
	}
	return annotate(line, snap.Source, snap.CapturedAt)
}

func spoilageLine(msgs *Messages, ev Evidence) string {
	sp := ev.Spoilage
	if sp.Match == nil {
		return annotate(msgs.Sprintf(msgChainNoRules, ev.CropName), sourceRules, ev.ObservedAt)
	}
	rule := sp.Match.Rule
	line := msgs.Sprintf(msgChainSpoilage, msgs.Severity(rule.Severity), rule.Condition,
		sp.Conditions.TemperatureC, sp.Conditions.HumidityPct, msgs.Spoilage(rule.SpoilageTimeHours))
	source := sp.Match.Source.Name
	if source == "" {
		source = rule.SourceID
	}
	return annotate(line, source, ev.ObservedAt)
}

func marketLine(msgs *Messages, ev Evidence) string {
	mk := ev.Market
	if mk.Unavailable || mk.BestMarket == nil || mk.NearestMarket == nil {
		return annotate(msgs.Sprintf(msgChainNoMarket), sourceRegistry, ev.ObservedAt)
	}
	best, nearest := mk.BestMarket, mk.NearestMarket
	var line string
	if best.MarketName != nearest.MarketName && mk.NetAdvantage > 0 {
		line = msgs.Sprintf(msgChainMarketBetter, best.MarketName, best.PricePerUnit, best.NetValue, mk.NetAdvantage, nearest.MarketName)
	} else {
		line = msgs.Sprintf(msgChainMarketNearest, nearest.MarketName, nearest.NetValue)
	}
	return annotate(line, mk.Source, mk.NewestQuoteAt)
}

func notes(msgs *Messages, ev Evidence) []string {
	var out []string
	geo := ev.Geo
	if geo.State == CacheStale && !geo.Defaulted {
		out = append(out, msgs.Sprintf(msgNoteStale, geo.AgeDays))
	}
	if geo.Defaulted {
		out = append(out, msgs.Sprintf(msgNoteNoGeo))
	}
	if ev.Spoilage.Conditions.Defaulted {
		out = append(out, msgs.Sprintf(msgNoteConditions, ev.Spoilage.Conditions.TemperatureC, ev.Spoilage.Conditions.HumidityPct))
	}
	if ev.Spoilage.Match == nil {
		out = append(out, msgs.Sprintf(msgNoteNoRules, ev.CropName))
	} else if ev.Spoilage.Match.Approximate {
		out = append(out, msgs.Sprintf(msgNoteApproximate))
	}
	mk := ev.Market
	switch {
	case mk.Unavailable:
		out = append(out, msgs.Sprintf(msgNoteNoMarket))
	case mk.FallbackUsed:
		out = append(out, msgs.Sprintf(msgNoteFallback))
	}
	if mk.StaleQuotes {
		out = append(out, msgs.Sprintf(msgNoteStaleQuotes, ev.Settings.StaleQuoteHours))
	}
	return out
}
