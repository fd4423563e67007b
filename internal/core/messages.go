package core

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"harvest_service/internal/domain/model"
)

// Message keys are the English text; English output needs no catalog entry.
const (
	msgHarvestStorm    = "Harvest your %s immediately! %s expected %s."
	msgHarvestSpoilage = "Harvest your %s now! Spoilage risk is high - crop may deteriorate in %s."
	msgSell            = "Sell at %s now! You'll earn ₹%.2f more per kg after transport."
	msgWaitNotReady    = "Wait for optimal conditions. Your %s will benefit from more time."
	msgWaitReady       = "Monitor conditions closely. We'll alert you when it's time to harvest."

	msgSumStorm       = "Heavy rain forecast within 48 hours"
	msgSumReady       = "Crop is ready for harvest"
	msgSumSpoilage    = "Spoilage risk is %s"
	msgSumAccelerates = "Current conditions accelerate deterioration"
	msgSumMarket      = "Net advantage of ₹%.2f/kg at %s"
	msgSumReadySale   = "Crop is ready for sale"
	msgSumNoThreats   = "No immediate threats detected"
	msgSumNeedsTime   = "Crop needs more time to mature"

	msgWindowNext24h = "in the next 24 hours"
	msgWindow24To48h = "in 24-48 hours"
	msgImpactHeavy   = "Heavy rainfall"
	msgImpactMod     = "Moderate rainfall"
	msgImpactLight   = "Light rainfall"

	msgHours   = "%d hours"
	msgOneHour = "1 hour"
	msgDays    = "%d days"
	msgOneDay  = "1 day"
	msgWeeks   = "%d weeks"
	msgOneWeek = "1 week"

	msgChainStorm         = "Weather alert: %s expected %s (%.0f%% chance, %.1f mm)."
	msgChainNoStorm       = "Weather: no storm expected in the next 48 hours."
	msgChainNoWeather     = "Weather: forecast unavailable, assuming no storm."
	msgChainReady         = "Crop health: NDVI %.2f and soil moisture %.0f%% indicate the crop is ready for harvest."
	msgChainNotReady      = "Crop health: NDVI %.2f and soil moisture %.0f%% indicate the crop needs more time."
	msgChainNoSatellite   = "Crop health: satellite data unavailable, crop assumed not ready."
	msgChainSpoilage      = "Spoilage risk: %s - %s at %.1f°C and %.0f%% humidity may cause deterioration in %s."
	msgChainNoRules       = "Spoilage risk: no biological rules available for %s."
	msgChainMarketBetter  = "Market: %s pays ₹%.2f/kg (₹%.2f/kg after transport), ₹%.2f/kg more net than %s."
	msgChainMarketNearest = "Market: %s, the nearest market, offers the best net price at ₹%.2f/kg after transport."
	msgChainNoMarket      = "Market: prices unavailable at this time."

	msgNoteStale        = "Note: satellite data is %.0f days old; a refresh has been requested."
	msgNoteNoGeo        = "Note: satellite and weather data unavailable; conservative defaults used."
	msgNoteConditions   = "Note: current conditions unavailable; assumed %.0f°C and %.0f%% humidity."
	msgNoteNoRules      = "Note: no biological rules are configured for %s."
	msgNoteApproximate  = "Note: no rule covers the current conditions exactly; the nearest rule was used."
	msgNoteFallback     = "Note: primary market source unavailable; fallback prices used."
	msgNoteNoMarket     = "Note: market prices unavailable; showing the nearest known market."
	msgNoteStaleQuotes  = "Note: newest market quote is older than %.0f hours."
	msgChainRecommend   = "Recommendation: based on %s, we advise you to %s."
	msgFactorStorm      = "imminent weather threat"
	msgFactorSpoilage   = "high spoilage risk under current conditions"
	msgFactorMarket     = "favorable market prices"
	msgFactorTiming     = "no immediate threats or opportunities"
	msgActionHarvest    = "harvest immediately"
	msgActionSell       = "sell at the recommended market"
	msgActionWait       = "wait and monitor conditions"
	msgSeverityCritical = "critical"
	msgSeverityHigh     = "high"
	msgSeverityMedium   = "medium"
	msgSeverityLow      = "low"
	summarySeparator    = " • "
)

var hindi = map[string]string{
	msgHarvestStorm:    "अपनी %s की फसल तुरंत काटें! %s %s आने वाली है।",
	msgHarvestSpoilage: "अपनी %s की फसल अभी काटें! खराब होने का खतरा है - फसल %s में खराब हो सकती है।",
	msgSell:            "%s में अभी बेचें! परिवहन के बाद आपको ₹%.2f प्रति किलो अधिक मिलेगा।",
	msgWaitNotReady:    "इष्टतम स्थितियों की प्रतीक्षा करें। आपकी %s को अधिक समय से लाभ होगा।",
	msgWaitReady:       "स्थितियों पर नज़र रखें। कटाई का समय होने पर हम आपको सूचित करेंगे।",

	msgSumStorm:       "48 घंटे के भीतर भारी बारिश का पूर्वानुमान",
	msgSumReady:       "फसल कटाई के लिए तैयार है",
	msgSumSpoilage:    "खराब होने का जोखिम %s है",
	msgSumAccelerates: "वर्तमान स्थितियाँ खराब होने की गति बढ़ाती हैं",
	msgSumMarket:      "₹%.2f/किलो का शुद्ध लाभ (%s में)",
	msgSumReadySale:   "फसल बिक्री के लिए तैयार है",
	msgSumNoThreats:   "कोई तत्काल खतरा नहीं",
	msgSumNeedsTime:   "फसल को पकने के लिए और समय चाहिए",

	msgWindowNext24h: "अगले 24 घंटों में",
	msgWindow24To48h: "24-48 घंटों में",
	msgImpactHeavy:   "भारी बारिश",
	msgImpactMod:     "मध्यम बारिश",
	msgImpactLight:   "हल्की बारिश",

	msgHours:   "%d घंटे",
	msgOneHour: "1 घंटा",
	msgDays:    "%d दिन",
	msgOneDay:  "1 दिन",
	msgWeeks:   "%d सप्ताह",
	msgOneWeek: "1 सप्ताह",

	msgChainStorm:         "मौसम चेतावनी: %s %s की संभावना (%.0f%% संभावना, %.1f मिमी)।",
	msgChainNoStorm:       "मौसम: अगले 48 घंटों में कोई तूफान का खतरा नहीं।",
	msgChainNoWeather:     "मौसम: पूर्वानुमान उपलब्ध नहीं, तूफान न होने की धारणा।",
	msgChainReady:         "फसल स्वास्थ्य: NDVI %.2f और मिट्टी की नमी %.0f%% - फसल कटाई के लिए तैयार है।",
	msgChainNotReady:      "फसल स्वास्थ्य: NDVI %.2f और मिट्टी की नमी %.0f%% - फसल को और समय चाहिए।",
	msgChainNoSatellite:   "फसल स्वास्थ्य: उपग्रह डेटा उपलब्ध नहीं, फसल तैयार नहीं मानी गई।",
	msgChainSpoilage:      "खराब होने का जोखिम: %s - %s, %.1f°C और %.0f%% नमी पर फसल %s में खराब हो सकती है।",
	msgChainNoRules:       "खराब होने का जोखिम: %s के लिए कोई जैविक नियम उपलब्ध नहीं।",
	msgChainMarketBetter:  "बाजार: %s ₹%.2f/किलो दे रहा है (परिवहन के बाद ₹%.2f/किलो), शुद्ध ₹%.2f/किलो अधिक, तुलना: %s।",
	msgChainMarketNearest: "बाजार: निकटतम बाजार %s परिवहन के बाद ₹%.2f/किलो का सबसे अच्छा भाव देता है।",
	msgChainNoMarket:      "बाजार: इस समय कीमतें उपलब्ध नहीं।",

	msgNoteStale:        "सूचना: उपग्रह डेटा %.0f दिन पुराना है; नया डेटा मंगाया गया है।",
	msgNoteNoGeo:        "सूचना: उपग्रह और मौसम डेटा उपलब्ध नहीं; सतर्क अनुमान उपयोग किए गए।",
	msgNoteConditions:   "सूचना: वर्तमान स्थितियाँ उपलब्ध नहीं; %.0f°C और %.0f%% नमी मानी गई।",
	msgNoteNoRules:      "सूचना: %s के लिए कोई जैविक नियम उपलब्ध नहीं।",
	msgNoteApproximate:  "सूचना: कोई नियम वर्तमान स्थितियों से सटीक मेल नहीं खाता; निकटतम नियम उपयोग किया गया।",
	msgNoteFallback:     "सूचना: मुख्य बाजार स्रोत उपलब्ध नहीं; वैकल्पिक कीमतें उपयोग की गईं।",
	msgNoteNoMarket:     "सूचना: बाजार कीमतें उपलब्ध नहीं; निकटतम ज्ञात बाजार दिखाया गया है।",
	msgNoteStaleQuotes:  "सूचना: नवीनतम बाजार भाव %.0f घंटे से अधिक पुराना है।",
	msgChainRecommend:   "सिफारिश: %s के आधार पर, हम आपको %s की सलाह देते हैं।",
	msgFactorStorm:      "आसन्न मौसम खतरे",
	msgFactorSpoilage:   "वर्तमान स्थितियों में खराब होने के उच्च जोखिम",
	msgFactorMarket:     "अनुकूल बाजार कीमतों",
	msgFactorTiming:     "कोई तत्काल खतरा या अवसर न होने",
	msgActionHarvest:    "तुरंत कटाई करने",
	msgActionSell:       "सुझाए गए बाजार में बेचने",
	msgActionWait:       "प्रतीक्षा करने और स्थितियों पर नज़र रखने",
	msgSeverityCritical: "गंभीर",
	msgSeverityHigh:     "उच्च",
	msgSeverityMedium:   "मध्यम",
	msgSeverityLow:      "कम",
}

var (
	supportedLanguages = []language.Tag{language.English, language.Hindi}
	languageMatcher    = language.NewMatcher(supportedLanguages)
	messageCatalog     = buildCatalog()
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range hindi {
		if err := b.SetString(language.Hindi, key, msg); err != nil {
			panic(fmt.Sprintf("invalid hindi message %q: %v", key, err))
		}
	}
	return b
}

// Messages renders engine text in one language.
type Messages struct {
	printer *message.Printer
	tag     language.Tag
}

// NewMessages picks the closest supported language, defaulting to English.
func NewMessages(lang string) *Messages {
	_, idx, _ := languageMatcher.Match(language.Make(lang))
	tag := supportedLanguages[idx]
	return &Messages{printer: message.NewPrinter(tag, message.Catalog(messageCatalog)), tag: tag}
}

func (m *Messages) Language() string {
	base, _ := m.tag.Base()
	return base.String()
}

func (m *Messages) Sprintf(key string, args ...any) string {
	return m.printer.Sprintf(key, args...)
}

func (m *Messages) Severity(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return m.Sprintf(msgSeverityCritical)
	case model.SeverityHigh:
		return m.Sprintf(msgSeverityHigh)
	case model.SeverityMedium:
		return m.Sprintf(msgSeverityMedium)
	default:
		return m.Sprintf(msgSeverityLow)
	}
}

func (m *Messages) Window(w RiskWindow) string {
	if w == Window24To48h {
		return m.Sprintf(msgWindow24To48h)
	}
	return m.Sprintf(msgWindowNext24h)
}

func (m *Messages) Impact(i StormImpact) string {
	switch i {
	case ImpactHeavy:
		return m.Sprintf(msgImpactHeavy)
	case ImpactModerate:
		return m.Sprintf(msgImpactMod)
	default:
		return m.Sprintf(msgImpactLight)
	}
}

// Spoilage renders a spoilage time ("2 days", "1 week").
func (m *Messages) Spoilage(hours int) string {
	n, unit := SpoilageSpan(hours)
	switch {
	case unit == UnitHours && n == 1:
		return m.Sprintf(msgOneHour)
	case unit == UnitHours:
		return m.Sprintf(msgHours, n)
	case unit == UnitDays && n == 1:
		return m.Sprintf(msgOneDay)
	case unit == UnitDays:
		return m.Sprintf(msgDays, n)
	case n == 1:
		return m.Sprintf(msgOneWeek)
	default:
		return m.Sprintf(msgWeeks, n)
	}
}

func (m *Messages) Factor(f model.Factor) string {
	switch f {
	case model.FactorStormRisk:
		return m.Sprintf(msgFactorStorm)
	case model.FactorSpoilageRisk:
		return m.Sprintf(msgFactorSpoilage)
	case model.FactorMarketOpportunity:
		return m.Sprintf(msgFactorMarket)
	default:
		return m.Sprintf(msgFactorTiming)
	}
}

func (m *Messages) Action(a model.Action) string {
	switch a {
	case model.ActionHarvestNow:
		return m.Sprintf(msgActionHarvest)
	case model.ActionSellNow:
		return m.Sprintf(msgActionSell)
	default:
		return m.Sprintf(msgActionWait)
	}
}

// Join concatenates summary parts with the bullet separator.
func Join(parts []string) string {
	return strings.Join(parts, summarySeparator)
}
