package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvest_service/internal/domain/model"
)

func TestLoadRuleStore_Defaults(t *testing.T) {
	store := testRules(t)

	assert.Equal(t, []string{"onion", "tomato"}, store.Crops())
	assert.True(t, store.HasCrop("tomato"))
	assert.False(t, store.HasCrop("mango"))
	assert.Len(t, store.Rules("tomato"), 8)
	assert.Len(t, store.Rules("onion"), 9)

	src, ok := store.Source("icar_phm")
	require.True(t, ok)
	assert.Equal(t, "ICAR Post-Harvest Manual", src.Name)
	assert.Equal(t, "17 rules for [onion tomato] from 3 sources", store.String())
}

func TestRuleStore_CheckCoverage(t *testing.T) {
	full := testRules(t)
	assert.NoError(t, full.CheckCoverage(testSettings(t).CropIDs()))

	tomatoOnly, err := NewRuleStore(full.RuleSet().Sources, full.Rules("tomato"))
	require.NoError(t, err)
	err = tomatoOnly.CheckCoverage([]string{"onion", "tomato"})
	require.Error(t, err)
	assert.True(t, model.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "[onion]")
	assert.NoError(t, tomatoOnly.CheckCoverage(nil))
}

func TestRuleStore_PriorityOrder(t *testing.T) {
	rules := testRules(t).Rules("tomato")

	assert.Equal(t, "tomato_high_temp_humidity", rules[0].ID, "critical first")
	for i := 1; i < len(rules); i++ {
		prev, cur := rules[i-1], rules[i]
		assert.GreaterOrEqual(t, prev.Severity.Rank(), cur.Severity.Rank())
		if prev.Severity == cur.Severity {
			assert.LessOrEqual(t, prev.SpoilageTimeHours, cur.SpoilageTimeHours)
		}
	}
}

func TestRuleStore_RulesReturnsCopy(t *testing.T) {
	store := testRules(t)
	rules := store.Rules("onion")
	rules[0].Severity = model.SeverityLow

	assert.Equal(t, model.SeverityCritical, store.Rules("onion")[0].Severity)
}

func TestNewRuleStore_Rejects(t *testing.T) {
	src := model.Source{ID: "s", Name: "S", Type: "ICAR", Credibility: 0.9}
	rule := model.SpoilageRule{
		ID: "r", CropID: "tomato", Condition: "c",
		TempMin: 0, TempMax: 10, HumidityMin: 0, HumidityMax: 100,
		SpoilageTimeHours: 24, Severity: model.SeverityLow, SourceID: "s",
	}

	tests := []struct {
		name    string
		sources []model.Source
		rules   []model.SpoilageRule
	}{
		{"duplicate rule", []model.Source{src}, []model.SpoilageRule{rule, rule}},
		{"unknown source", nil, []model.SpoilageRule{rule}},
		{"duplicate source", []model.Source{src, src}, []model.SpoilageRule{rule}},
		{"bad credibility", []model.Source{{ID: "s", Credibility: 1.5}}, []model.SpoilageRule{rule}},
		{"inverted range", []model.Source{src}, []model.SpoilageRule{func() model.SpoilageRule {
			r := rule
			r.TempMin = 20
			return r
		}()}},
		{"bad severity", []model.Source{src}, []model.SpoilageRule{func() model.SpoilageRule {
			r := rule
			r.Severity = "extreme"
			return r
		}()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleStore(tt.sources, tt.rules)
			require.Error(t, err)
			assert.True(t, model.IsConfigurationError(err))
		})
	}
}

func TestLoadRuleStore_Invalid(t *testing.T) {
	_, err := LoadRuleStore([]byte("rules: ["))
	assert.True(t, model.IsConfigurationError(err))

	_, err = LoadRuleStore([]byte("sources: []\nrules: []\n"))
	assert.True(t, model.IsConfigurationError(err), "an empty rule set cannot serve requests")
}

func TestRuleStore_RuleSetRoundTrip(t *testing.T) {
	store := testRules(t)
	set := store.RuleSet()

	again, err := NewRuleStore(set.Sources, set.Rules)
	require.NoError(t, err)
	assert.Equal(t, store.Rules("tomato"), again.Rules("tomato"))
	assert.Equal(t, store.Rules("onion"), again.Rules("onion"))
}
