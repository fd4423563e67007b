package core

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"harvest_service/internal/domain/model"
)

// RuleSet is the on-disk form of the biological rules.
type RuleSet struct {
	Sources []model.Source       `yaml:"sources"`
	Rules   []model.SpoilageRule `yaml:"rules"`
}

// RuleStore is an immutable index of spoilage rules by crop. It is safe for
// concurrent use because nothing mutates it after construction.
type RuleStore struct {
	byCrop  map[string][]model.SpoilageRule
	sources map[string]model.Source
}

// NewRuleStore validates and indexes the rules. Any invalid rule, unknown
// source reference or duplicate id is a configuration error.
func NewRuleStore(sources []model.Source, rules []model.SpoilageRule) (*RuleStore, error) {
	store := &RuleStore{
		byCrop:  make(map[string][]model.SpoilageRule),
		sources: make(map[string]model.Source, len(sources)),
	}

	for _, src := range sources {
		if src.ID == "" {
			return nil, model.ConfigurationError("rule source without id")
		}
		if src.Credibility < 0 || src.Credibility > 1 {
			return nil, model.ConfigurationError("source %s: credibility out of range [0, 1]", src.ID)
		}
		if _, dup := store.sources[src.ID]; dup {
			return nil, model.ConfigurationError("duplicate source id %s", src.ID)
		}
		store.sources[src.ID] = src
	}

	seen := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, model.ConfigurationError("invalid rule: %v", err)
		}
		if _, dup := seen[rule.ID]; dup {
			return nil, model.ConfigurationError("duplicate rule id %s", rule.ID)
		}
		if _, ok := store.sources[rule.SourceID]; !ok {
			return nil, model.ConfigurationError("rule %s references unknown source %s", rule.ID, rule.SourceID)
		}
		seen[rule.ID] = struct{}{}
		store.byCrop[rule.CropID] = append(store.byCrop[rule.CropID], rule)
	}

	for crop := range store.byCrop {
		sortByPriority(store.byCrop[crop])
	}
	return store, nil
}

// LoadRuleStore parses a YAML rules document.
func LoadRuleStore(data []byte) (*RuleStore, error) {
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, model.ConfigurationError("failed to parse rules: %v", err)
	}
	if len(set.Rules) == 0 {
		return nil, model.ConfigurationError("rule set is empty")
	}
	return NewRuleStore(set.Sources, set.Rules)
}

// Rules returns the crop's rules in priority order. The slice is a copy.
func (s *RuleStore) Rules(crop string) []model.SpoilageRule {
	rules := s.byCrop[crop]
	out := make([]model.SpoilageRule, len(rules))
	copy(out, rules)
	return out
}

func (s *RuleStore) Source(id string) (model.Source, bool) {
	src, ok := s.sources[id]
	return src, ok
}

func (s *RuleStore) HasCrop(crop string) bool {
	return len(s.byCrop[crop]) > 0
}

// CheckCoverage fails when any of the given crops has no rules.
func (s *RuleStore) CheckCoverage(crops []string) error {
	var missing []string
	for _, crop := range crops {
		if !s.HasCrop(crop) {
			missing = append(missing, crop)
		}
	}
	if len(missing) > 0 {
		return model.ConfigurationError("no biological rules for configured crops %v", missing)
	}
	return nil
}

// Crops lists crops that have at least one rule, sorted.
func (s *RuleStore) Crops() []string {
	crops := make([]string, 0, len(s.byCrop))
	for crop := range s.byCrop {
		crops = append(crops, crop)
	}
	sort.Strings(crops)
	return crops
}

// RuleSet returns every source and rule, for seeding a database.
func (s *RuleStore) RuleSet() RuleSet {
	var set RuleSet
	for _, src := range s.sources {
		set.Sources = append(set.Sources, src)
	}
	sort.Slice(set.Sources, func(i, j int) bool { return set.Sources[i].ID < set.Sources[j].ID })
	for _, crop := range s.Crops() {
		set.Rules = append(set.Rules, s.byCrop[crop]...)
	}
	return set
}

func (s *RuleStore) String() string {
	n := 0
	for _, rules := range s.byCrop {
		n += len(rules)
	}
	return fmt.Sprintf("%d rules for %v from %d sources", n, s.Crops(), len(s.sources))
}

// sortByPriority orders by severity (most severe first), then by shortest
// spoilage time, then by id.
func sortByPriority(rules []model.SpoilageRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return higherPriority(rules[i], rules[j])
	})
}

func higherPriority(a, b model.SpoilageRule) bool {
	if a.Severity.Rank() != b.Severity.Rank() {
		return a.Severity.Rank() > b.Severity.Rank()
	}
	if a.SpoilageTimeHours != b.SpoilageTimeHours {
		return a.SpoilageTimeHours < b.SpoilageTimeHours
	}
	return a.ID < b.ID
}
