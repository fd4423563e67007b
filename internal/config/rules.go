package config

import (
	_ "embed"
	"os"

	"harvest_service/internal/domain/model"
)

//go:embed defaults/rules.yaml
var defaultRulesYAML []byte

// ReadRules returns the rules document at path, or the embedded default
// rule set when path is empty.
func ReadRules(path string) ([]byte, error) {
	if path == "" {
		return defaultRulesYAML, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.ConfigurationError("failed to read rules %s: %v", path, err)
	}
	return data, nil
}
