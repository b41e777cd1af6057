package duel

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/pathduel/go/internal/path"
)

// Rules are the match constants both peers must agree on.
type Rules struct {
	MaxRounds     int     `yaml:"max_rounds"`
	StartingLives int     `yaml:"starting_lives"`
	StartingMoney int     `yaml:"starting_money"`
	PathStartX    float64 `yaml:"path_start_x"`
	PathEndX      float64 `yaml:"path_end_x"`
	PathY         float64 `yaml:"path_y"`
	DefaultMethod string  `yaml:"default_method"`
}

// DefaultRules returns the standard duel rules
func DefaultRules() Rules {
	return Rules{
		MaxRounds:     5,
		StartingLives: 10,
		StartingMoney: 1000,
		PathStartX:    0,
		PathEndX:      19,
		PathY:         10,
		DefaultMethod: path.MethodLinear,
	}
}

// Validate checks the rules are playable.
func (r Rules) Validate() error {
	if r.MaxRounds < 1 {
		return fmt.Errorf("max_rounds must be at least 1, got %d", r.MaxRounds)
	}
	if r.StartingLives < 1 {
		return fmt.Errorf("starting_lives must be at least 1, got %d", r.StartingLives)
	}
	if r.StartingMoney < 0 {
		return fmt.Errorf("starting_money must not be negative, got %d", r.StartingMoney)
	}
	if r.PathEndX-r.PathStartX < path.MinXSeparation {
		return fmt.Errorf("path_end_x (%v) must be right of path_start_x (%v)", r.PathEndX, r.PathStartX)
	}
	if !path.ValidMethod(r.DefaultMethod) {
		return fmt.Errorf("default_method %q: %w", r.DefaultMethod, path.ErrUnknownMethod)
	}
	return nil
}

// LoadRules reads rules from a YAML file. Keys missing from the file keep
// their default values.
func LoadRules(filename string) (Rules, error) {
	rules := DefaultRules()

	data, err := os.ReadFile(filename)
	if err != nil {
		return rules, fmt.Errorf("failed to read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("failed to parse rules file: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return rules, fmt.Errorf("invalid rules in %s: %w", filename, err)
	}
	return rules, nil
}
