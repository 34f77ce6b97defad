package config

import (
	"errors"
	"fmt"

	"scenematch/internal/disambig"
	"scenematch/internal/fileinfo"
)

// Validate ensures the configuration is usable. Threshold relationships are
// checked here, at load time; the decision engine re-checks them defensively.
func (c *Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validatePhash(); err != nil {
		return err
	}
	if err := c.validateParser(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProvider() error {
	switch c.Provider.Name {
	case "stashdb", "theporndb":
	default:
		return fmt.Errorf("provider.name must be \"stashdb\" or \"theporndb\", got %q", c.Provider.Name)
	}
	if c.Provider.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/scenematch/config.toml"
		}
		return fmt.Errorf("provider.api_key is required. Set SCENEMATCH_API_KEY env var or edit %s (create with 'scenematch config init')", defaultPath)
	}
	if c.Provider.MinNameSimilarity < 0 || c.Provider.MinNameSimilarity > 1 {
		return errors.New("provider.min_name_similarity must be between 0 and 1")
	}
	return nil
}

func (c *Config) validatePhash() error {
	if c.Phash.Algorithm == "" {
		return errors.New("phash.algorithm must be set")
	}
	return c.Thresholds().Validate()
}

func (c *Config) validateParser() error {
	_, err := c.ParserRules()
	return err
}

// Thresholds assembles the decision-engine configuration as a value.
func (c *Config) Thresholds() disambig.Thresholds {
	return disambig.Thresholds{
		AcceptDistance:         c.Phash.AcceptDistance,
		AmbiguousMin:           c.Phash.AmbiguousMin,
		AmbiguousMax:           c.Phash.AmbiguousMax,
		DistanceMarginAccept:   c.Phash.DistanceMarginAccept,
		MajorityAcceptFraction: c.Phash.MajorityAcceptFraction,
		MinNameSimilarity:      c.Provider.MinNameSimilarity,
	}
}

// ParserRules compiles the configured filename rules, falling back to the
// built-in rule set when the config carries none.
func (c *Config) ParserRules() ([]fileinfo.Rule, error) {
	if len(c.Parser.Rules) == 0 {
		return fileinfo.DefaultRules(), nil
	}
	rules := make([]fileinfo.Rule, 0, len(c.Parser.Rules))
	for _, source := range c.Parser.Rules {
		rule, err := fileinfo.CompileRule(source.Name, source.Pattern)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
