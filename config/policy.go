package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/krishna-kudari/gatekeep"
)

// Policy is the admission policy: rate limits plus IP rules.
type Policy struct {
	RateLimits gatekeep.LimitsConfig `json:"rateLimits"`
	IPRules    gatekeep.IPRules      `json:"ipRules"`
}

// DefaultPolicy returns the built-in policy: the default tier table with
// no IP restrictions.
func DefaultPolicy() *Policy {
	return &Policy{
		RateLimits: gatekeep.DefaultLimits(),
		IPRules:    gatekeep.IPRules{Mode: gatekeep.ModeBlocklist},
	}
}

// LoadPolicy parses and validates the policy file at path. An empty path
// or a missing file yields DefaultPolicy; a malformed file is an error so
// a typo cannot silently disable limiting.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPolicy(), nil
		}
		return nil, fmt.Errorf("config: reading policy: %w", err)
	}

	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: parsing policy: %w", err)
	}
	if err := p.RateLimits.Validate(); err != nil {
		return nil, fmt.Errorf("config: policy %s: %w", path, err)
	}
	switch p.IPRules.Mode {
	case gatekeep.ModeAllowlist, gatekeep.ModeBlocklist, "":
	default:
		return nil, fmt.Errorf("config: policy %s: unknown ipRules mode %q", path, p.IPRules.Mode)
	}
	return &p, nil
}
