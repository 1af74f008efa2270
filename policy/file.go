package policy

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// fileSpec is the YAML shape of a policy file:
//
//	groups:
//	  - name: ai
//	    exact: ["/api/ai/chat"]
//	    rate_limit: {rate: 10, window: 1m}
//	    timeout: 30s
//	    auth_required: true
//	  - name: health
//	    prefix: ["/healthz", "/metrics"]
//	    exempt: true
type fileSpec struct {
	Groups []groupSpec `yaml:"groups"`
}

type groupSpec struct {
	Name         string         `yaml:"name"`
	Exact        []string       `yaml:"exact"`
	Prefix       []string       `yaml:"prefix"`
	Regex        []string       `yaml:"regex"`
	RateLimit    *rateLimitSpec `yaml:"rate_limit"`
	Exempt       bool           `yaml:"exempt"`
	Timeout      time.Duration  `yaml:"timeout"`
	AuthRequired bool           `yaml:"auth_required"`
}

type rateLimitSpec struct {
	Rate   int           `yaml:"rate"`
	Window time.Duration `yaml:"window"`
}

// LoadFile reads a YAML policy file and builds a Resolver from it.
func LoadFile(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	res, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("policy: %s: %w", path, err)
	}
	return res, nil
}

// Parse builds a Resolver from YAML. Groups keep their file order, which
// decides ties.
func Parse(data []byte) (*Resolver, error) {
	var spec fileSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	groups := make([]*GroupBuilder, 0, len(spec.Groups))
	seen := make(map[string]bool, len(spec.Groups))
	for i, gs := range spec.Groups {
		g, err := gs.build()
		if err != nil {
			return nil, fmt.Errorf("group %d (%q): %w", i, gs.Name, err)
		}
		if seen[g.Name()] {
			return nil, fmt.Errorf("group %d: duplicate name %q", i, g.Name())
		}
		seen[g.Name()] = true
		groups = append(groups, g)
	}
	return NewResolver(groups...), nil
}

func (gs groupSpec) build() (*GroupBuilder, error) {
	if gs.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if len(gs.Exact)+len(gs.Prefix)+len(gs.Regex) == 0 {
		return nil, fmt.Errorf("at least one exact, prefix or regex rule is required")
	}

	g := Group(gs.Name)
	for _, p := range gs.Exact {
		g.Exact(p)
	}
	for _, p := range gs.Prefix {
		g.Prefix(p)
	}
	for _, p := range gs.Regex {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", p, err)
		}
		g.rules = append(g.rules, rule{kind: kindRegex, pattern: p, re: re})
	}

	pol := Policy{
		Exempt:       gs.Exempt,
		Timeout:      gs.Timeout,
		AuthRequired: gs.AuthRequired,
	}
	if rl := gs.RateLimit; rl != nil {
		if rl.Rate <= 0 || rl.Window <= 0 {
			return nil, fmt.Errorf("rate_limit needs positive rate and window, got %d per %s", rl.Rate, rl.Window)
		}
		pol.RateLimit = &RateLimitRule{Rate: rl.Rate, Window: rl.Window}
	}
	return g.Policy(pol), nil
}
