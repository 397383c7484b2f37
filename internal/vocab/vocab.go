// Package vocab holds the classifier lookup tables the extraction and
// comparison passes match against. Producer versions keep inventing new
// tokens, so the tables are data, not code: Default covers the known
// vocabulary and Load merges site-specific additions from a YAML file.
package vocab

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Hint maps a substring of a raw control token to a business label. Hints
// are tried in order after the exact mode table misses.
type Hint struct {
	Token string `yaml:"token"`
	Label string `yaml:"label"`
}

// Vocabulary is the full set of lookup tables.
type Vocabulary struct {
	// ControlModes maps a raw filter-control mode token (lower-cased,
	// spaces removed) to its display label.
	ControlModes map[string]string `yaml:"control_modes"`

	// ControlHints are substring fallbacks for unmapped control tokens.
	ControlHints []Hint `yaml:"control_hints"`

	// RLSKeywords mark a calculation formula as row-level security when any
	// of them appears (case-insensitive).
	RLSKeywords []string `yaml:"rls_keywords"`

	// LayoutTerms identify layout-only change facts; a modified container
	// view whose facts all match is downgraded to a non-counted class.
	LayoutTerms []string `yaml:"layout_terms"`

	// NoiseTags are presentation-only tags the feature collector skips.
	NoiseTags []string `yaml:"noise_tags"`

	noiseSet map[string]bool
}

// Default returns the built-in tables.
func Default() *Vocabulary {
	v := &Vocabulary{
		ControlModes: map[string]string{
			"checkdropdown":       "Dropdown (multi)",
			"dropdown":            "Dropdown",
			"singlevaluedropdown": "Single Value Dropdown",
			"single":              "Single Value",
			"singlevalue":         "Single Value",
			"multivalue":          "Multiple Values",
			"list":                "List",
			"checklist":           "List (multi)",
			"slider":              "Slider",
			"range":               "Range",
		},
		ControlHints: []Hint{
			{Token: "single value", Label: "Single Value"},
			{Token: "singlevaluedropdown", Label: "Single Value Dropdown"},
			{Token: "singlevaluedrop", Label: "Single Value Dropdown"},
			{Token: "single", Label: "Single Value"},
			{Token: "multiple values", Label: "Multiple Values"},
			{Token: "multivalue", Label: "Multiple Values"},
			{Token: "checkdropdown", Label: "Dropdown (multi)"},
			{Token: "checklist", Label: "List (multi)"},
			{Token: "dropdown", Label: "Dropdown"},
			{Token: "list", Label: "List"},
			{Token: "slider", Label: "Slider"},
			{Token: "range", Label: "Range"},
		},
		RLSKeywords: []string{
			"USERNAME(",
			"USERDOMAIN(",
			"USERFULLNAME(",
			"FULLNAME(",
			"ISMEMBEROF(",
			"USERATTR(",
		},
		LayoutTerms: []string{
			"layout",
			"zone",
			"position",
			"dimension",
			"width",
			"height",
			"visual arrangement",
			"container",
			"device",
			"floating",
			"tiled",
		},
		NoiseTags: []string{
			"window", "windows", "viewpoint", "viewpoints", "cards", "card",
			"strip", "selection-collection", "node-selection", "explain-data",
			"device-layout", "pane", "panes", "format-panes", "style-rule",
			"style", "map", "map-layer",
		},
	}
	v.index()
	return v
}

// Load reads a YAML vocabulary file and merges it over the defaults. Lists
// in the file extend the defaults; control-mode entries override per key.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	var overlay Vocabulary
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	v := Default()
	for k, lbl := range overlay.ControlModes {
		v.ControlModes[strings.ToLower(k)] = lbl
	}
	v.ControlHints = append(v.ControlHints, overlay.ControlHints...)
	v.RLSKeywords = append(v.RLSKeywords, overlay.RLSKeywords...)
	v.LayoutTerms = append(v.LayoutTerms, overlay.LayoutTerms...)
	v.NoiseTags = append(v.NoiseTags, overlay.NoiseTags...)
	v.index()
	return v, nil
}

func (v *Vocabulary) index() {
	v.noiseSet = make(map[string]bool, len(v.NoiseTags))
	for _, t := range v.NoiseTags {
		v.noiseSet[strings.ToLower(t)] = true
	}
}

// ControlLabel resolves a raw control token to a display label. Exact mode
// lookup first, then substring hints, then the raw token itself, so a
// detected control is never dropped silently.
func (v *Vocabulary) ControlLabel(token string) string {
	if token == "" {
		return ""
	}
	key := strings.ToLower(strings.ReplaceAll(token, " ", ""))
	if lbl, ok := v.ControlModes[key]; ok {
		return lbl
	}
	if lbl := v.HintLabel(token); lbl != "" {
		return lbl
	}
	return token
}

// HintLabel returns the first substring-hint label matching s, or "".
func (v *Vocabulary) HintLabel(s string) string {
	low := strings.ToLower(s)
	for _, h := range v.ControlHints {
		if strings.Contains(low, h.Token) {
			return h.Label
		}
	}
	return ""
}

// IsRLS reports whether a calculation formula gates data by identity or
// group membership.
func (v *Vocabulary) IsRLS(formula string) bool {
	if formula == "" {
		return false
	}
	up := strings.ToUpper(formula)
	for _, kw := range v.RLSKeywords {
		if strings.Contains(up, strings.ToUpper(kw)) {
			return true
		}
	}
	return false
}

// IsNoiseTag reports whether a tag is presentation-only.
func (v *Vocabulary) IsNoiseTag(tag string) bool {
	return v.noiseSet[strings.ToLower(tag)]
}

// IsLayoutOnly reports whether a change fact describes layout repositioning
// rather than a functional change.
func (v *Vocabulary) IsLayoutOnly(fact string) bool {
	low := strings.ToLower(fact)
	for _, term := range v.LayoutTerms {
		if strings.Contains(low, term) {
			return true
		}
	}
	return false
}
