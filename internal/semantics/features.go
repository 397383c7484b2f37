// Package semantics derives comparable feature sets from workbook
// fragments. Everything here is heuristic: the goal is a stable, normalized
// summary of what a view or datasource does, resilient to re-serialization
// noise between producer versions.
package semantics

import "sort"

// FeatureSet is the normalized summary of one fragment. All slice fields
// are sorted, duplicate-free string sets; equality is set equality.
type FeatureSet struct {
	Filters          []string // worksheet-level filter fields
	DateFilters      []string // subset of Filters that look like dates
	FilterControls   []string // "field → control label"
	Colors           []string // color encodings and literal palette values
	TooltipFields    []string
	TooltipRaw       string // serialized tooltip, for exact-change detection
	MarkFields       []string
	ColorBy          []string
	SizeBy           []string
	ShapeBy          []string
	LabelBy          []string
	Sheets           []string // views hosted by a container view
	DashboardSize    string
	DashboardFilters []string
	Legends          []string
	Actions          []string // "type — caption (scope)"
	Hierarchies      []string // "name: level → level"
	StoryPoints      []string // "caption → captured view"
}

// setBuilder accumulates the mutable sets during collection.
type setBuilder struct {
	filters          map[string]bool
	dateFilters      map[string]bool
	filterControls   map[string]bool
	colors           map[string]bool
	tooltipFields    map[string]bool
	markFields       map[string]bool
	colorBy          map[string]bool
	sizeBy           map[string]bool
	shapeBy          map[string]bool
	labelBy          map[string]bool
	sheets           map[string]bool
	dashboardFilters map[string]bool
	legends          map[string]bool
	actions          map[string]bool
	hierarchies      map[string]bool
	storyPoints      map[string]bool

	tooltipRaw    string
	dashboardSize string
}

func newSetBuilder() *setBuilder {
	return &setBuilder{
		filters:          map[string]bool{},
		dateFilters:      map[string]bool{},
		filterControls:   map[string]bool{},
		colors:           map[string]bool{},
		tooltipFields:    map[string]bool{},
		markFields:       map[string]bool{},
		colorBy:          map[string]bool{},
		sizeBy:           map[string]bool{},
		shapeBy:          map[string]bool{},
		labelBy:          map[string]bool{},
		sheets:           map[string]bool{},
		dashboardFilters: map[string]bool{},
		legends:          map[string]bool{},
		actions:          map[string]bool{},
		hierarchies:      map[string]bool{},
		storyPoints:      map[string]bool{},
	}
}

// build sorts every set so downstream diffing is deterministic.
func (b *setBuilder) build() FeatureSet {
	return FeatureSet{
		Filters:          sorted(b.filters),
		DateFilters:      sorted(b.dateFilters),
		FilterControls:   sorted(b.filterControls),
		Colors:           sorted(b.colors),
		TooltipFields:    sorted(b.tooltipFields),
		TooltipRaw:       b.tooltipRaw,
		MarkFields:       sorted(b.markFields),
		ColorBy:          sorted(b.colorBy),
		SizeBy:           sorted(b.sizeBy),
		ShapeBy:          sorted(b.shapeBy),
		LabelBy:          sorted(b.labelBy),
		Sheets:           sorted(b.sheets),
		DashboardSize:    b.dashboardSize,
		DashboardFilters: sorted(b.dashboardFilters),
		Legends:          sorted(b.legends),
		Actions:          sorted(b.actions),
		Hierarchies:      sorted(b.hierarchies),
		StoryPoints:      sorted(b.storyPoints),
	}
}

func sorted(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
