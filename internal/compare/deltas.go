package compare

import (
	"fmt"
	"sort"
	"strings"

	"github.com/twbtools/twbdiff/internal/semantics"
	"github.com/twbtools/twbdiff/internal/workbook"
)

// The delta types carry one modification's facts as typed fields. They are
// converted to human-readable bullets only when a record is registered.

// ViewDelta is the difference between two revisions of one worksheet.
type ViewDelta struct {
	FiltersAdded         []string
	FiltersRemoved       []string
	ControlsAdded        []string
	ControlsRemoved      []string
	ColorByAdded         []string
	ColorByRemoved       []string
	SizeByAdded          []string
	SizeByRemoved        []string
	ShapeByAdded         []string
	ShapeByRemoved       []string
	LabelByAdded         []string
	LabelByRemoved       []string
	FieldsAdded          []string
	FieldsRemoved        []string
	HierarchiesAdded     []string
	HierarchiesRemoved   []string
	LegendsAdded         []string
	LegendsRemoved       []string
	TooltipChanged       bool
	TooltipFieldsAdded   []string
	TooltipFieldsRemoved []string
}

// NewViewDelta diffs two worksheet feature sets.
func NewViewDelta(old, new semantics.FeatureSet) ViewDelta {
	var d ViewDelta
	d.FiltersAdded, d.FiltersRemoved = setDiff(old.Filters, new.Filters)
	d.ControlsAdded, d.ControlsRemoved = setDiff(old.FilterControls, new.FilterControls)
	d.ColorByAdded, d.ColorByRemoved = setDiff(old.ColorBy, new.ColorBy)
	d.SizeByAdded, d.SizeByRemoved = setDiff(old.SizeBy, new.SizeBy)
	d.ShapeByAdded, d.ShapeByRemoved = setDiff(old.ShapeBy, new.ShapeBy)
	d.LabelByAdded, d.LabelByRemoved = setDiff(old.LabelBy, new.LabelBy)
	d.FieldsAdded, d.FieldsRemoved = setDiff(old.MarkFields, new.MarkFields)
	d.HierarchiesAdded, d.HierarchiesRemoved = setDiff(old.Hierarchies, new.Hierarchies)
	d.LegendsAdded, d.LegendsRemoved = setDiff(old.Legends, new.Legends)
	d.TooltipFieldsAdded, d.TooltipFieldsRemoved = setDiff(old.TooltipFields, new.TooltipFields)
	d.TooltipChanged = old.TooltipRaw != new.TooltipRaw
	return d
}

func (d ViewDelta) Bullets() []string {
	var out []string
	out = appendEach(out, "Filter added: ", d.FiltersAdded)
	out = appendEach(out, "Filter removed: ", d.FiltersRemoved)
	out = appendEach(out, "Filter controls changed, now: ", d.ControlsAdded)
	out = appendEach(out, "Filter controls changed, was: ", d.ControlsRemoved)
	out = appendEach(out, "Color encoding added: ", d.ColorByAdded)
	out = appendEach(out, "Color encoding removed: ", d.ColorByRemoved)
	out = appendEach(out, "Size encoding added: ", d.SizeByAdded)
	out = appendEach(out, "Size encoding removed: ", d.SizeByRemoved)
	out = appendEach(out, "Shape encoding added: ", d.ShapeByAdded)
	out = appendEach(out, "Shape encoding removed: ", d.ShapeByRemoved)
	out = appendEach(out, "Label encoding added: ", d.LabelByAdded)
	out = appendEach(out, "Label encoding removed: ", d.LabelByRemoved)
	out = appendEach(out, "Field added to view: ", d.FieldsAdded)
	out = appendEach(out, "Field removed from view: ", d.FieldsRemoved)
	out = appendEach(out, "Hierarchy added: ", d.HierarchiesAdded)
	out = appendEach(out, "Hierarchy removed: ", d.HierarchiesRemoved)
	out = appendEach(out, "Legend added: ", d.LegendsAdded)
	out = appendEach(out, "Legend removed: ", d.LegendsRemoved)
	if d.TooltipChanged {
		out = append(out, "Tooltip modified")
	}
	out = appendEach(out, "Tooltip field added: ", d.TooltipFieldsAdded)
	out = appendEach(out, "Tooltip field removed: ", d.TooltipFieldsRemoved)
	return out
}

// ContainerDelta is the difference between two revisions of one dashboard.
type ContainerDelta struct {
	SheetsAdded     []string
	SheetsRemoved   []string
	FiltersAdded    []string
	FiltersRemoved  []string
	ControlsAdded   []string
	ControlsRemoved []string
	LegendsAdded    []string
	LegendsRemoved  []string
	ActionsAdded    []string
	ActionsRemoved  []string
	SizeOld         string
	SizeNew         string
}

func NewContainerDelta(old, new semantics.FeatureSet) ContainerDelta {
	var d ContainerDelta
	d.SheetsAdded, d.SheetsRemoved = setDiff(old.Sheets, new.Sheets)
	d.FiltersAdded, d.FiltersRemoved = setDiff(old.DashboardFilters, new.DashboardFilters)
	d.ControlsAdded, d.ControlsRemoved = setDiff(old.FilterControls, new.FilterControls)
	d.LegendsAdded, d.LegendsRemoved = setDiff(old.Legends, new.Legends)
	d.ActionsAdded, d.ActionsRemoved = setDiff(old.Actions, new.Actions)
	if old.DashboardSize != new.DashboardSize {
		d.SizeOld, d.SizeNew = old.DashboardSize, new.DashboardSize
	}
	return d
}

func (d ContainerDelta) Bullets() []string {
	var out []string
	out = appendEach(out, "Sheet added to dashboard: ", d.SheetsAdded)
	out = appendEach(out, "Sheet removed from dashboard: ", d.SheetsRemoved)
	out = appendEach(out, "Dashboard filter added: ", d.FiltersAdded)
	out = appendEach(out, "Dashboard filter removed: ", d.FiltersRemoved)
	out = appendEach(out, "Filter controls changed, now: ", d.ControlsAdded)
	out = appendEach(out, "Filter controls changed, was: ", d.ControlsRemoved)
	out = appendEach(out, "Legend added: ", d.LegendsAdded)
	out = appendEach(out, "Legend removed: ", d.LegendsRemoved)
	out = appendEach(out, "Action added: ", d.ActionsAdded)
	out = appendEach(out, "Action removed: ", d.ActionsRemoved)
	if d.SizeOld != d.SizeNew {
		out = append(out, "Dashboard size changed: "+orNone(d.SizeOld)+" → "+orNone(d.SizeNew))
	}
	return out
}

// DatasourceDelta is the difference between two revisions of one datasource.
// Filter facts are kept apart from the rest because they register through
// the append-only path.
type DatasourceDelta struct {
	FiltersAdded         []string
	FiltersRemoved       []string
	JoinsAdded           []string
	JoinsRemoved         []string
	RelationshipsAdded   []string
	RelationshipsRemoved []string
	ColumnsAdded         []string
	ColumnsRemoved       []string
	ColumnsChanged       []string
	ConnChanged          bool
	ConnOld              semantics.ConnectionProfile
	ConnNew              semantics.ConnectionProfile
}

func NewDatasourceDelta(old, new *workbook.Element) DatasourceDelta {
	var d DatasourceDelta
	d.FiltersAdded, d.FiltersRemoved = setDiff(
		semantics.DatasourceFilters(old), semantics.DatasourceFilters(new))
	d.JoinsAdded, d.JoinsRemoved = setDiff(semantics.Joins(old), semantics.Joins(new))
	d.RelationshipsAdded, d.RelationshipsRemoved = setDiff(
		semantics.Relationships(old), semantics.Relationships(new))

	oldCols := semantics.Columns(old)
	newCols := semantics.Columns(new)
	for name, oc := range oldCols {
		nc, ok := newCols[name]
		if !ok {
			d.ColumnsRemoved = append(d.ColumnsRemoved, name)
			continue
		}
		if oc != nc {
			d.ColumnsChanged = append(d.ColumnsChanged,
				fmt.Sprintf("%s: %s/%s → %s/%s", name, oc.Datatype, oc.Role, nc.Datatype, nc.Role))
		}
	}
	for name := range newCols {
		if _, ok := oldCols[name]; !ok {
			d.ColumnsAdded = append(d.ColumnsAdded, name)
		}
	}
	sort.Strings(d.ColumnsAdded)
	sort.Strings(d.ColumnsRemoved)
	sort.Strings(d.ColumnsChanged)

	d.ConnOld = semantics.Connection(old)
	d.ConnNew = semantics.Connection(new)
	d.ConnChanged = d.ConnOld != d.ConnNew
	return d
}

// Bullets excludes filter facts; see FilterBullets.
func (d DatasourceDelta) Bullets() []string {
	var out []string
	out = appendEach(out, "Join added: ", d.JoinsAdded)
	out = appendEach(out, "Join removed: ", d.JoinsRemoved)
	out = appendEach(out, "Relationship added: ", d.RelationshipsAdded)
	out = appendEach(out, "Relationship removed: ", d.RelationshipsRemoved)
	out = appendEach(out, "Column added: ", d.ColumnsAdded)
	out = appendEach(out, "Column removed: ", d.ColumnsRemoved)
	out = appendEach(out, "Column changed: ", d.ColumnsChanged)
	if d.ConnChanged {
		out = append(out, "Connection changed: "+profileString(d.ConnOld)+" → "+profileString(d.ConnNew))
	}
	return out
}

// FilterBullets describes the datasource-filter facts.
func (d DatasourceDelta) FilterBullets() []string {
	var out []string
	out = appendEach(out, "Datasource filter added: ", d.FiltersAdded)
	out = appendEach(out, "Datasource filter removed: ", d.FiltersRemoved)
	return out
}

func profileString(p semantics.ConnectionProfile) string {
	s := p.Class + " (" + p.Mode + ", " + p.Privacy + ")"
	if p.Location != "" {
		s += " at " + p.Location
	}
	return s
}

// CalculationDelta is the difference between two revisions of one
// calculated field.
type CalculationDelta struct {
	FormulaOld string
	FormulaNew string
	CaptionOld string
	CaptionNew string
}

func (d CalculationDelta) Bullets() []string {
	var out []string
	if d.FormulaOld != d.FormulaNew {
		out = append(out, "Formula changed")
		out = append(out, "Was: "+truncate(d.FormulaOld, 160))
		out = append(out, "Now: "+truncate(d.FormulaNew, 160))
	}
	if d.CaptionOld != d.CaptionNew {
		out = append(out, "Caption changed: "+orNone(d.CaptionOld)+" → "+orNone(d.CaptionNew))
	}
	return out
}

// ParameterDelta is the difference between two revisions of one parameter.
type ParameterDelta struct {
	Old semantics.ParameterInfo
	New semantics.ParameterInfo
}

func (d ParameterDelta) Bullets() []string {
	var out []string
	if d.Old.Value != d.New.Value {
		out = append(out, "Current value changed: "+orNone(d.Old.Value)+" → "+orNone(d.New.Value))
	}
	if d.Old.Domain != d.New.Domain {
		out = append(out, "Domain type changed: "+orNone(d.Old.Domain)+" → "+orNone(d.New.Domain))
	}
	if d.Old.Min != d.New.Min || d.Old.Max != d.New.Max {
		out = append(out, fmt.Sprintf("Range changed: [%s, %s] → [%s, %s]",
			orNone(d.Old.Min), orNone(d.Old.Max), orNone(d.New.Min), orNone(d.New.Max)))
	}
	added, removed := setDiff(d.Old.Members, d.New.Members)
	out = appendEach(out, "List value added: ", added)
	out = appendEach(out, "List value removed: ", removed)
	if d.Old.Formula != d.New.Formula {
		out = append(out, "Parameter formula changed")
	}
	if d.Old.Caption != d.New.Caption {
		out = append(out, "Caption changed: "+orNone(d.Old.Caption)+" → "+orNone(d.New.Caption))
	}
	return out
}

// StoryDelta is the difference between two revisions of one story.
type StoryDelta struct {
	PointsAdded    []string
	PointsRemoved  []string
	SheetsAdded    []string
	SheetsRemoved  []string
	FiltersAdded   []string
	FiltersRemoved []string
}

func NewStoryDelta(old, new semantics.FeatureSet) StoryDelta {
	var d StoryDelta
	d.PointsAdded, d.PointsRemoved = setDiff(old.StoryPoints, new.StoryPoints)
	d.SheetsAdded, d.SheetsRemoved = setDiff(old.Sheets, new.Sheets)
	d.FiltersAdded, d.FiltersRemoved = setDiff(old.Filters, new.Filters)
	return d
}

func (d StoryDelta) Bullets() []string {
	var out []string
	out = appendEach(out, "Story point added: ", d.PointsAdded)
	out = appendEach(out, "Story point removed: ", d.PointsRemoved)
	out = appendEach(out, "Captured sheet added: ", d.SheetsAdded)
	out = appendEach(out, "Captured sheet removed: ", d.SheetsRemoved)
	out = appendEach(out, "Filter added: ", d.FiltersAdded)
	out = appendEach(out, "Filter removed: ", d.FiltersRemoved)
	return out
}

// setDiff diffs two sorted string sets, returning (added, removed).
func setDiff(old, new []string) (added, removed []string) {
	oldSet := make(map[string]bool, len(old))
	for _, s := range old {
		oldSet[s] = true
	}
	newSet := make(map[string]bool, len(new))
	for _, s := range new {
		newSet[s] = true
		if !oldSet[s] {
			added = append(added, s)
		}
	}
	for _, s := range old {
		if !newSet[s] {
			removed = append(removed, s)
		}
	}
	return added, removed
}

func appendEach(out []string, prefix string, items []string) []string {
	for _, it := range items {
		out = append(out, prefix+it)
	}
	return out
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
