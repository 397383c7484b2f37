// Package compare classifies the differences between two extracted section
// maps and populates a caller-owned change registry. One Comparator may be
// shared across runs; each run gets its own registry.
package compare

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/twbtools/twbdiff/internal/registry"
	"github.com/twbtools/twbdiff/internal/sections"
	"github.com/twbtools/twbdiff/internal/semantics"
	"github.com/twbtools/twbdiff/internal/vocab"
)

type Comparator struct {
	Vocab *vocab.Vocabulary
	Log   *slog.Logger
}

func New(v *vocab.Vocabulary, log *slog.Logger) *Comparator {
	if v == nil {
		v = vocab.Default()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Comparator{Vocab: v, Log: log}
}

// Run compares every category of the two section maps and registers the
// resulting change records. It never fails: unparseable fragments are
// skipped at the smallest scope and the run always completes.
func (c *Comparator) Run(old, new sections.Map, reg *registry.Registry) {
	c.compareDatasources(old[sections.Datasource], new[sections.Datasource], reg)
	c.compareCalculations(old[sections.Calculation], new[sections.Calculation], reg)
	c.compareParameters(old[sections.Parameter], new[sections.Parameter], reg)
	c.compareWorksheets(old[sections.Worksheet], new[sections.Worksheet], reg)
	c.compareContainers(old[sections.Dashboard], new[sections.Dashboard], reg)
	c.compareStories(old[sections.Story], new[sections.Story], reg)
	c.registerSummary(old, new, reg)
}

// unionNames merges both name sets and sorts them, so iteration order and
// therefore registry content is deterministic.
func unionNames(old, new map[string]sections.Fragment) []string {
	seen := make(map[string]bool, len(old)+len(new))
	out := make([]string, 0, len(old)+len(new))
	for n := range old {
		seen[n] = true
		out = append(out, n)
	}
	for n := range new {
		if !seen[n] {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Comparator) compareWorksheets(old, new map[string]sections.Fragment, reg *registry.Registry) {
	for _, name := range unionNames(old, new) {
		of, inOld := old[name]
		nf, inNew := new[name]
		title := "Worksheet — " + name
		switch {
		case inOld && !inNew:
			reg.Register(registry.LevelWorksheet, name, title, registry.StatusRemoved, c.describeView(of))
		case !inOld && inNew:
			reg.Register(registry.LevelWorksheet, name, title, registry.StatusAdded, c.describeView(nf))
		case of.Raw == nf.Raw:
			// identical content, no record
		case of.El == nil || nf.El == nil:
			c.Log.Warn("skipping unparseable worksheet fragment", "name", name)
		default:
			delta := NewViewDelta(
				semantics.Collect(of.El, c.Vocab),
				semantics.Collect(nf.El, c.Vocab))
			bullets := delta.Bullets()
			if len(bullets) == 0 {
				bullets = StructDiff(of.El, nf.El)
			}
			if len(bullets) == 0 {
				bullets = []string{"Definition changed"}
			}
			reg.Register(registry.LevelWorksheet, name, title, registry.StatusModified, bullets)
		}
	}
}

func (c *Comparator) compareContainers(old, new map[string]sections.Fragment, reg *registry.Registry) {
	const level = registry.LevelDashboard
	for _, name := range unionNames(old, new) {
		of, inOld := old[name]
		nf, inNew := new[name]
		title := "Dashboard — " + name
		switch {
		case inOld && !inNew:
			reg.Register(level, name, title, registry.StatusRemoved, c.describeContainer(of))
		case !inOld && inNew:
			reg.Register(level, name, title, registry.StatusAdded, c.describeContainer(nf))
		case of.Raw == nf.Raw || of.Canonical == nf.Canonical:
			// identical, or differing only in publish-time noise
		case of.El == nil || nf.El == nil:
			c.Log.Warn("skipping unparseable dashboard fragment", "name", name)
		default:
			delta := NewContainerDelta(
				semantics.Collect(of.El, c.Vocab),
				semantics.Collect(nf.El, c.Vocab))
			bullets := delta.Bullets()
			if len(bullets) == 0 {
				bullets = StructDiff(of.El, nf.El)
			}
			if len(bullets) == 0 {
				bullets = []string{"Definition changed"}
			}
			status := registry.StatusModified
			if c.allLayoutOnly(bullets) {
				status = registry.StatusAdditional
			}
			reg.Register(level, name, title, status, bullets)
		}
	}
}

func (c *Comparator) compareStories(old, new map[string]sections.Fragment, reg *registry.Registry) {
	for _, name := range unionNames(old, new) {
		of, inOld := old[name]
		nf, inNew := new[name]
		title := "Story — " + name
		switch {
		case inOld && !inNew:
			reg.Register(registry.LevelStory, name, title, registry.StatusRemoved, c.describeStory(of))
		case !inOld && inNew:
			reg.Register(registry.LevelStory, name, title, registry.StatusAdded, c.describeStory(nf))
		case of.Raw == nf.Raw || of.Canonical == nf.Canonical:
			// republish with no change to points, sheets, or filters
		case of.El == nil || nf.El == nil:
			c.Log.Warn("skipping unparseable story fragment", "name", name)
		default:
			delta := NewStoryDelta(
				semantics.Collect(of.El, c.Vocab),
				semantics.Collect(nf.El, c.Vocab))
			bullets := delta.Bullets()
			if len(bullets) == 0 {
				bullets = StructDiff(of.El, nf.El)
			}
			if len(bullets) == 0 {
				bullets = []string{"Definition changed"}
			}
			status := registry.StatusModified
			if c.allLayoutOnly(bullets) {
				status = registry.StatusAdditional
			}
			reg.Register(registry.LevelStory, name, title, status, bullets)
		}
	}
}

func (c *Comparator) compareDatasources(old, new map[string]sections.Fragment, reg *registry.Registry) {
	for _, name := range unionNames(old, new) {
		of, inOld := old[name]
		nf, inNew := new[name]
		title := "Datasource — " + name
		switch {
		case inOld && !inNew:
			reg.Register(registry.LevelDatasource, name, title, registry.StatusRemoved, c.describeDatasource(of))
		case !inOld && inNew:
			reg.Register(registry.LevelDatasource, name, title, registry.StatusAdded, c.describeDatasource(nf))
		case of.Raw == nf.Raw || of.Canonical == nf.Canonical:
			// identical, or a republish that changed only location ids
		case of.El == nil || nf.El == nil:
			c.Log.Warn("skipping unparseable datasource fragment", "name", name)
		default:
			delta := NewDatasourceDelta(of.El, nf.El)
			bullets := delta.Bullets()
			filterBullets := delta.FilterBullets()
			if len(bullets) == 0 && len(filterBullets) == 0 {
				bullets = StructDiff(of.El, nf.El)
				if len(bullets) == 0 {
					bullets = []string{"Definition changed"}
				}
			}
			if len(bullets) > 0 {
				reg.Register(registry.LevelDatasource, name, title, registry.StatusModified, bullets)
			}
			if len(filterBullets) > 0 {
				reg.Register(registry.LevelDatasource, name, registry.DatasourceFiltersTitle,
					registry.StatusModified, filterBullets)
			}
		}
	}
}

func (c *Comparator) compareCalculations(old, new map[string]sections.Fragment, reg *registry.Registry) {
	renames, consumedOld, consumedNew := ResolveRenames(old, new, c.Vocab)
	for _, rn := range renames {
		title := "Calculation Renamed — " + rn.Old + " → " + rn.New
		reg.Register(registry.LevelWorkbook, "", title, registry.StatusModified, []string{
			"Renamed: " + rn.Old + " → " + rn.New,
			"Row-level security formula unchanged",
		})
	}

	for _, name := range unionNames(old, new) {
		of, inOld := old[name]
		nf, inNew := new[name]
		title := "Calculation — " + name
		switch {
		case inOld && !inNew:
			if consumedOld[name] {
				continue
			}
			reg.Register(registry.LevelWorkbook, "", title, registry.StatusRemoved, c.describeCalculation(of))
		case !inOld && inNew:
			if consumedNew[name] {
				continue
			}
			reg.Register(registry.LevelWorkbook, "", title, registry.StatusAdded, c.describeCalculation(nf))
		case of.Raw == nf.Raw:
			// identical content, no record
		case of.El == nil || nf.El == nil:
			c.Log.Warn("skipping unparseable calculation fragment", "name", name)
		default:
			delta := CalculationDelta{
				FormulaOld: semantics.Formula(of.El),
				FormulaNew: semantics.Formula(nf.El),
				CaptionOld: of.El.Attr("caption"),
				CaptionNew: nf.El.Attr("caption"),
			}
			bullets := delta.Bullets()
			if len(bullets) == 0 {
				bullets = StructDiff(of.El, nf.El)
			}
			if len(bullets) == 0 {
				bullets = []string{"Definition changed"}
			}
			reg.Register(registry.LevelWorkbook, "", title, registry.StatusModified, bullets)
		}
	}
}

func (c *Comparator) compareParameters(old, new map[string]sections.Fragment, reg *registry.Registry) {
	for _, name := range unionNames(old, new) {
		of, inOld := old[name]
		nf, inNew := new[name]
		title := "Parameter — " + name
		switch {
		case inOld && !inNew:
			reg.Register(registry.LevelParameter, name, title, registry.StatusRemoved, c.describeParameter(of))
		case !inOld && inNew:
			reg.Register(registry.LevelParameter, name, title, registry.StatusAdded, c.describeParameter(nf))
		case of.Raw == nf.Raw:
			// identical content, no record
		case of.El == nil || nf.El == nil:
			c.Log.Warn("skipping unparseable parameter fragment", "name", name)
		default:
			delta := ParameterDelta{
				Old: semantics.Parameter(of.El),
				New: semantics.Parameter(nf.El),
			}
			bullets := delta.Bullets()
			if len(bullets) == 0 {
				bullets = []string{"Definition changed"}
			}
			reg.Register(registry.LevelParameter, name, title, registry.StatusModified, bullets)
		}
	}
}

// registerSummary adds a workbook-level informational record when the two
// revisions disagree on object counts.
func (c *Comparator) registerSummary(old, new sections.Map, reg *registry.Registry) {
	type count struct {
		label    string
		old, new int
	}
	counts := []count{
		{"Datasources", len(old[sections.Datasource]), len(new[sections.Datasource])},
		{"Calculations", len(old[sections.Calculation]), len(new[sections.Calculation])},
		{"RLS calculations", c.countRLS(old[sections.Calculation]), c.countRLS(new[sections.Calculation])},
		{"Parameters", len(old[sections.Parameter]), len(new[sections.Parameter])},
		{"Worksheets", len(old[sections.Worksheet]), len(new[sections.Worksheet])},
		{"Dashboards", len(old[sections.Dashboard]), len(new[sections.Dashboard])},
		{"Stories", len(old[sections.Story]), len(new[sections.Story])},
	}
	var bullets []string
	for _, ct := range counts {
		if ct.old != ct.new {
			bullets = append(bullets, fmt.Sprintf("%s: %d → %d", ct.label, ct.old, ct.new))
		}
	}
	if len(bullets) > 0 {
		reg.Register(registry.LevelWorkbook, "", "Workbook Summary", registry.StatusInfo, bullets)
	}
}

func (c *Comparator) countRLS(frags map[string]sections.Fragment) int {
	n := 0
	for _, f := range frags {
		if c.Vocab.IsRLS(semantics.Formula(f.El)) {
			n++
		}
	}
	return n
}

func (c *Comparator) allLayoutOnly(bullets []string) bool {
	for _, b := range bullets {
		if !c.Vocab.IsLayoutOnly(b) {
			return false
		}
	}
	return len(bullets) > 0
}

// The describe helpers summarize one fragment for an Added or Removed
// record. Both directions of a comparison produce the same bullets for the
// same fragment, which keeps add/remove records symmetric.

func (c *Comparator) describeView(f sections.Fragment) []string {
	fs := semantics.Collect(f.El, c.Vocab)
	var out []string
	out = appendJoined(out, "Filters: ", fs.Filters)
	out = appendJoined(out, "Filter controls: ", fs.FilterControls)
	out = appendJoined(out, "Fields in view: ", fs.MarkFields)
	out = appendJoined(out, "Hierarchies: ", fs.Hierarchies)
	out = appendJoined(out, "Legends: ", fs.Legends)
	return out
}

func (c *Comparator) describeContainer(f sections.Fragment) []string {
	fs := semantics.Collect(f.El, c.Vocab)
	var out []string
	out = appendJoined(out, "Sheets: ", fs.Sheets)
	out = appendJoined(out, "Dashboard filters: ", fs.DashboardFilters)
	out = appendJoined(out, "Actions: ", fs.Actions)
	out = appendJoined(out, "Legends: ", fs.Legends)
	if fs.DashboardSize != "" {
		out = append(out, "Size: "+fs.DashboardSize)
	}
	return out
}

func (c *Comparator) describeStory(f sections.Fragment) []string {
	fs := semantics.Collect(f.El, c.Vocab)
	var out []string
	out = appendJoined(out, "Story points: ", fs.StoryPoints)
	out = appendJoined(out, "Captured sheets: ", fs.Sheets)
	return out
}

func (c *Comparator) describeDatasource(f sections.Fragment) []string {
	var out []string
	prof := semantics.Connection(f.El)
	out = append(out, "Connection: "+profileString(prof))
	out = appendJoined(out, "Datasource filters: ", semantics.DatasourceFilters(f.El))
	out = appendJoined(out, "Joins: ", semantics.Joins(f.El))
	out = appendJoined(out, "Relationships: ", semantics.Relationships(f.El))
	return out
}

func (c *Comparator) describeCalculation(f sections.Fragment) []string {
	formula := semantics.Formula(f.El)
	var out []string
	if formula != "" {
		out = append(out, "Formula: "+truncate(formula, 160))
		if c.Vocab.IsRLS(formula) {
			out = append(out, "Row-level security calculation")
		}
	}
	return out
}

func (c *Comparator) describeParameter(f sections.Fragment) []string {
	p := semantics.Parameter(f.El)
	var out []string
	if p.Value != "" {
		out = append(out, "Current value: "+p.Value)
	}
	if p.Domain != "" {
		out = append(out, "Domain: "+p.Domain)
	}
	if p.Min != "" || p.Max != "" {
		out = append(out, "Range: ["+orNone(p.Min)+", "+orNone(p.Max)+"]")
	}
	out = appendJoined(out, "List values: ", p.Members)
	return out
}

func appendJoined(out []string, prefix string, items []string) []string {
	if len(items) == 0 {
		return out
	}
	return append(out, prefix+strings.Join(items, ", "))
}
