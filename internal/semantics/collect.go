package semantics

import (
	"regexp"
	"strings"

	"github.com/twbtools/twbdiff/internal/vocab"
	"github.com/twbtools/twbdiff/internal/workbook"
)

// zoneParamField matches the field reference inside a zone param like
// "[none:Category:nk]".
var zoneParamField = regexp.MustCompile(`(?i)\[none:([^\]:]+):nk\]`)

// hexColor matches literal color values such as "#4E79A7" or "#4E79A7FF".
var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}([0-9A-Fa-f]{2})?$`)

// Collect walks one fragment's subtree and derives its feature set.
// Presentation-only subtrees are skipped wholesale, except that legend
// indicators inside them still count. A nil fragment yields the empty set.
func Collect(frag *workbook.Element, v *vocab.Vocabulary) FeatureSet {
	b := newSetBuilder()
	if frag == nil {
		return b.build()
	}

	frag.Walk(func(e *workbook.Element) bool {
		tag := e.Tag

		if v.IsNoiseTag(tag) && tag != "legend" {
			// Legend cards live inside skipped zones; check shallowly
			// before pruning the subtree.
			if tag == "card" {
				collectLegendCard(e, b)
			}
			return false
		}

		switch {
		case tag == "dashboard":
			b.dashboardSize = dashboardSize(e)

		case tag == "zone" || tag == "sheet":
			collectZone(e, b, v)

		case tag == "worksheet" && e != frag:
			if nm := e.FirstAttr("name", "sheet"); nm != "" {
				addField(b.sheets, nm)
			}

		case tag == "action":
			b.actions[actionDescriptor(e)] = true
			for _, c := range actionFields(e) {
				addField(b.dashboardFilters, c)
			}

		case strings.HasSuffix(tag, "-action"):
			// Dashboard-scoped action variants: filter-action,
			// highlight-action, url-action, parameter-action.
			kind := titleWord(strings.TrimSuffix(tag, "-action"))
			cap := e.FirstAttr("caption", "name")
			if cap == "" {
				cap = kind + " Action"
			}
			b.actions[kind+" — "+cap+" (dashboard-level)"] = true

		case tag == "legend":
			addField(b.legends, e.FirstAttr("title", "name"))
			if e.FirstAttr("title", "name") == "" {
				b.legends["Legend"] = true
			}

		case tag == "card":
			collectLegendCard(e, b)

		case tag == "tooltip" || tag == "formatted-text":
			if tag == "tooltip" {
				b.tooltipRaw = e.XML()
			}
			for _, run := range e.FindAll("run") {
				if t := strings.TrimSpace(run.Text); t != "" {
					addField(b.tooltipFields, t)
				}
			}

		case tag == "encodings" || tag == "encoding":
			collectEncodings(e, b)

		case tag == "drill-path":
			collectHierarchy(e, b)

		case tag == "story-point":
			cap := e.FirstAttr("caption", "name")
			if cap == "" {
				cap = "Story Point"
			}
			if sheet := e.Attr("captured-sheet"); sheet != "" {
				b.storyPoints[cap+" → "+sheet] = true
			} else {
				b.storyPoints[cap] = true
			}

		case tag == "color-encoding" || tag == "color-rules" || tag == "palette":
			nm := e.FirstAttr("field", "name")
			if nm == "" {
				nm = "Color"
			}
			addField(b.colors, nm)
		}

		if strings.Contains(tag, "filter") || (tag == "encoding" && strings.EqualFold(e.Attr("type"), "filter")) {
			collectFilter(e, b, v)
		}

		// Literal color attributes anywhere in the fragment.
		for _, a := range e.Attrs {
			if strings.EqualFold(a.Name, "color") || hexColor.MatchString(a.Value) {
				addField(b.colors, a.Value)
			}
		}
		return true
	})

	return b.build()
}

func dashboardSize(e *workbook.Element) string {
	if sz := e.FirstAttr("size", "size-mode"); sz != "" {
		return sz
	}
	w, h := e.Attr("width"), e.Attr("height")
	if w != "" || h != "" {
		return "fixed " + w + "x" + h
	}
	return ""
}

// collectZone reads a container-view zone: hosted view names, filter fields
// encoded in the zone param, the filter-control mode, and legend markers.
func collectZone(e *workbook.Element, b *setBuilder, v *vocab.Vocabulary) {
	if nm := e.FirstAttr("name", "sheet"); nm != "" {
		addField(b.sheets, nm)
	}

	var field string
	if m := zoneParamField.FindStringSubmatch(e.Attr("param")); m != nil {
		field = strings.TrimSpace(m[1])
	}
	if field != "" {
		addField(b.dashboardFilters, field)
		if mode := strings.TrimSpace(e.Attr("mode")); mode != "" {
			b.filterControls[workbook.CleanField(field)+" → "+v.ControlLabel(mode)] = true
		}
	}

	if strings.Contains(strings.ToLower(e.Attr("zone-type")), "legend") {
		nm := e.FirstAttr("name", "caption")
		if nm == "" {
			nm = "Legend"
		}
		addField(b.legends, nm)
	}
	if strings.EqualFold(e.Attr("type-v2"), "color") {
		b.legends["Color"] = true
	}
}

// collectFilter records a filter field and tries to attribute a control
// label to it by scanning the element's own attributes, then every
// descendant attribute and text node, for a known control token.
func collectFilter(e *workbook.Element, b *setBuilder, v *vocab.Vocabulary) {
	f := e.FirstAttr("field", "column", "name", "ref")
	if f == "" {
		return
	}
	addField(b.filters, f)
	if strings.Contains(strings.ToLower(f), "date") {
		addField(b.dateFilters, f)
	}

	var label string
	e.Walk(func(sub *workbook.Element) bool {
		if label != "" {
			return false
		}
		for _, a := range sub.Attrs {
			if l := v.HintLabel(a.Value); l != "" {
				label = l
				return false
			}
		}
		if sub != e && sub.Text != "" {
			if l := v.HintLabel(sub.Text); l != "" {
				label = l
				return false
			}
		}
		return true
	})
	if label != "" {
		b.filterControls[workbook.CleanField(f)+" → "+label] = true
	}
}

// actionDescriptor classifies an action element and resolves its scope.
// Scope falls back to "workbook" when no source node names a dashboard or
// worksheet — explicit rather than omitted, so the record stays complete.
func actionDescriptor(e *workbook.Element) string {
	class := strings.ToLower(e.Attr("class") + e.Attr("type"))
	kind := "action"
	switch {
	case strings.Contains(class, "filter"):
		kind = "filter"
	case strings.Contains(class, "highlight"), strings.Contains(class, "brush"):
		kind = "highlight"
	case strings.Contains(class, "url"):
		kind = "url"
	case strings.Contains(class, "parameter"):
		kind = "parameter"
	case strings.Contains(class, "set"):
		kind = "set control"
	}

	scope := "workbook"
	e.Walk(func(c *workbook.Element) bool {
		if c.Tag == "source" {
			if d := c.Attr("dashboard"); d != "" {
				scope = "dashboard:" + d
				return false
			}
			if w := c.Attr("worksheet"); w != "" {
				scope = "worksheet:" + w
				return false
			}
		}
		return true
	})

	cap := e.FirstAttr("caption", "name")
	if cap == "" {
		cap = "Action"
	}
	return kind + " — " + cap + " (" + scope + ")"
}

// actionFields lists the fields an action touches.
func actionFields(e *workbook.Element) []string {
	var out []string
	e.Walk(func(c *workbook.Element) bool {
		switch c.Tag {
		case "source-column", "target-column", "column", "field", "filter":
			if f := c.FirstAttr("name", "field", "column"); f != "" {
				out = append(out, f)
			}
		}
		return true
	})
	return out
}

// collectEncodings attributes mark encodings to color/size/shape/label by
// substring-matching the child tag and declared type. A field with no
// matching signal is still a field in the view.
func collectEncodings(e *workbook.Element, b *setBuilder) {
	nodes := []*workbook.Element{e}
	if e.Tag == "encodings" {
		nodes = e.Children
	}
	for _, enc := range nodes {
		fld := enc.FirstAttr("field", "column", "name")
		if fld == "" {
			continue
		}
		addField(b.markFields, fld)
		t := strings.ToLower(enc.Attr("type") + enc.Tag)
		if strings.Contains(t, "color") {
			addField(b.colorBy, fld)
		}
		if strings.Contains(t, "size") {
			addField(b.sizeBy, fld)
		}
		if strings.Contains(t, "shape") {
			addField(b.shapeBy, fld)
		}
		if strings.Contains(t, "label") {
			addField(b.labelBy, fld)
		}
	}
}

// collectHierarchy reads one drill path. Level names come from child text
// first, attributes second; a one-level path is still a valid hierarchy.
func collectHierarchy(e *workbook.Element, b *setBuilder) {
	name := e.FirstAttr("name", "caption")
	if name == "" {
		name = "Hierarchy"
	}
	var levels []string
	for _, f := range e.Children {
		if f.Tag != "field" {
			continue
		}
		txt := strings.TrimSpace(f.Text)
		if txt == "" {
			txt = f.FirstAttr("field", "column", "name")
		}
		if txt != "" {
			levels = append(levels, workbook.CleanField(txt))
		}
	}
	if len(levels) > 0 {
		b.hierarchies[name+": "+strings.Join(levels, " → ")] = true
	}
}

func collectLegendCard(e *workbook.Element, b *setBuilder) {
	t := strings.ToLower(e.Attr("type"))
	if t == "color" || t == "size" || t == "shape" {
		if nm := e.FirstAttr("param", "name"); nm != "" {
			addField(b.legends, nm)
		}
	}
}

func titleWord(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// addField normalizes and records a field reference; empty values after
// normalization are dropped.
func addField(set map[string]bool, v string) {
	if f := workbook.CleanField(v); f != "" {
		set[f] = true
	}
}
