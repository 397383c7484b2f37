// Package sections carves a parsed workbook tree into named, typed
// fragments: one bucket per object category, one fragment per display name.
package sections

import (
	"log/slog"
	"strings"

	"github.com/twbtools/twbdiff/internal/workbook"
)

// Category is an object category within a workbook.
type Category string

const (
	Datasource  Category = "datasource"
	Calculation Category = "calculation"
	Parameter   Category = "parameter"
	Worksheet   Category = "worksheet"
	Dashboard   Category = "dashboard"
	Story       Category = "story"
)

// Categories lists every category in comparison order.
var Categories = []Category{Datasource, Calculation, Parameter, Worksheet, Dashboard, Story}

// Fragment is one named entity carved out of the tree. Raw is the
// deterministic serialization used for content equality; Canonical has
// publish-time noise stripped.
type Fragment struct {
	Name      string
	El        *workbook.Element
	Raw       string
	Canonical string
}

// Map buckets fragments by category and display name.
type Map map[Category]map[string]Fragment

// Names returns the fragment names in a category (unsorted).
func (m Map) Names(c Category) []string {
	out := make([]string, 0, len(m[c]))
	for n := range m[c] {
		out = append(out, n)
	}
	return out
}

// Extract walks the tree once and buckets every recognized element. A nil
// tree yields an empty map: callers must treat that as "no comparable
// data", not as equivalence. Duplicate display names within one category
// keep the first occurrence; the collision is logged.
func Extract(root *workbook.Element, log *slog.Logger) Map {
	m := make(Map, len(Categories))
	for _, c := range Categories {
		m[c] = make(map[string]Fragment)
	}
	if root == nil {
		return m
	}

	root.Walk(func(e *workbook.Element) bool {
		switch e.Tag {
		case "dashboard":
			name := orUnnamed(e.Attr("name"))
			// Storyboards serialize as dashboards with a type marker.
			if strings.EqualFold(e.Attr("type"), "storyboard") {
				m.put(Story, name, e, log)
			} else {
				m.put(Dashboard, name, e, log)
			}
		case "worksheet":
			m.put(Worksheet, orUnnamed(e.Attr("name")), e, log)
		case "story":
			m.put(Story, orUnnamed(e.Attr("name")), e, log)
		case "datasource":
			m.put(Datasource, DatasourceName(e), e, log)
		case "column":
			name := e.FirstAttr("caption", "name")
			if name == "" {
				name = "Unnamed Column"
			}
			switch {
			case isParameterColumn(e):
				m.put(Parameter, name, e, log)
			case e.Child("calculation") != nil:
				m.put(Calculation, name, e, log)
			}
		}
		return true
	})
	return m
}

func (m Map) put(c Category, name string, e *workbook.Element, log *slog.Logger) {
	if _, exists := m[c][name]; exists {
		if log != nil {
			log.Warn("duplicate fragment name, keeping first", "category", string(c), "name", name)
		}
		return
	}
	m[c][name] = Fragment{
		Name:      name,
		El:        e,
		Raw:       e.XML(),
		Canonical: e.CanonicalXML(),
	}
}

// isParameterColumn reports whether a column declares a parameter domain, a
// bounded range, or an enumerated value list.
func isParameterColumn(e *workbook.Element) bool {
	if e.Attr("param-domain-type") != "" {
		return true
	}
	if strings.EqualFold(e.Attr("role"), "parameter") {
		return true
	}
	return e.Child("range") != nil || e.Child("list") != nil
}

// DatasourceName resolves a human-readable datasource name through the
// ordered fallback chain: caption, name, repository-location name, the
// connection's database name, a humanized connection class, and finally the
// literal "Datasource".
func DatasourceName(e *workbook.Element) string {
	if v := e.Attr("caption"); v != "" {
		return v
	}
	if v := e.Attr("name"); v != "" {
		return v
	}
	if repo := e.Find("repository-location"); repo != nil {
		if v := repo.Attr("name"); v != "" {
			return v
		}
	}
	if conn := e.Find("connection"); conn != nil {
		if v := conn.Attr("dbname"); v != "" {
			return v
		}
		if cls := conn.Attr("class"); cls != "" {
			return humanize(cls)
		}
	}
	return "Datasource"
}

// humanize turns a connection class like "sqlserver-jdbc" into "Sqlserver Jdbc".
func humanize(s string) string {
	words := strings.Split(strings.ReplaceAll(s, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func orUnnamed(name string) string {
	if name == "" {
		return "unnamed"
	}
	return name
}
