package semantics

import (
	"strings"

	"github.com/twbtools/twbdiff/internal/workbook"
)

// ConnectionProfile summarizes how a datasource reaches its data.
type ConnectionProfile struct {
	Class     string // "excel", "snowflake", "extract", ... ("Unknown" if hidden)
	Mode      string // "Live" or "Extract"
	Privacy   string // "Embedded" or "Published"
	Location  string // server/db or file location, when exposed
}

// Connection derives the profile for one datasource fragment. Producer
// versions hide metadata in different places, so detection is layered:
// named connections first, then direct connections, then the presence of an
// extract node.
func Connection(frag *workbook.Element) ConnectionProfile {
	p := ConnectionProfile{Class: "Unknown", Mode: "Live", Privacy: "Embedded"}
	if frag == nil {
		return p
	}

	if repo := frag.Find("repository-location"); repo != nil {
		p.Privacy = "Published"
		site := repo.Attr("site")
		if site == "" {
			site = "Default"
		}
		p.Location = "Site: " + site + " | Path: " + repo.Attr("path")
	}
	if frag.Find("extract") != nil {
		p.Mode = "Extract"
		p.Class = "extract"
	}

	conns := frag.FindAll("connection")
	for _, conn := range conns {
		cls := strings.ToLower(conn.Attr("class"))
		filename := strings.ToLower(conn.Attr("filename"))
		switch {
		case strings.HasSuffix(filename, ".xls"), strings.HasSuffix(filename, ".xlsx"), strings.HasSuffix(filename, ".xlsm"):
			p.Class = "excel"
			p.Mode = "Extract"
			if p.Location == "" {
				p.Location = filename
			}
		case strings.HasSuffix(filename, ".hyper"), cls == "hyper":
			p.Class = "extract"
			p.Mode = "Extract"
		case cls != "" && cls != "federated":
			p.Class = cls
			if p.Location == "" {
				server, db := conn.Attr("server"), conn.Attr("dbname")
				if server != "" || db != "" {
					p.Location = "Server: " + server + " | DB: " + db
				}
			}
		}
		if p.Class != "Unknown" && p.Class != "extract" {
			break
		}
	}
	return p
}

// DatasourceFilters lists the datasource-level filter fields: direct filter
// nodes, filter-group/groupfilter columns, and standalone groupfilters.
// Internal bookkeeping fields are excluded.
func DatasourceFilters(frag *workbook.Element) []string {
	set := map[string]bool{}
	if frag == nil {
		return nil
	}
	for _, f := range frag.FindAll("filter") {
		record(set, f.FirstAttr("column", "field", "name"))
	}
	for _, gf := range frag.FindAll("groupfilter") {
		record(set, gf.Attr("column"))
		for _, c := range gf.FindAll("column") {
			record(set, c.FirstAttr("name", "column"))
		}
	}
	return workbook.SortedSet(set)
}

func record(set map[string]bool, raw string) {
	f := workbook.CleanField(raw)
	if f == "" || isInternalField(f) {
		return
	}
	set[f] = true
}

// isInternalField filters producer bookkeeping columns out of filter lists.
func isInternalField(name string) bool {
	n := strings.ToLower(name)
	return strings.HasPrefix(n, "calculation_") ||
		n == "number of records" ||
		n == "measure values" ||
		n == "measure names"
}

// Joins lists join clauses as "INNER JOIN ON a = b" strings.
func Joins(frag *workbook.Element) []string {
	set := map[string]bool{}
	if frag == nil {
		return nil
	}
	for _, rel := range frag.FindAll("relation") {
		jtype := rel.Attr("join")
		if jtype == "" {
			continue
		}
		var clauses []string
		for _, c := range rel.FindAll("clause") {
			var parts []string
			c.Walk(func(e *workbook.Element) bool {
				if t := strings.TrimSpace(e.Text); t != "" {
					parts = append(parts, t)
				}
				if op := e.Attr("op"); op != "" && e.Tag == "expression" {
					parts = append(parts, op)
				}
				return true
			})
			if len(parts) > 0 {
				clauses = append(clauses, strings.Join(parts, " "))
			}
		}
		if len(clauses) > 0 {
			set[strings.ToUpper(jtype)+" JOIN ON "+strings.Join(clauses, " AND ")] = true
		}
	}
	return workbook.SortedSet(set)
}

// Relationships lists logical-model relationships by their column pairs.
func Relationships(frag *workbook.Element) []string {
	set := map[string]bool{}
	if frag == nil {
		return nil
	}
	for _, r := range frag.FindAll("relationship") {
		var cols []string
		for _, c := range r.FindAll("relationship-column") {
			if col := workbook.CleanField(c.Attr("column")); col != "" {
				cols = append(cols, col)
			}
		}
		if len(cols) > 0 {
			set["Relationship on "+strings.Join(cols, ", ")] = true
		}
	}
	return workbook.SortedSet(set)
}

// ColumnInfo is the comparable shape of one datasource column.
type ColumnInfo struct {
	Datatype string
	Role     string
	Caption  string
}

// Columns indexes a datasource's columns by internal name.
func Columns(frag *workbook.Element) map[string]ColumnInfo {
	out := map[string]ColumnInfo{}
	if frag == nil {
		return out
	}
	for _, col := range frag.FindAll("column") {
		nm := col.Attr("name")
		if nm == "" {
			continue
		}
		out[nm] = ColumnInfo{
			Datatype: col.Attr("datatype"),
			Role:     col.Attr("role"),
			Caption:  col.Attr("caption"),
		}
	}
	return out
}

// Formula returns a calculation fragment's formula text, from the formula
// attribute first, element text second. Empty when the fragment carries no
// calculation.
func Formula(frag *workbook.Element) string {
	if frag == nil {
		return ""
	}
	calc := frag.Find("calculation")
	if calc == nil {
		return ""
	}
	if f := calc.Attr("formula"); f != "" {
		return f
	}
	return strings.TrimSpace(calc.Text)
}

// ParameterInfo is the comparable shape of one parameter.
type ParameterInfo struct {
	Value   string
	Domain  string
	Caption string
	Formula string
	Min     string
	Max     string
	Members []string // enumerated list values
}

// Parameter reads a parameter column's semantic fields.
func Parameter(frag *workbook.Element) ParameterInfo {
	var p ParameterInfo
	if frag == nil {
		return p
	}
	p.Value = frag.FirstAttr("value", "current-value", "default")
	p.Domain = frag.Attr("param-domain-type")
	p.Caption = frag.Attr("caption")
	p.Formula = Formula(frag)
	if rng := frag.Child("range"); rng != nil {
		p.Min = rng.Attr("min")
		p.Max = rng.Attr("max")
	}
	if list := frag.Child("list"); list != nil {
		for _, m := range list.FindAll("member") {
			if v := m.FirstAttr("value", "alias"); v != "" {
				p.Members = append(p.Members, v)
			}
		}
	}
	return p
}

// Equal reports whether two parameter shapes match.
func (p ParameterInfo) Equal(o ParameterInfo) bool {
	if p.Value != o.Value || p.Domain != o.Domain || p.Caption != o.Caption ||
		p.Formula != o.Formula || p.Min != o.Min || p.Max != o.Max ||
		len(p.Members) != len(o.Members) {
		return false
	}
	for i := range p.Members {
		if p.Members[i] != o.Members[i] {
			return false
		}
	}
	return true
}
