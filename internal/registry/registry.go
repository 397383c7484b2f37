// Package registry aggregates change records for one comparison run. A
// Registry is created fresh per run and owned by its caller; it is written
// during the comparison pass and read-only afterwards. Nothing here is
// shared across runs.
package registry

import (
	"sort"
	"strings"
)

// Status classifies one change record.
type Status string

const (
	StatusAdded    Status = "Added"
	StatusRemoved  Status = "Removed"
	StatusModified Status = "Modified"
	StatusInfo     Status = "Informational"

	// StatusAdditional marks layout-only changes that are reported but do
	// not count as functional modifications.
	StatusAdditional Status = "Additional"
)

// Level is the bucket a record belongs to.
type Level string

const (
	LevelWorkbook   Level = "workbook"
	LevelDatasource Level = "datasource"
	LevelWorksheet  Level = "worksheet"
	LevelDashboard  Level = "dashboard"
	LevelParameter  Level = "parameter"
	LevelStory      Level = "story"
)

// DatasourceFiltersTitle marks the append-only datasource-filter records:
// they are never merged or overwritten so no filter fact can be dropped by
// a later, less complete pass.
const DatasourceFiltersTitle = "Datasource Filters"

// Record is one classified difference with its supporting facts. Bullets
// keep insertion order with duplicates removed by canonical key.
type Record struct {
	Status  Status   `json:"status"`
	Title   string   `json:"title"`
	Object  string   `json:"object"`
	Bullets []string `json:"bullets"`
}

// Registry buckets records by level and parent name. Workbook-level
// records form a flat list.
type Registry struct {
	Workbook []Record                      `json:"workbook"`
	ByLevel  map[Level]map[string][]Record `json:"by_level"`
}

// New returns an empty registry for a single comparison run.
func New() *Registry {
	byLevel := make(map[Level]map[string][]Record)
	for _, l := range []Level{LevelDatasource, LevelWorksheet, LevelDashboard, LevelParameter, LevelStory} {
		byLevel[l] = make(map[string][]Record)
	}
	return &Registry{ByLevel: byLevel}
}

// Register adds a change record. Records for an object already present
// under the same level and parent are merged: bullet lists are unioned
// (dedupe-preserving) and the longer status string wins. Datasource-filter
// records bypass merging entirely and accumulate.
func (r *Registry) Register(level Level, parent, title string, status Status, bullets []string) {
	clean := dedupeBullets(bullets)

	if level == LevelDatasource && title == DatasourceFiltersTitle {
		r.ByLevel[level][parent] = append(r.ByLevel[level][parent], Record{
			Status:  status,
			Title:   title,
			Object:  "__datasource_filters__",
			Bullets: clean,
		})
		return
	}

	obj := objectName(title)
	rec := Record{Status: status, Title: title, Object: obj, Bullets: clean}

	if level == LevelWorkbook {
		for i := range r.Workbook {
			if r.Workbook[i].Object == obj {
				r.merge(&r.Workbook[i], rec)
				return
			}
		}
		r.Workbook = append(r.Workbook, rec)
		return
	}

	bucket, ok := r.ByLevel[level]
	if !ok {
		return
	}
	list := bucket[parent]
	for i := range list {
		if list[i].Object == obj && list[i].Title != DatasourceFiltersTitle {
			r.merge(&list[i], rec)
			return
		}
	}
	bucket[parent] = append(list, rec)
}

func (r *Registry) merge(dst *Record, src Record) {
	dst.Bullets = dedupeBullets(append(dst.Bullets, src.Bullets...))
	if len(src.Status) > len(dst.Status) {
		dst.Status = src.Status
	}
}

// Records returns the records under one level and parent.
func (r *Registry) Records(level Level, parent string) []Record {
	if level == LevelWorkbook {
		return r.Workbook
	}
	return r.ByLevel[level][parent]
}

// Parents lists the parent names under a level, sorted.
func (r *Registry) Parents(level Level) []string {
	bucket := r.ByLevel[level]
	out := make([]string, 0, len(bucket))
	for p := range bucket {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Counts tallies records by status, excluding the non-counted classes.
func (r *Registry) Counts() map[Status]int {
	counts := make(map[Status]int)
	tally := func(recs []Record) {
		for _, rec := range recs {
			switch rec.Status {
			case StatusAdded, StatusRemoved, StatusModified:
				counts[rec.Status]++
			}
		}
	}
	tally(r.Workbook)
	for _, bucket := range r.ByLevel {
		for _, recs := range bucket {
			tally(recs)
		}
	}
	return counts
}

// objectName extracts the object from a "Title — Object" compound title.
func objectName(title string) string {
	if i := strings.LastIndex(title, "—"); i >= 0 {
		return strings.TrimSpace(title[i+len("—"):])
	}
	return strings.TrimSpace(title)
}

// dedupeBullets keeps the first occurrence of each canonical bullet key,
// preserving order. Empty bullets are dropped.
func dedupeBullets(bullets []string) []string {
	seen := make(map[string]bool, len(bullets))
	out := make([]string, 0, len(bullets))
	for _, b := range bullets {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		key := canonicalKey(b)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b)
	}
	return out
}

// simplifications collapse near-duplicate phrasings of the same fact to one
// canonical key, so the same change reported by two passes with slightly
// different wording is still one bullet.
var simplifications = []struct {
	contains []string
	key      string
}{
	{[]string{"lod calculation"}, "lod calculation modified"},
	{[]string{"hierarchy structure"}, "hierarchy structure changed"},
	{[]string{"join condition"}, "join condition modified"},
	{[]string{"tooltip modified"}, "tooltip modified"},
	{[]string{"definition changed"}, "definition changed"},
	{[]string{"parameter formula changed"}, "parameter formula changed"},
}

func canonicalKey(b string) string {
	low := strings.ToLower(strings.TrimLeft(b, "+-•*~ \t"))
	for _, s := range simplifications {
		match := true
		for _, c := range s.contains {
			if !strings.Contains(low, c) {
				match = false
				break
			}
		}
		if match {
			return s.key
		}
	}
	return low
}
