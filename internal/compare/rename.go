package compare

import (
	"sort"

	"github.com/twbtools/twbdiff/internal/sections"
	"github.com/twbtools/twbdiff/internal/semantics"
	"github.com/twbtools/twbdiff/internal/vocab"
)

// Rename pairs an old calculation name with the new name carrying the same
// formula.
type Rename struct {
	Old     string
	New     string
	Formula string
}

// ResolveRenames detects row-level-security calculations that were renamed
// without a formula change. Only names that disappeared on one side and
// appeared on the other are candidates; a formula must map exactly one
// vanished name to exactly one appeared name to count. Ambiguity, one
// formula under several names, falls back to plain remove and add. Non-RLS
// calculations are never considered.
//
// The returned sets name the old and new fragments consumed by a rename, so
// the caller can skip their remove and add records.
func ResolveRenames(oldMap, newMap map[string]sections.Fragment, v *vocab.Vocabulary) ([]Rename, map[string]bool, map[string]bool) {
	vanishedByFormula := rlsFormulas(oldMap, newMap, v)
	appearedByFormula := rlsFormulas(newMap, oldMap, v)

	var renames []Rename
	consumedOld := map[string]bool{}
	consumedNew := map[string]bool{}

	formulas := make([]string, 0, len(vanishedByFormula))
	for f := range vanishedByFormula {
		formulas = append(formulas, f)
	}
	sort.Strings(formulas)

	for _, f := range formulas {
		olds := vanishedByFormula[f]
		news := appearedByFormula[f]
		if len(olds) != 1 || len(news) != 1 || olds[0] == news[0] {
			continue
		}
		renames = append(renames, Rename{Old: olds[0], New: news[0], Formula: f})
		consumedOld[olds[0]] = true
		consumedNew[news[0]] = true
	}
	return renames, consumedOld, consumedNew
}

// rlsFormulas groups the RLS calculation names present in have but absent
// from other, keyed by exact formula text.
func rlsFormulas(have, other map[string]sections.Fragment, v *vocab.Vocabulary) map[string][]string {
	out := map[string][]string{}
	for name, frag := range have {
		if _, exists := other[name]; exists {
			continue
		}
		formula := semantics.Formula(frag.El)
		if formula == "" || !v.IsRLS(formula) {
			continue
		}
		out[formula] = append(out[formula], name)
	}
	for _, names := range out {
		sort.Strings(names)
	}
	return out
}
