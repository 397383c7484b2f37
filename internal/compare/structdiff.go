package compare

import (
	"fmt"
	"strconv"

	"github.com/twbtools/twbdiff/internal/workbook"
)

// maxStructOps caps the operation log for one fragment pair. The log is
// auxiliary, human-oriented output; past this size it stops being readable.
const maxStructOps = 40

// StructDiff walks two fragments in lockstep and emits an element-keyed
// operation log: inserted and deleted elements, changed attributes, changed
// text. Children are matched by tag plus identifying attribute plus
// occurrence index, so reordered siblings with distinct names do not diff.
// The result is never used for classification, only surfaced as facts.
func StructDiff(old, new *workbook.Element) []string {
	var ops []string
	if old == nil || new == nil {
		return ops
	}
	diffElement(elemLabel(old), old, new, &ops)
	if len(ops) > maxStructOps {
		extra := len(ops) - maxStructOps
		ops = append(ops[:maxStructOps], "… "+strconv.Itoa(extra)+" more structural changes")
	}
	return ops
}

func diffElement(path string, old, new *workbook.Element, ops *[]string) {
	if len(*ops) > maxStructOps {
		return
	}

	oldAttrs := make(map[string]string, len(old.Attrs))
	for _, a := range old.Attrs {
		oldAttrs[a.Name] = a.Value
	}
	seen := make(map[string]bool, len(new.Attrs))
	for _, a := range new.Attrs {
		seen[a.Name] = true
		ov, ok := oldAttrs[a.Name]
		switch {
		case !ok:
			*ops = append(*ops, fmt.Sprintf("%s: attribute %s added (%q)", path, a.Name, a.Value))
		case ov != a.Value:
			*ops = append(*ops, fmt.Sprintf("%s: %s changed %q → %q", path, a.Name, ov, a.Value))
		}
	}
	for _, a := range old.Attrs {
		if !seen[a.Name] {
			*ops = append(*ops, fmt.Sprintf("%s: attribute %s removed (was %q)", path, a.Name, a.Value))
		}
	}
	if old.Text != new.Text {
		*ops = append(*ops, fmt.Sprintf("%s: text changed %q → %q",
			path, truncate(old.Text, 60), truncate(new.Text, 60)))
	}

	oldKeys := keyChildren(old)
	newKeys := keyChildren(new)
	for _, ck := range orderedKeys(old, new) {
		oc, inOld := oldKeys[ck]
		nc, inNew := newKeys[ck]
		switch {
		case inOld && inNew:
			diffElement(path+" > "+elemLabel(nc), oc, nc, ops)
		case inOld:
			*ops = append(*ops, fmt.Sprintf("%s: removed %s", path, elemLabel(oc)))
		case inNew:
			*ops = append(*ops, fmt.Sprintf("%s: added %s", path, elemLabel(nc)))
		}
	}
}

// keyChildren indexes children by tag, identifying attribute, and occurrence
// index among same-keyed siblings.
func keyChildren(e *workbook.Element) map[string]*workbook.Element {
	out := make(map[string]*workbook.Element, len(e.Children))
	counts := map[string]int{}
	for _, c := range e.Children {
		base := childKey(c)
		k := base + "#" + strconv.Itoa(counts[base])
		counts[base]++
		out[k] = c
	}
	return out
}

// orderedKeys yields every child key of both elements once, old order first,
// so diff output is deterministic without sorting away document order.
func orderedKeys(old, new *workbook.Element) []string {
	var keys []string
	seen := map[string]bool{}
	add := func(e *workbook.Element) {
		counts := map[string]int{}
		for _, c := range e.Children {
			base := childKey(c)
			k := base + "#" + strconv.Itoa(counts[base])
			counts[base]++
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	add(old)
	add(new)
	return keys
}

func childKey(e *workbook.Element) string {
	return e.Tag + "/" + e.FirstAttr("name", "caption", "field", "column", "id")
}

func elemLabel(e *workbook.Element) string {
	if nm := e.FirstAttr("name", "caption", "field", "column"); nm != "" {
		return e.Tag + " " + strconv.Quote(nm)
	}
	return e.Tag
}
