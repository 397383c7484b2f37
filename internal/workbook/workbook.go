package workbook

import (
	"sort"
	"strings"
)

// Attr is a single element attribute. Namespace prefixes are stripped at
// parse time; Name is the local attribute name.
type Attr struct {
	Name  string
	Value string
}

// Element is one node of a parsed workbook tree. The tree is built once by
// Parse and never mutated afterwards; both comparison sides hold independent
// trees.
type Element struct {
	Tag      string // local tag name, lower-cased
	Attrs    []Attr // document order
	Text     string // accumulated character data, trimmed
	Children []*Element
}

// Attr returns the value of the named attribute, or "".
func (e *Element) Attr(name string) string {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// FirstAttr returns the first non-empty value among the named attributes.
func (e *Element) FirstAttr(names ...string) string {
	for _, n := range names {
		if v := e.Attr(n); v != "" {
			return v
		}
	}
	return ""
}

// Walk visits e and every descendant in document order. Returning false from
// fn skips the node's subtree.
func (e *Element) Walk(fn func(*Element) bool) {
	if e == nil {
		return
	}
	if !fn(e) {
		return
	}
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// Find returns the first descendant (or e itself) with the given tag.
func (e *Element) Find(tag string) *Element {
	var found *Element
	e.Walk(func(el *Element) bool {
		if found != nil {
			return false
		}
		if el.Tag == tag {
			found = el
			return false
		}
		return true
	})
	return found
}

// FindAll returns every descendant (including e itself) with the given tag,
// in document order.
func (e *Element) FindAll(tag string) []*Element {
	var out []*Element
	e.Walk(func(el *Element) bool {
		if el.Tag == tag {
			out = append(out, el)
		}
		return true
	})
	return out
}

// Child returns the first direct child with the given tag, or nil.
func (e *Element) Child(tag string) *Element {
	for _, c := range e.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// XML renders the element deterministically: attributes in document order,
// children recursively. Two elements serialize identically iff they carry
// the same tags, attributes, text and structure, which is what fragment
// equality means for the comparator.
func (e *Element) XML() string {
	var b strings.Builder
	e.writeXML(&b, false)
	return b.String()
}

// CanonicalXML renders the element with publish-time noise removed:
// repository-location subtrees are dropped entirely, and id / content-url
// attributes are omitted everywhere. Fragments equal under this rendering
// differ only by re-publish artifacts and must produce no change records.
func (e *Element) CanonicalXML() string {
	var b strings.Builder
	e.writeXML(&b, true)
	return b.String()
}

var publishNoiseAttrs = map[string]bool{
	"id":          true,
	"content-url": true,
	"revision":    true,
}

func (e *Element) writeXML(b *strings.Builder, canonical bool) {
	if canonical && e.Tag == "repository-location" {
		return
	}
	b.WriteByte('<')
	b.WriteString(e.Tag)
	for _, a := range e.Attrs {
		if canonical && publishNoiseAttrs[a.Name] {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(a.Value))
		b.WriteByte('"')
	}
	if e.Text == "" && len(e.Children) == 0 {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	if e.Text != "" {
		b.WriteString(escapeText(e.Text))
	}
	for _, c := range e.Children {
		c.writeXML(b, canonical)
	}
	b.WriteString("</")
	b.WriteString(e.Tag)
	b.WriteByte('>')
}

var attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", `"`, "&quot;")

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeAttr(s string) string { return attrEscaper.Replace(s) }

func escapeText(s string) string { return textEscaper.Replace(s) }

// CleanField normalizes a field reference for comparison: brackets are
// stripped, a leading table or extract qualifier is dropped, whitespace
// trimmed. "[Extract].[Region]" and "Region" compare equal.
func CleanField(v string) string {
	f := strings.TrimSpace(v)
	f = strings.ReplaceAll(f, "[", "")
	f = strings.ReplaceAll(f, "]", "")
	if i := strings.LastIndex(f, "."); i >= 0 {
		f = f[i+1:]
	}
	return strings.TrimSpace(f)
}

// SortedSet copies a string set into a sorted slice.
func SortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
