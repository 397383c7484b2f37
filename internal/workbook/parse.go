package workbook

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html/charset"
)

// Parse decodes a workbook XML stream into an element tree. Namespace
// prefixes on tags and attributes are stripped so that the same workbook
// serialized by different producer versions yields the same tree shape.
func Parse(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false

	var root *Element
	var stack []*Element

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Tag: strings.ToLower(t.Name.Local)}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				el.Attrs = append(el.Attrs, Attr{Name: strings.ToLower(a.Name.Local), Value: a.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple document roots")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				top.Text = strings.TrimSpace(top.Text)
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("empty document")
	}
	return root, nil
}

var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// ParseBytes parses a workbook revision. Packaged workbooks (.twbx, zip
// magic) have their inner .twb extracted first; plain XML parses directly.
func ParseBytes(data []byte) (*Element, error) {
	if bytes.HasPrefix(data, zipMagic) {
		inner, err := extractTWB(data)
		if err != nil {
			return nil, err
		}
		data = inner
	}
	return Parse(bytes.NewReader(data))
}

// ParseFile reads and parses a .twb or .twbx file from disk.
func ParseFile(path string) (*Element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	tree, err := ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return tree, nil
}

// extractTWB pulls the workbook definition out of a packaged archive. When
// several .twb entries exist the shortest name is the main workbook.
func extractTWB(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open twbx: %w", err)
	}
	var names []string
	byName := make(map[string]*zip.File)
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".twb") {
			names = append(names, f.Name)
			byName[f.Name] = f
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("twbx contains no .twb entry")
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
	rc, err := byName[names[0]].Open()
	if err != nil {
		return nil, fmt.Errorf("open twb entry: %w", err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
