package workbook

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func TestParseBuildsTree(t *testing.T) {
	const doc = `<?xml version="1.0"?>
<Workbook xmlns:user="http://example.com/user" version="18.1">
  <worksheet NAME="Sales">
    <table>
      <view>
        <filter column="[Extract].[Region]">  keep  </filter>
      </view>
    </table>
  </worksheet>
</Workbook>`

	root, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if root.Tag != "workbook" {
		t.Errorf("root tag = %q, want workbook", root.Tag)
	}
	if got := root.Attr("version"); got != "18.1" {
		t.Errorf("version = %q, want 18.1", got)
	}
	for _, a := range root.Attrs {
		if strings.Contains(a.Name, "xmlns") || a.Name == "user" {
			t.Errorf("namespace attribute survived parse: %q", a.Name)
		}
	}

	ws := root.Find("worksheet")
	if ws == nil {
		t.Fatal("worksheet not found")
	}
	if got := ws.Attr("name"); got != "Sales" {
		t.Errorf("attribute names should be lower-cased: name = %q", got)
	}

	f := root.Find("filter")
	if f == nil {
		t.Fatal("filter not found")
	}
	if f.Text != "keep" {
		t.Errorf("text = %q, want trimmed %q", f.Text, "keep")
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse(strings.NewReader("")); err == nil {
		t.Error("empty document should not parse")
	}
}

func TestParseBytesPlainXML(t *testing.T) {
	root, err := ParseBytes([]byte(`<workbook><worksheet name="A"/></workbook>`))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if root.Find("worksheet") == nil {
		t.Error("worksheet not found")
	}
}

func TestParseBytesPackagedWorkbook(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := map[string]string{
		"data/backup/old copy of book.twb": `<workbook><worksheet name="Stale"/></workbook>`,
		"book.twb":                         `<workbook><worksheet name="Main"/></workbook>`,
		"Data/extract.hyper":               "not xml",
	}
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	root, err := ParseBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	ws := root.Find("worksheet")
	if ws == nil {
		t.Fatal("worksheet not found")
	}
	// The shortest-named .twb entry is the main workbook.
	if got := ws.Attr("name"); got != "Main" {
		t.Errorf("worksheet name = %q, want Main", got)
	}
}

func TestParseBytesZipWithoutWorkbook(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("readme.txt")
	w.Write([]byte("nothing here"))
	zw.Close()

	if _, err := ParseBytes(buf.Bytes()); err == nil {
		t.Error("archive without a .twb entry should fail")
	}
}

func TestXMLDeterministic(t *testing.T) {
	const doc = `<datasource caption="Orders"><connection class="excel" filename="a.xlsx"/></datasource>`
	a, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.XML() != b.XML() {
		t.Errorf("same input produced different serializations:\n%s\n%s", a.XML(), b.XML())
	}
}

func TestCanonicalXMLStripsPublishNoise(t *testing.T) {
	published := `<datasource caption="Orders" id="abc-123">
  <repository-location id="r1" path="/site/things" revision="4"/>
  <connection class="postgres" server="db1"/>
</datasource>`
	republished := `<datasource caption="Orders" id="zzz-999">
  <repository-location id="r2" path="/site/other" revision="5"/>
  <connection class="postgres" server="db1"/>
</datasource>`

	a, err := Parse(strings.NewReader(published))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := Parse(strings.NewReader(republished))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if a.XML() == b.XML() {
		t.Fatal("raw serializations should differ")
	}
	if a.CanonicalXML() != b.CanonicalXML() {
		t.Errorf("canonical serializations should match:\n%s\n%s", a.CanonicalXML(), b.CanonicalXML())
	}
}

func TestWalkPrunesSubtree(t *testing.T) {
	root, err := Parse(strings.NewReader(
		`<view><style><color value="red"/></style><filter column="A"/></view>`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var visited []string
	root.Walk(func(e *Element) bool {
		visited = append(visited, e.Tag)
		return e.Tag != "style"
	})
	for _, tag := range visited {
		if tag == "color" {
			t.Error("walk descended into pruned subtree")
		}
	}
	if visited[len(visited)-1] != "filter" {
		t.Errorf("walk should continue past pruned sibling, visited %v", visited)
	}
}

func TestCleanField(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"[Extract].[Region]", "Region"},
		{"[Region]", "Region"},
		{"Region", "Region"},
		{"  [federated.abc].[none:Category:nk]  ", "none:Category:nk"},
		{"", ""},
	}
	for _, c := range cases {
		if got := CleanField(c.in); got != c.want {
			t.Errorf("CleanField(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
