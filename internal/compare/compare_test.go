package compare

import (
	"encoding/json"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/twbtools/twbdiff/internal/registry"
	"github.com/twbtools/twbdiff/internal/sections"
	"github.com/twbtools/twbdiff/internal/vocab"
	"github.com/twbtools/twbdiff/internal/workbook"
)

func extract(t *testing.T, doc string) sections.Map {
	t.Helper()
	root, err := workbook.Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return sections.Extract(root, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testComparator() *Comparator {
	return New(vocab.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestWorksheetFilterAddRemove(t *testing.T) {
	old := extract(t, `<workbook>
  <worksheet name="Sales"><view><filter column="[Region]"/></view></worksheet>
</workbook>`)
	new := extract(t, `<workbook>
  <worksheet name="Sales"><view><filter column="[Year]"/></view></worksheet>
</workbook>`)

	reg := registry.New()
	testComparator().Run(old, new, reg)

	recs := reg.Records(registry.LevelWorksheet, "Sales")
	if len(recs) != 1 {
		t.Fatalf("want exactly one record for the worksheet, got %d: %v", len(recs), recs)
	}
	rec := recs[0]
	if rec.Status != registry.StatusModified {
		t.Errorf("status = %q, want Modified", rec.Status)
	}
	want := []string{"Filter added: Year", "Filter removed: Region"}
	if !reflect.DeepEqual(rec.Bullets, want) {
		t.Errorf("bullets = %v, want %v", rec.Bullets, want)
	}
}

func TestIdenticalWorksheetsNoRecord(t *testing.T) {
	doc := `<workbook><worksheet name="Sales"><view><filter column="[Region]"/></view></worksheet></workbook>`
	reg := registry.New()
	testComparator().Run(extract(t, doc), extract(t, doc), reg)
	if recs := reg.Records(registry.LevelWorksheet, "Sales"); len(recs) != 0 {
		t.Errorf("identical fragments must produce no records: %v", recs)
	}
	if len(reg.Workbook) != 0 {
		t.Errorf("unexpected workbook records: %v", reg.Workbook)
	}
}

func TestAddRemoveSymmetry(t *testing.T) {
	a := `<workbook><worksheet name="Only"><view><filter column="[Region]"/></view></worksheet></workbook>`
	b := `<workbook/>`

	fwd := registry.New()
	testComparator().Run(extract(t, a), extract(t, b), fwd)
	rev := registry.New()
	testComparator().Run(extract(t, b), extract(t, a), rev)

	fr := fwd.Records(registry.LevelWorksheet, "Only")
	rr := rev.Records(registry.LevelWorksheet, "Only")
	if len(fr) != 1 || len(rr) != 1 {
		t.Fatalf("want one record each way, got %d and %d", len(fr), len(rr))
	}
	if fr[0].Status != registry.StatusRemoved || rr[0].Status != registry.StatusAdded {
		t.Errorf("statuses = %q / %q, want Removed / Added", fr[0].Status, rr[0].Status)
	}
	if !reflect.DeepEqual(fr[0].Bullets, rr[0].Bullets) {
		t.Errorf("bullet content must match across directions:\n%v\n%v", fr[0].Bullets, rr[0].Bullets)
	}
}

func TestDashboardLayoutOnlyDowngradesToAdditional(t *testing.T) {
	old := extract(t, `<workbook>
  <dashboard name="Overview">
    <zones><zone name="Map" width="100" height="50"/></zones>
  </dashboard>
</workbook>`)
	new := extract(t, `<workbook>
  <dashboard name="Overview">
    <zones><zone name="Map" width="200" height="80"/></zones>
  </dashboard>
</workbook>`)

	reg := registry.New()
	testComparator().Run(old, new, reg)

	recs := reg.Records(registry.LevelDashboard, "Overview")
	if len(recs) != 1 {
		t.Fatalf("want one record, got %d: %v", len(recs), recs)
	}
	if recs[0].Status != registry.StatusAdditional {
		t.Errorf("layout-only change should downgrade to Additional, got %q (bullets %v)",
			recs[0].Status, recs[0].Bullets)
	}
}

func TestDashboardSheetChangeStaysModified(t *testing.T) {
	old := extract(t, `<workbook>
  <dashboard name="Overview">
    <zones><zone name="Sales by Region"/></zones>
  </dashboard>
</workbook>`)
	new := extract(t, `<workbook>
  <dashboard name="Overview">
    <zones><zone name="Profit Map"/></zones>
  </dashboard>
</workbook>`)

	reg := registry.New()
	testComparator().Run(old, new, reg)

	recs := reg.Records(registry.LevelDashboard, "Overview")
	if len(recs) != 1 {
		t.Fatalf("want one record, got %d", len(recs))
	}
	if recs[0].Status != registry.StatusModified {
		t.Errorf("sheet membership change is functional, got %q", recs[0].Status)
	}
}

func TestDatasourceRepublishOnlyYieldsZeroRecords(t *testing.T) {
	old := extract(t, `<workbook>
  <datasource caption="Orders" id="aaa-111">
    <repository-location id="r1" path="/site/old" revision="3"/>
    <connection class="postgres" server="db1" dbname="sales"/>
  </datasource>
</workbook>`)
	new := extract(t, `<workbook>
  <datasource caption="Orders" id="bbb-222">
    <repository-location id="r2" path="/site/new" revision="4"/>
    <connection class="postgres" server="db1" dbname="sales"/>
  </datasource>
</workbook>`)

	reg := registry.New()
	testComparator().Run(old, new, reg)

	if recs := reg.Records(registry.LevelDatasource, "Orders"); len(recs) != 0 {
		t.Errorf("publish-noise-only change must yield zero records, got %v", recs)
	}
	if len(reg.Workbook) != 0 {
		t.Errorf("unexpected workbook records: %v", reg.Workbook)
	}
}

func TestDatasourceFilterChangeRegistersAppendOnly(t *testing.T) {
	old := extract(t, `<workbook>
  <datasource caption="Orders">
    <connection class="postgres" server="db1"/>
    <filter class="categorical" column="[Region]"/>
  </datasource>
</workbook>`)
	new := extract(t, `<workbook>
  <datasource caption="Orders">
    <connection class="postgres" server="db1"/>
    <filter class="categorical" column="[Segment]"/>
  </datasource>
</workbook>`)

	reg := registry.New()
	testComparator().Run(old, new, reg)

	recs := reg.Records(registry.LevelDatasource, "Orders")
	var filterRec *registry.Record
	for i := range recs {
		if recs[i].Title == registry.DatasourceFiltersTitle {
			filterRec = &recs[i]
		}
	}
	if filterRec == nil {
		t.Fatalf("datasource filter record missing: %v", recs)
	}
	found := map[string]bool{}
	for _, b := range filterRec.Bullets {
		found[b] = true
	}
	if !found["Datasource filter added: Segment"] || !found["Datasource filter removed: Region"] {
		t.Errorf("filter bullets = %v", filterRec.Bullets)
	}
}

func TestParameterValueChange(t *testing.T) {
	old := extract(t, `<workbook><datasource name="Parameters">
  <column name="[Top N]" param-domain-type="range" value="10"><range min="1" max="50"/></column>
</datasource></workbook>`)
	new := extract(t, `<workbook><datasource name="Parameters">
  <column name="[Top N]" param-domain-type="range" value="25"><range min="1" max="50"/></column>
</datasource></workbook>`)

	reg := registry.New()
	testComparator().Run(old, new, reg)

	recs := reg.Records(registry.LevelParameter, "[Top N]")
	if len(recs) != 1 {
		t.Fatalf("want one parameter record, got %d", len(recs))
	}
	if recs[0].Status != registry.StatusModified {
		t.Errorf("status = %q", recs[0].Status)
	}
	wantBullet := "Current value changed: 10 → 25"
	if len(recs[0].Bullets) == 0 || recs[0].Bullets[0] != wantBullet {
		t.Errorf("bullets = %v, want first %q", recs[0].Bullets, wantBullet)
	}
}

func TestWorkbookSummaryOnCountChange(t *testing.T) {
	old := extract(t, `<workbook><worksheet name="A"/></workbook>`)
	new := extract(t, `<workbook><worksheet name="A"/><worksheet name="B"/></workbook>`)

	reg := registry.New()
	testComparator().Run(old, new, reg)

	var summary *registry.Record
	for i := range reg.Workbook {
		if reg.Workbook[i].Title == "Workbook Summary" {
			summary = &reg.Workbook[i]
		}
	}
	if summary == nil {
		t.Fatal("workbook summary record missing")
	}
	if summary.Status != registry.StatusInfo {
		t.Errorf("summary status = %q", summary.Status)
	}
	found := false
	for _, b := range summary.Bullets {
		if b == "Worksheets: 1 → 2" {
			found = true
		}
	}
	if !found {
		t.Errorf("summary bullets = %v", summary.Bullets)
	}
}

func TestRunDeterministic(t *testing.T) {
	oldDoc := `<workbook>
  <datasource caption="Orders"><connection class="postgres" server="db1"/><filter column="[Region]"/></datasource>
  <worksheet name="Sales"><view><filter column="[Region]"/></view></worksheet>
  <worksheet name="Gone"/>
  <dashboard name="Overview"><zones><zone name="Sales"/></zones></dashboard>
</workbook>`
	newDoc := `<workbook>
  <datasource caption="Orders"><connection class="postgres" server="db1"/><filter column="[Segment]"/></datasource>
  <worksheet name="Sales"><view><filter column="[Year]"/></view></worksheet>
  <worksheet name="Fresh"/>
  <dashboard name="Overview"><zones><zone name="Sales"/><zone name="Fresh"/></zones></dashboard>
</workbook>`

	run := func() []byte {
		reg := registry.New()
		testComparator().Run(extract(t, oldDoc), extract(t, newDoc), reg)
		data, err := json.Marshal(reg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return data
	}

	first := run()
	second := run()
	if string(first) != string(second) {
		t.Errorf("consecutive runs diverged:\n%s\n%s", first, second)
	}
}

func TestStructDiffAttributeOps(t *testing.T) {
	old, err := workbook.Parse(strings.NewReader(
		`<dashboard name="D"><zone name="Map" width="100"/><zone name="Legend"/></dashboard>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	new, err := workbook.Parse(strings.NewReader(
		`<dashboard name="D"><zone name="Map" width="200"/><zone name="Table"/></dashboard>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	ops := StructDiff(old, new)
	var hasUpdate, hasRemove, hasAdd bool
	for _, op := range ops {
		if strings.Contains(op, "width changed") && strings.Contains(op, `"100" → "200"`) {
			hasUpdate = true
		}
		if strings.Contains(op, "removed zone") && strings.Contains(op, "Legend") {
			hasRemove = true
		}
		if strings.Contains(op, "added zone") && strings.Contains(op, "Table") {
			hasAdd = true
		}
	}
	if !hasUpdate || !hasRemove || !hasAdd {
		t.Errorf("ops missing expected entries: %v", ops)
	}
}
