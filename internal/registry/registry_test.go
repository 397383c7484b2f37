package registry

import (
	"reflect"
	"testing"
)

func TestRegisterMergeIdempotent(t *testing.T) {
	bullets := []string{"Filter added: Year", "Filter removed: Region"}

	once := New()
	once.Register(LevelWorksheet, "Sales", "Worksheet — Sales", StatusModified, bullets)

	twice := New()
	twice.Register(LevelWorksheet, "Sales", "Worksheet — Sales", StatusModified, bullets)
	twice.Register(LevelWorksheet, "Sales", "Worksheet — Sales", StatusModified, bullets)

	a := once.Records(LevelWorksheet, "Sales")
	b := twice.Records(LevelWorksheet, "Sales")
	if len(b) != 1 {
		t.Fatalf("double registration should merge to one record, got %d", len(b))
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("double registration diverged:\n%v\n%v", a, b)
	}
}

func TestRegisterMergesBulletsAndKeepsLongerStatus(t *testing.T) {
	r := New()
	r.Register(LevelWorksheet, "Sales", "Worksheet — Sales", StatusAdded, []string{"Filters: Region"})
	r.Register(LevelWorksheet, "Sales", "Worksheet — Sales", StatusModified, []string{"Filter added: Year"})

	recs := r.Records(LevelWorksheet, "Sales")
	if len(recs) != 1 {
		t.Fatalf("want 1 merged record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Status != StatusModified {
		t.Errorf("longer status should win, got %q", rec.Status)
	}
	want := []string{"Filters: Region", "Filter added: Year"}
	if !reflect.DeepEqual(rec.Bullets, want) {
		t.Errorf("bullets = %v, want %v", rec.Bullets, want)
	}
}

func TestBulletDedupe(t *testing.T) {
	r := New()
	r.Register(LevelWorksheet, "Sales", "Worksheet — Sales", StatusModified, []string{
		"Filter added: Year",
		"• Filter added: Year",
		"filter added: year",
		"",
		"Tooltip modified",
	})
	recs := r.Records(LevelWorksheet, "Sales")
	want := []string{"Filter added: Year", "Tooltip modified"}
	if !reflect.DeepEqual(recs[0].Bullets, want) {
		t.Errorf("bullets = %v, want %v", recs[0].Bullets, want)
	}
}

func TestBulletSimplificationCollapsesPhrasings(t *testing.T) {
	r := New()
	r.Register(LevelDatasource, "Orders", "Datasource — Orders", StatusModified, []string{
		"Join condition modified on Orders",
		"join condition changed",
	})
	recs := r.Records(LevelDatasource, "Orders")
	if len(recs[0].Bullets) != 1 {
		t.Errorf("near-duplicate join facts should collapse to one bullet: %v", recs[0].Bullets)
	}
}

func TestDatasourceFiltersAppendOnly(t *testing.T) {
	r := New()
	r.Register(LevelDatasource, "Orders", DatasourceFiltersTitle, StatusModified,
		[]string{"Datasource filter added: Region"})
	r.Register(LevelDatasource, "Orders", DatasourceFiltersTitle, StatusModified,
		[]string{"Datasource filter removed: Segment"})

	recs := r.Records(LevelDatasource, "Orders")
	if len(recs) != 2 {
		t.Fatalf("datasource filter records must accumulate, got %d", len(recs))
	}
	for _, rec := range recs {
		if rec.Title != DatasourceFiltersTitle {
			t.Errorf("unexpected title %q", rec.Title)
		}
	}
}

func TestCountsExcludeNonCountedClasses(t *testing.T) {
	r := New()
	r.Register(LevelWorksheet, "A", "Worksheet — A", StatusAdded, nil)
	r.Register(LevelWorksheet, "B", "Worksheet — B", StatusRemoved, nil)
	r.Register(LevelDashboard, "D", "Dashboard — D", StatusAdditional, []string{"zone width changed"})
	r.Register(LevelWorkbook, "", "Workbook Summary", StatusInfo, []string{"Worksheets: 1 → 2"})

	counts := r.Counts()
	if counts[StatusAdded] != 1 || counts[StatusRemoved] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if counts[StatusAdditional] != 0 || counts[StatusInfo] != 0 {
		t.Errorf("non-counted classes leaked into counts: %v", counts)
	}
}

func TestParentsSorted(t *testing.T) {
	r := New()
	r.Register(LevelWorksheet, "Zeta", "Worksheet — Zeta", StatusAdded, nil)
	r.Register(LevelWorksheet, "Alpha", "Worksheet — Alpha", StatusAdded, nil)
	got := r.Parents(LevelWorksheet)
	if !reflect.DeepEqual(got, []string{"Alpha", "Zeta"}) {
		t.Errorf("Parents = %v", got)
	}
}
