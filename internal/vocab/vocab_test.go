package vocab

import (
	"os"
	"path/filepath"
	"testing"
)

func TestControlLabel(t *testing.T) {
	v := Default()
	cases := []struct {
		token, want string
	}{
		{"checkdropdown", "Dropdown (multi)"},
		{"CheckDropdown", "Dropdown (multi)"},
		{"singlevaluedropdown", "Single Value Dropdown"},
		{"single value dropdown", "Single Value Dropdown"},
		{"slider", "Slider"},
		{"compact-slider-v2", "Slider"}, // substring hint fallback
		{"mystery-widget", "mystery-widget"}, // raw token fallback, never dropped
		{"", ""},
	}
	for _, c := range cases {
		if got := v.ControlLabel(c.token); got != c.want {
			t.Errorf("ControlLabel(%q) = %q, want %q", c.token, got, c.want)
		}
	}
}

func TestIsRLS(t *testing.T) {
	v := Default()
	cases := []struct {
		formula string
		want    bool
	}{
		{`USERNAME() = "bob"`, true},
		{`username() = [Owner]`, true},
		{`ISMEMBEROF("Finance")`, true},
		{`USERATTR("region") = [Region]`, true},
		{`SUM([Sales]) / SUM([Profit])`, false},
		{``, false},
	}
	for _, c := range cases {
		if got := v.IsRLS(c.formula); got != c.want {
			t.Errorf("IsRLS(%q) = %v, want %v", c.formula, got, c.want)
		}
	}
}

func TestIsLayoutOnly(t *testing.T) {
	v := Default()
	if !v.IsLayoutOnly("zone 'Map': width changed '100' → '200'") {
		t.Error("width change should be layout-only")
	}
	if !v.IsLayoutOnly("Container position moved") {
		t.Error("container position should be layout-only")
	}
	if v.IsLayoutOnly("Filter added: Region") {
		t.Error("filter change is functional, not layout")
	}
}

func TestIsNoiseTag(t *testing.T) {
	v := Default()
	for _, tag := range []string{"window", "windows", "device-layout", "style", "panes"} {
		if !v.IsNoiseTag(tag) {
			t.Errorf("%q should be a noise tag", tag)
		}
	}
	if v.IsNoiseTag("worksheet") {
		t.Error("worksheet is not a noise tag")
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	overlay := `control_modes:
  checkdropdown: "Multi Dropdown"
  newmode: "New Mode"
control_hints:
  - token: "wheel"
    label: "Wheel"
rls_keywords:
  - "CUSTOMGROUP("
noise_tags:
  - "sparkline"
`
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}

	v, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := v.ControlLabel("checkdropdown"); got != "Multi Dropdown" {
		t.Errorf("override should win: got %q", got)
	}
	if got := v.ControlLabel("newmode"); got != "New Mode" {
		t.Errorf("new mode entry missing: got %q", got)
	}
	if got := v.ControlLabel("slider"); got != "Slider" {
		t.Errorf("default entry should survive merge: got %q", got)
	}
	if got := v.ControlLabel("color-wheel"); got != "Wheel" {
		t.Errorf("overlay hint should apply: got %q", got)
	}
	if !v.IsRLS(`CUSTOMGROUP("x")`) {
		t.Error("overlay RLS keyword should apply")
	}
	if !v.IsRLS(`USERNAME()`) {
		t.Error("default RLS keyword should survive merge")
	}
	if !v.IsNoiseTag("sparkline") {
		t.Error("overlay noise tag should apply")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}
