package query

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadCatalog_MissingDirIsEmpty(t *testing.T) {
	c, err := LoadCatalog(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty catalog, got %d templates", c.Len())
	}
}

func TestLoadCatalog_ReadsTemplatesAndHeaders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "indicators", "01_active_art_previous.sql"),
		"-- label_en: Active ART patients in previous quarter\n-- label_kh: អ្នកជំងឺ ART\nSELECT 1")
	writeFile(t, filepath.Join(dir, "indicators", "10.8_vl_suppression.sql"),
		"-- cost: slow\nSELECT 2")
	writeFile(t, filepath.Join(dir, "details", "10.6_eligible_vl_test_details.sql"), "SELECT 3")
	writeFile(t, filepath.Join(dir, "indicators", "README.md"), "not a template")
	writeFile(t, filepath.Join(dir, "infant", "infant_hei_registered.sql"), "SELECT 4")

	c, err := LoadCatalog(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Len() != 4 {
		t.Fatalf("expected 4 templates, got %d", c.Len())
	}
	if got := c.IDs(KindSection); !reflect.DeepEqual(got, []string{"infant_hei_registered"}) {
		t.Errorf("unexpected section ids %v", got)
	}

	tmpl, err := c.Get("01_active_art_previous")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if tmpl.LabelEn != "Active ART patients in previous quarter" {
		t.Errorf("unexpected label_en %q", tmpl.LabelEn)
	}
	if tmpl.Cost != CostFast || tmpl.Kind != KindAggregate {
		t.Errorf("expected fast aggregate, got %s %s", tmpl.Cost, tmpl.Kind)
	}

	vl, _ := c.Get("10.8_vl_suppression")
	if vl.Cost != CostSlow {
		t.Errorf("expected slow cost from header, got %s", vl.Cost)
	}

	detail, _ := c.Get("10.6_eligible_vl_test_details")
	if detail.Kind != KindDetail {
		t.Errorf("expected detail kind, got %s", detail.Kind)
	}

	if got := c.IDs(KindAggregate); !reflect.DeepEqual(got, []string{"01_active_art_previous", "10.8_vl_suppression"}) {
		t.Errorf("unexpected aggregate ids %v", got)
	}
}

func TestCatalog_GetMissing(t *testing.T) {
	c := NewCatalog()
	_, err := c.Get("nope")
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestSortIDs_NumericPrefix(t *testing.T) {
	ids := []string{"10.2_mmd", "zz_extra", "2_pre_art", "10.10_x", "10.2_alpha", "1_active", "10_active_art"}
	SortIDs(ids)
	want := []string{"1_active", "2_pre_art", "10_active_art", "10.10_x", "10.2_alpha", "10.2_mmd", "zz_extra"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("got %v, want %v", ids, want)
	}
}

func TestLegacyCost(t *testing.T) {
	cases := map[string]Cost{
		"10.6_eligible_vl_test": CostSlow,
		"10.7_anything":         CostSlow,
		"10.8_x":                CostSlow,
		"01_active_art":         CostFast,
		"10.2_mmd":              CostFast,
	}
	for id, want := range cases {
		if got := legacyCost(id); got != want {
			t.Errorf("legacyCost(%q) = %s, want %s", id, got, want)
		}
	}
}

func TestHumanize(t *testing.T) {
	cases := map[string]string{
		"10.2_mmd_active":     "Mmd Active",
		"05.1.1_art_same_day": "Art Same Day",
		"plain":               "Plain",
		"10.6":                "10.6",
	}
	for in, want := range cases {
		if got := Humanize(in); got != want {
			t.Errorf("Humanize(%q) = %q, want %q", in, got, want)
		}
	}
}
