package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func testCatalog() *Catalog {
	return New([]Item{
		{ID: "bk-250", Name: "Beaker 250ml", Class: "beaker", Location: "shelf A2", Quantity: 12, Tags: []string{"glassware"}},
		{ID: "mic-01", Name: "Compound microscope", Class: "Microscope", Location: "bench 4", Quantity: 2, Tags: []string{"optics"}},
		{ID: "gl-m", Name: "Nitrile gloves (M)", Class: "nitrile gloves", Location: "door rack", Quantity: 200, Tags: []string{"ppe", "consumable"}},
	})
}

func TestSearch(t *testing.T) {
	c := testCatalog()

	cases := []struct {
		q    string
		want int
	}{
		{"", 3},
		{"beaker", 1},
		{"BEAKER", 1},
		{"ppe", 1},
		{"bench", 1},
		{"laser", 0},
	}
	for _, tc := range cases {
		if got := c.Search(tc.q); len(got) != tc.want {
			t.Errorf("Search(%q) returned %d items, want %d", tc.q, len(got), tc.want)
		}
	}
}

func TestByClassCaseInsensitive(t *testing.T) {
	c := testCatalog()

	if got := c.ByClass("microscope"); len(got) != 1 || got[0].ID != "mic-01" {
		t.Errorf("ByClass(microscope) = %v", got)
	}
	if got := c.ByClass("unknown thing"); got != nil {
		t.Errorf("ByClass(unknown) = %v, want nil", got)
	}
}

func TestGet(t *testing.T) {
	c := testCatalog()

	if item, ok := c.Get("bk-250"); !ok || item.Name != "Beaker 250ml" {
		t.Errorf("Get(bk-250) = %v, %v", item, ok)
	}
	if _, ok := c.Get("nope"); ok {
		t.Error("Get(nope) reported found")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	doc := `items:
  - id: hp-01
    name: Hot plate stirrer
    class: hot plate
    location: bench 1
    quantity: 2
    tags: [heating]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Items()) != 1 {
		t.Fatalf("loaded %d items, want 1", len(c.Items()))
	}
	if item, ok := c.Get("hp-01"); !ok || item.Quantity != 2 {
		t.Errorf("Get(hp-01) = %v, %v", item, ok)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing catalog file")
	}
}
