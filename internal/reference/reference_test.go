package reference

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"16", "16"},
		{" 16 ", "16"},
		{"16а", "16А"},
		{"16/2", "162"},
		{"д. 16, корп. 2", "Д 16 КОРП 2"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestLoadHousesKeepsFileOrder(t *testing.T) {
	path := writeFile(t, "houses.json", `{
		"16": ["Ufa, Bekhtereva St., h. 16"],
		"3": ["Addr A", "Addr B"],
		"21": ["Addr C"]
	}`)

	dir, err := LoadHouses(path)
	if err != nil {
		t.Fatalf("LoadHouses: %v", err)
	}
	want := []string{"16", "3", "21"}
	got := dir.Numbers()
	if len(got) != len(want) {
		t.Fatalf("numbers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("numbers = %v, want %v", got, want)
		}
	}

	addrs, ok := dir.Lookup("3")
	if !ok {
		t.Fatal("house 3 not found")
	}
	if len(addrs) != 2 || addrs[0] != "Addr A" || addrs[1] != "Addr B" {
		t.Fatalf("addresses for 3 = %v", addrs)
	}
	if _, ok := dir.Lookup("99"); ok {
		t.Fatal("unexpected hit for absent house")
	}
}

func TestLoadHousesErrors(t *testing.T) {
	if _, err := LoadHouses(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
	empty := writeFile(t, "empty.json", `{}`)
	if _, err := LoadHouses(empty); err == nil {
		t.Fatal("expected error for empty directory")
	}
	bad := writeFile(t, "bad.json", `["not", "an", "object"]`)
	if _, err := LoadHouses(bad); err == nil {
		t.Fatal("expected error for non-object JSON")
	}
	noAddrs := writeFile(t, "noaddrs.json", `{"16": []}`)
	if _, err := LoadHouses(noAddrs); err == nil {
		t.Fatal("expected error for entry without addresses")
	}
}

func TestLoadWorkCatalog(t *testing.T) {
	path := writeFile(t, "works.json", `[
		{"Наименование": "Покраска фасада", "Данные": "краска, кисти"},
		{"Наименование": "Ремонт кровли", "Данные": ""}
	]`)

	works, err := LoadWorkCatalog(path)
	if err != nil {
		t.Fatalf("LoadWorkCatalog: %v", err)
	}
	if len(works) != 2 {
		t.Fatalf("len = %d, want 2", len(works))
	}
	first, ok := works.At(1)
	if !ok || first.Name != "Покраска фасада" || first.Data != "краска, кисти" {
		t.Fatalf("At(1) = %+v, %v", first, ok)
	}
	if _, ok := works.At(0); ok {
		t.Fatal("At(0) must miss; indexes are 1-based")
	}
	if _, ok := works.At(3); ok {
		t.Fatal("At(3) must miss")
	}
}

func TestLoadWorkCatalogErrors(t *testing.T) {
	empty := writeFile(t, "empty.json", `[]`)
	if _, err := LoadWorkCatalog(empty); err == nil {
		t.Fatal("expected error for empty catalog")
	}
	dup := writeFile(t, "dup.json", `[
		{"Наименование": "Покраска", "Данные": ""},
		{"Наименование": "Покраска", "Данные": ""}
	]`)
	if _, err := LoadWorkCatalog(dup); err == nil {
		t.Fatal("expected error for duplicate names")
	}
	blank := writeFile(t, "blank.json", `[{"Наименование": "  ", "Данные": ""}]`)
	if _, err := LoadWorkCatalog(blank); err == nil {
		t.Fatal("expected error for blank name")
	}
}
