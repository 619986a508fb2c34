package catalog

import "testing"

func TestDefaultCatalogLookups(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}

	makes := c.Makes()
	if len(makes) == 0 {
		t.Fatalf("expected makes")
	}
	for i := 1; i < len(makes); i++ {
		if makes[i-1] >= makes[i] {
			t.Fatalf("makes not sorted and distinct: %v", makes)
		}
	}

	models := c.Models("toyota")
	if len(models) != 5 || models[0] != "Camry" {
		t.Fatalf("unexpected Toyota models %v", models)
	}

	years := c.Years("TOYOTA", "rav4")
	if len(years) != 2 || years[0] != 2024 || years[1] != 2023 {
		t.Fatalf("expected RAV4 years newest first, got %v", years)
	}

	v, ok := c.Lookup("tesla", "model 3", 2024)
	if !ok {
		t.Fatalf("expected Tesla Model 3 2024")
	}
	if !v.ZeroEmission() || v.BodyStyle != "Sedan" {
		t.Fatalf("unexpected vehicle %+v", v)
	}

	if _, ok := c.Lookup("Toyota", "Corolla", 1999); ok {
		t.Fatalf("expected a miss for an unknown year")
	}
	if got := c.Models("DeLorean"); len(got) != 0 {
		t.Fatalf("expected no models for an unknown make, got %v", got)
	}
}

func TestParseRejectsIncompleteEntries(t *testing.T) {
	if _, err := Parse([]byte("- {make: Toyota, year: 2024}\n")); err == nil {
		t.Fatalf("expected an error for a missing model")
	}
	if _, err := Parse([]byte("not: [valid")); err == nil {
		t.Fatalf("expected a YAML error")
	}
}
