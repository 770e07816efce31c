package record

import "testing"

func quake(mag float64, coords []any) Record {
	return Record{
		"properties": map[string]any{"mag": mag, "place": "somewhere"},
		"geometry":   map[string]any{"coordinates": coords},
	}
}

func TestResolveWalksNestedObjects(t *testing.T) {
	rec := quake(4.5, []any{-122.0, 37.5, 10.0})
	v, ok := Resolve(rec, "properties.mag")
	if !ok {
		t.Fatal("expected properties.mag to resolve")
	}
	if v.(float64) != 4.5 {
		t.Fatalf("properties.mag = %v, want 4.5", v)
	}
}

func TestResolveStopsAtMissingIntermediate(t *testing.T) {
	rec := Record{"a": map[string]any{"b": 1.0}}
	if _, ok := Resolve(rec, "a.x.c"); ok {
		t.Fatal("missing intermediate should not resolve")
	}
	if _, ok := Resolve(rec, ""); ok {
		t.Fatal("empty path should not resolve")
	}
}

func TestResolveArrayIndexSegments(t *testing.T) {
	rec := quake(4.5, []any{-122.0, 37.5, 10.0})
	v, ok := ResolveNumber(rec, "geometry.coordinates.1")
	if !ok || v != 37.5 {
		t.Fatalf("coordinates.1 = %v ok=%v, want 37.5", v, ok)
	}
}

func TestResolveNumberParsesNumericStrings(t *testing.T) {
	rec := Record{"depth": " 12.5 "}
	v, ok := ResolveNumber(rec, "depth")
	if !ok || v != 12.5 {
		t.Fatalf("depth = %v ok=%v, want 12.5", v, ok)
	}
	rec = Record{"label": "deep"}
	if _, ok := ResolveNumber(rec, "label"); ok {
		t.Fatal("non-numeric string should not parse")
	}
}

func TestDiscoverEmptyInput(t *testing.T) {
	if got := Discover(nil); len(got) != 0 {
		t.Fatalf("expected no descriptors, got %d", len(got))
	}
}

func TestDiscoverFullCoverageResolves(t *testing.T) {
	records := []Record{
		quake(4.5, []any{-122.0, 37.5, 10.0}),
		quake(3.2, []any{-121.8, 38.1, 8.0}),
		quake(5.1, []any{-122.5, 36.9, 12.0}),
	}
	descs := Discover(records)
	byPath := map[string]PathDescriptor{}
	for _, d := range descs {
		byPath[d.Path] = d
	}
	mag, ok := byPath["properties.mag"]
	if !ok {
		t.Fatal("properties.mag not discovered")
	}
	if mag.Type != "number" || mag.Coverage != 1.0 {
		t.Fatalf("properties.mag = %+v, want number with coverage 1", mag)
	}
	// Full coverage means the path resolves on every record.
	for _, rec := range records {
		if _, ok := Resolve(rec, mag.Path); !ok {
			t.Fatalf("coverage-1 path failed to resolve on %v", rec)
		}
	}
	coords, ok := byPath["geometry.coordinates"]
	if !ok {
		t.Fatal("geometry.coordinates not discovered")
	}
	if !coords.IsArray {
		t.Fatal("array-of-primitives leaf should be flagged IsArray")
	}
}

func TestDiscoverCoverageFraction(t *testing.T) {
	records := []Record{
		{"a": 1.0, "b": 2.0},
		{"a": 3.0},
		{"a": 4.0},
		{"a": 5.0},
	}
	descs := Discover(records)
	for _, d := range descs {
		if d.Path == "b" && d.Coverage != 0.25 {
			t.Fatalf("b coverage = %v, want 0.25", d.Coverage)
		}
	}
}

func TestDiscoverDropsLowCoverage(t *testing.T) {
	records := make([]Record, 20)
	for i := range records {
		records[i] = Record{"a": float64(i)}
	}
	records[0] = Record{"a": 0.0, "rare": 1.0} // 1/20 = 0.05 < 0.1
	for _, d := range Discover(records) {
		if d.Path == "rare" {
			t.Fatal("coverage below floor should be discarded")
		}
	}
}

func TestDiscoverDepthCap(t *testing.T) {
	deep := Record{"a": map[string]any{"b": map[string]any{"c": map[string]any{
		"d": map[string]any{"e": map[string]any{"f": map[string]any{"g": 1.0}}}}}}}
	for _, d := range Discover([]Record{deep}) {
		if d.Path == "a.b.c.d.e.f.g" {
			t.Fatal("paths beyond the depth cap should not be discovered")
		}
	}
}

func TestNumericPathsFilters(t *testing.T) {
	descs := []PathDescriptor{
		{Path: "a", Type: "number"},
		{Path: "b", Type: "string"},
		{Path: "c", Type: "boolean"},
	}
	got := NumericPaths(descs)
	if len(got) != 1 || got[0].Path != "a" {
		t.Fatalf("NumericPaths = %+v, want only a", got)
	}
}
