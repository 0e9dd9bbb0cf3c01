package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/simdoc/simdoc/dbopen"
	"github.com/simdoc/simdoc/sim"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return New(dbopen.OpenMemory(t, dbopen.WithSchema(Schema)))
}

func sampleModel() *sim.Model {
	return &sim.Model{
		Standard:      "MIL-STD-6016",
		Edition:       "B",
		TransportUnit: sim.TransportBit,
		Messages: []sim.Message{{
			Label: "J3.2",
			Title: "Air Track",
			Segments: []sim.Segment{{
				Type: "Initial", SegIdx: 0, BitLen: 70,
				Fields: []sim.FieldRecord{
					{Name: "Altitude", Bits: sim.BitRange{Start: 0, End: 15}, Encoding: sim.EncodingInteger, Units: "ft", Confidence: 0.9},
					{Name: "Track Status", Bits: sim.BitRange{Start: 16, End: 18}, Encoding: sim.EncodingEnum, Confidence: 0.85},
				},
			}},
		}},
		Dictionary: []sim.DictionaryEntry{
			{CategoryID: 277, Name: "Altitude"},
			{CategoryID: 277, SubID: 1, Name: "Estimated"},
		},
		Enums: []sim.EnumDef{{
			Key:   "track_status",
			Items: []sim.EnumItem{{Code: "0", Label: "Pending"}, {Code: "1", Label: "Active"}},
		}},
		Units: []sim.UnitDef{{Symbol: "ft", BaseSI: "m", Factor: 0.3048}},
		Metadata: sim.Metadata{
			Source: "standard.pdf", CreatedAt: "2026-08-23T10:00:00Z", PageCount: 42,
		},
	}
}

func TestImportRowCounts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	report := sim.Report{
		{Severity: sim.SeverityWarning, RuleID: "SD-UNIT-001", Path: "messages[0]", Message: "x"},
	}
	docID, err := s.Import(ctx, sampleModel(), report)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if docID == "" {
		t.Fatal("empty document id")
	}

	counts := map[string]int{
		"documents":          1,
		"messages":           1,
		"segments":           1,
		"fields":             2,
		"dictionary_entries": 2,
		"enum_defs":          1,
		"enum_items":         2,
		"unit_defs":          1,
		"issues":             1,
	}
	for table, want := range counts {
		var got int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&got); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if got != want {
			t.Errorf("%s rows = %d, want %d", table, got, want)
		}
	}
}

func TestImportLoadRoundTrip(t *testing.T) {
	// WHAT: A loaded model equals the imported one, so prior-edition
	// diffs compare like with like.
	s := testStore(t)
	ctx := context.Background()

	want := sampleModel()
	docID, err := s.Import(ctx, want, nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	got, err := s.LoadModel(ctx, docID)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("round trip mismatch:\nwant %+v\ngot  %+v", want, got)
	}
}

func TestLoadModelNotFound(t *testing.T) {
	s := testStore(t)
	if _, err := s.LoadModel(context.Background(), "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFindLatest(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	older := sampleModel()
	older.Edition = "A"
	older.Metadata.CreatedAt = "2026-01-01T00:00:00Z"
	if _, err := s.Import(ctx, older, nil); err != nil {
		t.Fatal(err)
	}

	newer := sampleModel()
	newer.Edition = "A"
	newer.Metadata.CreatedAt = "2026-06-01T00:00:00Z"
	newerID, err := s.Import(ctx, newer, nil)
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.FindLatest(ctx, "MIL-STD-6016", "A")
	if err != nil {
		t.Fatalf("FindLatest: %v", err)
	}
	if got != newerID {
		t.Errorf("FindLatest = %q, want %q", got, newerID)
	}

	if _, err := s.FindLatest(ctx, "MIL-STD-6016", "Z"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing edition err = %v, want ErrNotFound", err)
	}
}

func TestIssuesRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	report := sim.Report{
		{Severity: sim.SeverityError, RuleID: "SD-STRUCT-001", Path: "messages[0].segments[0].fields[1]", Message: "overlap", Fix: "split"},
		{Severity: sim.SeverityInfo, RuleID: "SD-ROW-001", Path: "pages[4]", Message: "row skipped"},
	}
	docID, err := s.Import(ctx, sampleModel(), report)
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Issues(ctx, docID)
	if err != nil {
		t.Fatalf("Issues: %v", err)
	}
	if !reflect.DeepEqual(report, got) {
		t.Errorf("issues mismatch:\nwant %+v\ngot  %+v", report, got)
	}
}

func TestImportNilModel(t *testing.T) {
	s := testStore(t)
	if _, err := s.Import(context.Background(), nil, nil); err == nil {
		t.Fatal("nil model accepted")
	}
}
