package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/simdoc/simdoc/sim"
)

func sampleModel() *sim.Model {
	return &sim.Model{
		Standard:      "MIL-STD-6016",
		Edition:       "B",
		TransportUnit: sim.TransportBit,
		Messages: []sim.Message{{
			Label: "J10.2",
			Title: "Engagement Status",
			Segments: []sim.Segment{{
				Type: "Initial", BitLen: 70,
				Fields: []sim.FieldRecord{
					{Name: "Altitude", Bits: sim.BitRange{Start: 0, End: 15}, Encoding: sim.EncodingInteger, Units: "ft", Confidence: 0.9},
				},
			}},
		}},
		Dictionary: []sim.DictionaryEntry{{CategoryID: 277, Name: "Altitude"}},
		Enums: []sim.EnumDef{{
			Key:   "track_status",
			Items: []sim.EnumItem{{Code: "0", Label: "Pending"}},
		}},
		Units: []sim.UnitDef{{Symbol: "ft", BaseSI: "m", Factor: 0.3048}},
	}
}

func TestMessageFileName(t *testing.T) {
	cases := map[string]string{
		"J10.2": "J10_2.yaml",
		"J3.2":  "J3_2.yaml",
		"J7":    "J7.yaml",
	}
	for label, want := range cases {
		if got := MessageFileName(label); got != want {
			t.Errorf("MessageFileName(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestWriteYAMLDir(t *testing.T) {
	dir := t.TempDir()
	if err := WriteYAMLDir(dir, sampleModel()); err != nil {
		t.Fatalf("WriteYAMLDir: %v", err)
	}

	for _, name := range []string{"J10_2.yaml", "dictionary.yaml", "enums_track_status.yaml", "units.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "J10_2.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	var msg sim.Message
	if err := yaml.Unmarshal(data, &msg); err != nil {
		t.Fatalf("message file not parseable: %v", err)
	}
	if msg.Label != "J10.2" || len(msg.Segments) != 1 {
		t.Errorf("round-tripped message = %+v", msg)
	}
}

func TestWriteYAMLDirEmptyModel(t *testing.T) {
	dir := t.TempDir()
	if err := WriteYAMLDir(dir, &sim.Model{Standard: "X"}); err != nil {
		t.Fatalf("WriteYAMLDir: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("empty model wrote files: %v", entries)
	}
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.xlsx")
	if err := WriteXLSX(path, sampleModel()); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()

	for _, sheet := range []string{"J10.2", "Dictionary", "Enums", "Units"} {
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			t.Errorf("missing sheet %q, have %v", sheet, f.GetSheetList())
		}
	}

	name, err := f.GetCellValue("J10.2", "A2")
	if err != nil {
		t.Fatal(err)
	}
	if name != "Altitude" {
		t.Errorf("J10.2!A2 = %q, want Altitude", name)
	}
	bits, _ := f.GetCellValue("J10.2", "B2")
	if bits != "0-15" {
		t.Errorf("J10.2!B2 = %q, want 0-15", bits)
	}
}

func TestWriteXLSXNilModel(t *testing.T) {
	if err := WriteXLSX(filepath.Join(t.TempDir(), "x.xlsx"), nil); err == nil {
		t.Fatal("nil model accepted")
	}
}
