// Package export writes an assembled model to the formats downstream
// tooling consumes: a YAML directory with one file per message, and an
// XLSX workbook with one sheet per message.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/simdoc/simdoc/sim"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// MessageFileName maps a message label to its YAML file name:
// "J10.2" becomes "J10_2.yaml".
func MessageFileName(label string) string {
	return unsafeFileChars.ReplaceAllString(label, "_") + ".yaml"
}

// WriteYAMLDir writes the model as a directory tree: one file per
// message, plus dictionary.yaml, one enums_<key>.yaml per enumeration,
// and units.yaml. Empty collections write no file.
func WriteYAMLDir(dir string, m *sim.Model) error {
	if m == nil {
		return fmt.Errorf("export: nil model")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	for _, msg := range m.Messages {
		if err := writeYAML(filepath.Join(dir, MessageFileName(msg.Label)), msg); err != nil {
			return err
		}
	}
	if len(m.Dictionary) > 0 {
		if err := writeYAML(filepath.Join(dir, "dictionary.yaml"), m.Dictionary); err != nil {
			return err
		}
	}
	for _, e := range m.Enums {
		name := "enums_" + unsafeFileChars.ReplaceAllString(e.Key, "_") + ".yaml"
		if err := writeYAML(filepath.Join(dir, name), e); err != nil {
			return err
		}
	}
	if len(m.Units) > 0 {
		if err := writeYAML(filepath.Join(dir, "units.yaml"), m.Units); err != nil {
			return err
		}
	}
	return nil
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("export: marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

var fieldHeader = []string{"Field Name", "Bits", "Encoding", "Units", "Description", "Confidence"}

// WriteXLSX writes the model as a workbook: one sheet per message plus
// Dictionary, Enums, and Units sheets when populated.
func WriteXLSX(path string, m *sim.Model) error {
	if m == nil {
		return fmt.Errorf("export: nil model")
	}
	f := excelize.NewFile()
	defer f.Close()

	for _, msg := range m.Messages {
		sheet := sheetName(msg.Label)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("export: sheet %s: %w", sheet, err)
		}
		if err := setRow(f, sheet, 1, fieldHeader); err != nil {
			return err
		}
		row := 2
		for _, seg := range msg.Segments {
			for _, field := range seg.Fields {
				values := []any{
					field.Name,
					field.Bits.String(),
					string(field.Encoding),
					field.Units,
					field.Description,
					field.Confidence,
				}
				if err := setRowValues(f, sheet, row, values); err != nil {
					return err
				}
				row++
			}
		}
	}

	if len(m.Dictionary) > 0 {
		if err := writeDictionarySheet(f, m.Dictionary); err != nil {
			return err
		}
	}
	if len(m.Enums) > 0 {
		if err := writeEnumsSheet(f, m.Enums); err != nil {
			return err
		}
	}
	if len(m.Units) > 0 {
		if err := writeUnitsSheet(f, m.Units); err != nil {
			return err
		}
	}

	// Drop the default sheet when we created any real content.
	if len(m.Messages) > 0 || len(m.Dictionary) > 0 {
		f.DeleteSheet("Sheet1")
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("export: save %s: %w", path, err)
	}
	return nil
}

func writeDictionarySheet(f *excelize.File, entries []sim.DictionaryEntry) error {
	const sheet = "Dictionary"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("export: sheet %s: %w", sheet, err)
	}
	if err := setRow(f, sheet, 1, []string{"DFI", "DUI", "DI", "Name", "Description"}); err != nil {
		return err
	}
	for i, e := range entries {
		values := []any{e.CategoryID, e.SubID, e.ItemID, e.Name, e.Description}
		if err := setRowValues(f, sheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func writeEnumsSheet(f *excelize.File, enums []sim.EnumDef) error {
	const sheet = "Enums"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("export: sheet %s: %w", sheet, err)
	}
	if err := setRow(f, sheet, 1, []string{"Key", "Code", "Label", "Description"}); err != nil {
		return err
	}
	row := 2
	for _, e := range enums {
		for _, item := range e.Items {
			if err := setRowValues(f, sheet, row, []any{e.Key, item.Code, item.Label, item.Description}); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func writeUnitsSheet(f *excelize.File, units []sim.UnitDef) error {
	const sheet = "Units"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("export: sheet %s: %w", sheet, err)
	}
	if err := setRow(f, sheet, 1, []string{"Symbol", "SI Base", "Factor", "Offset"}); err != nil {
		return err
	}
	for i, u := range units {
		if err := setRowValues(f, sheet, i+2, []any{u.Symbol, u.BaseSI, u.Factor, u.Offset}); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return setRowValues(f, sheet, row, cells)
}

func setRowValues(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("export: %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

// sheetName keeps labels within the 31-character sheet name limit and
// strips characters Excel rejects.
func sheetName(label string) string {
	s := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_").Replace(label)
	if len(s) > 31 {
		s = s[:31]
	}
	return s
}
