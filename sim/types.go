// Package sim defines the Semantic Intermediate Model: the structured,
// validated representation of a standard document's messages, segments and
// bit/byte-level fields produced by the extraction pipeline.
//
// The serialized form (JSON or YAML, identical field names) is a stable
// contract parsed by downstream mapping and import tooling. Do not rename
// wire fields.
package sim

import (
	"encoding/json"
	"fmt"
)

// TransportUnit is the addressing unit of a document's bit ranges.
type TransportUnit string

const (
	TransportBit  TransportUnit = "bit"
	TransportByte TransportUnit = "byte"
)

// Encoding classifies how a field's raw bits are interpreted.
type Encoding string

const (
	EncodingInteger  Encoding = "integer"
	EncodingEnum     Encoding = "enum"
	EncodingString   Encoding = "string"
	EncodingVariable Encoding = "variable"
	EncodingBinary   Encoding = "binary"
)

// BitRange is an inclusive, 0-based range of bits (or bytes, depending on
// the document's transport unit). Serialized as a two-element array
// [start, end].
type BitRange struct {
	Start int
	End   int
}

// Len returns the number of positions covered by the range.
func (r BitRange) Len() int { return r.End - r.Start + 1 }

// Overlaps reports whether two ranges share at least one position.
func (r BitRange) Overlaps(o BitRange) bool {
	return r.Start <= o.End && o.Start <= r.End
}

// Valid reports whether the range is well-formed: 0 <= Start <= End.
func (r BitRange) Valid() bool { return r.Start >= 0 && r.Start <= r.End }

func (r BitRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{r.Start, r.End})
}

func (r *BitRange) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("bits: %w", err)
	}
	r.Start, r.End = pair[0], pair[1]
	return nil
}

func (r BitRange) MarshalYAML() (any, error) {
	return []int{r.Start, r.End}, nil
}

func (r *BitRange) UnmarshalYAML(unmarshal func(any) error) error {
	var pair []int
	if err := unmarshal(&pair); err != nil {
		return fmt.Errorf("bits: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("bits: want [start, end], got %d elements", len(pair))
	}
	r.Start, r.End = pair[0], pair[1]
	return nil
}

func (r BitRange) String() string { return fmt.Sprintf("%d-%d", r.Start, r.End) }

// FieldRecord is one normalized field definition extracted from a table row.
type FieldRecord struct {
	Name        string   `json:"name" yaml:"name"`
	Bits        BitRange `json:"bits" yaml:"bits,flow"`
	Encoding    Encoding `json:"encoding" yaml:"encoding"`
	Units       string   `json:"units,omitempty" yaml:"units,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Confidence  float64  `json:"confidence" yaml:"confidence"`
}

// Segment ("word") is an ordered group of fields sharing one bit container.
type Segment struct {
	Type   string        `json:"type" yaml:"type"`
	SegIdx int           `json:"seg_idx" yaml:"seg_idx"`
	BitLen int           `json:"bit_len" yaml:"bit_len"`
	Fields []FieldRecord `json:"fields" yaml:"fields"`
}

// Message is a named unit composed of ordered segments, e.g. a J-series
// message or a protocol control packet.
type Message struct {
	Label    string    `json:"label" yaml:"label"`
	Title    string    `json:"title,omitempty" yaml:"title,omitempty"`
	Purpose  string    `json:"purpose,omitempty" yaml:"purpose,omitempty"`
	Segments []Segment `json:"segments" yaml:"segments"`
}

// FieldCount returns the number of fields across the message's segments.
func (m Message) FieldCount() int {
	n := 0
	for _, seg := range m.Segments {
		n += len(seg.Fields)
	}
	return n
}

// DictionaryEntry is one node of the hierarchical identifier forest
// (DFI -> DUI -> DI style nesting). A category-level node has SubID == 0
// and ItemID == ""; a sub-category node has ItemID == "".
type DictionaryEntry struct {
	CategoryID  int    `json:"category_id" yaml:"category_id"`
	SubID       int    `json:"sub_id,omitempty" yaml:"sub_id,omitempty"`
	ItemID      string `json:"item_id,omitempty" yaml:"item_id,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Level returns the nesting depth: 0 category, 1 sub-category, 2 item.
func (e DictionaryEntry) Level() int {
	switch {
	case e.ItemID != "":
		return 2
	case e.SubID != 0:
		return 1
	default:
		return 0
	}
}

// EnumItem is one value of an enumeration.
type EnumItem struct {
	Code        string `json:"code" yaml:"code"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// EnumDef is a named enumeration referenced by enum-encoded fields.
type EnumDef struct {
	Key   string     `json:"key" yaml:"key"`
	Items []EnumItem `json:"items" yaml:"items"`
}

// UnitDef describes a canonical unit and its SI conversion.
type UnitDef struct {
	Symbol      string  `json:"symbol" yaml:"symbol"`
	BaseSI      string  `json:"base_si" yaml:"base_si"`
	Factor      float64 `json:"factor" yaml:"factor"`
	Offset      float64 `json:"offset,omitempty" yaml:"offset,omitempty"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// Metadata records provenance of a model.
type Metadata struct {
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`
	CreatedAt string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	PageCount int    `json:"page_count,omitempty" yaml:"page_count,omitempty"`
}

// Model is the root SIM aggregate. It is append-only during assembly and
// read-only once handed to validation or export.
type Model struct {
	Standard      string            `json:"standard" yaml:"standard"`
	Edition       string            `json:"edition" yaml:"edition"`
	TransportUnit TransportUnit     `json:"transport_unit" yaml:"transport_unit"`
	Messages      []Message         `json:"messages" yaml:"messages"`
	Dictionary    []DictionaryEntry `json:"dictionary,omitempty" yaml:"dictionary,omitempty"`
	Enums         []EnumDef         `json:"enums,omitempty" yaml:"enums,omitempty"`
	Units         []UnitDef         `json:"units,omitempty" yaml:"units,omitempty"`
	Metadata      Metadata          `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// FieldCount returns the total number of fields across all messages.
func (m *Model) FieldCount() int {
	n := 0
	for _, msg := range m.Messages {
		n += msg.FieldCount()
	}
	return n
}
