// Package assemble builds the semantic model from normalized rows:
// fields grouped into transport segments, dictionary tables folded into
// the DFI/DUI/DI forest, enumerations and units harvested from field
// descriptions.
package assemble

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/simdoc/simdoc/normalize"
	"github.com/simdoc/simdoc/sim"
)

// ErrNilInput is returned when Build is handed nothing to assemble.
var ErrNilInput = errors.New("assemble: nil input")

// DefaultContainerBits is the J-series word size. Byte-oriented
// transports use 8; zero disables rounding and keeps observed lengths.
const DefaultContainerBits = 70

// MessageInput is everything collected for one message section.
type MessageInput struct {
	Label   string
	Title   string
	Purpose string
	Rows    []normalize.Row
}

// DictInput is one dictionary section: the DFI identity from its
// heading plus the folded cells of its tables.
type DictInput struct {
	Label  string // e.g. "DFI 277"
	Title  string
	Tables [][][]string
}

// Input is the full collection feeding one model.
type Input struct {
	Standard      string
	Edition       string
	TransportUnit sim.TransportUnit
	ContainerBits int
	Metadata      sim.Metadata
	Messages      []MessageInput
	Dictionary    []DictInput
}

// Build assembles the model. Messages keep input order; dictionary,
// enums, and units are sorted for deterministic output.
func Build(in *Input) (*sim.Model, error) {
	if in == nil {
		return nil, ErrNilInput
	}
	container := in.ContainerBits
	if container == 0 {
		switch in.TransportUnit {
		case sim.TransportByte:
			container = 8
		default:
			container = DefaultContainerBits
		}
	}

	m := &sim.Model{
		Standard:      in.Standard,
		Edition:       in.Edition,
		TransportUnit: in.TransportUnit,
		Metadata:      in.Metadata,
	}
	for _, mi := range in.Messages {
		m.Messages = append(m.Messages, sim.Message{
			Label:    mi.Label,
			Title:    mi.Title,
			Purpose:  mi.Purpose,
			Segments: SplitSegments(mi.Rows, container),
		})
	}
	for _, di := range in.Dictionary {
		m.Dictionary = append(m.Dictionary, DictionaryEntries(di)...)
	}
	sortDictionary(m.Dictionary)
	m.Enums = HarvestEnums(m.Messages)
	m.Units = HarvestUnits(m.Messages)
	return m, nil
}

// segmentType names a segment by position: the first transport word is
// the initial word, the rest are extensions.
func segmentType(idx int) string {
	if idx == 0 {
		return "Initial"
	}
	return "Extension"
}

// SplitSegments groups rows into transport segments. A new segment
// starts at an explicit marker, when the word column changes, or when
// the bit numbering restarts. Each segment's length is the observed
// span rounded up to the container size.
func SplitSegments(rows []normalize.Row, containerBits int) []sim.Segment {
	var segs []sim.Segment
	var cur []sim.FieldRecord
	curWord := -1

	flush := func() {
		if len(cur) == 0 {
			return
		}
		idx := len(segs)
		segs = append(segs, sim.Segment{
			Type:   segmentType(idx),
			SegIdx: idx,
			BitLen: roundUp(maxEnd(cur)+1, containerBits),
			Fields: cur,
		})
		cur = nil
	}

	for _, r := range rows {
		boundary := r.NewSegment
		if r.Word >= 0 && curWord >= 0 && r.Word != curWord {
			boundary = true
		}
		if !boundary && len(cur) > 0 && r.Field.Bits.Start < cur[len(cur)-1].Bits.Start {
			boundary = true
		}
		if boundary {
			flush()
		}
		cur = append(cur, r.Field)
		curWord = r.Word
	}
	flush()
	return segs
}

func maxEnd(fields []sim.FieldRecord) int {
	end := 0
	for _, f := range fields {
		if f.Bits.End > end {
			end = f.Bits.End
		}
	}
	return end
}

func roundUp(n, container int) int {
	if container <= 0 || n <= 0 {
		return n
	}
	rem := n % container
	if rem == 0 {
		return n
	}
	return n + container - rem
}

var dfiLabelRE = regexp.MustCompile(`(?i)\bDFI\s+(\d+)`)

// DictionaryEntries folds one dictionary section into flat entries:
// the DFI itself, one entry per DUI row, and one per item row. Item
// rows attach to the most recent DUI; items before any DUI attach to
// the DFI directly with SubID zero.
func DictionaryEntries(di DictInput) []sim.DictionaryEntry {
	m := dfiLabelRE.FindStringSubmatch(di.Label)
	if m == nil {
		return nil
	}
	category, _ := strconv.Atoi(m[1])

	out := []sim.DictionaryEntry{{CategoryID: category, Name: di.Title}}
	curSub := 0
	for _, table := range di.Tables {
		kind := dictTableKind(table)
		for i, row := range table {
			if i == 0 && kind != dictKindUnknown {
				continue // header
			}
			id, name, desc := dictRowParts(row)
			if id == "" || name == "" {
				continue
			}
			switch kind {
			case dictKindSub:
				sub, err := strconv.Atoi(id)
				if err != nil {
					continue
				}
				curSub = sub
				out = append(out, sim.DictionaryEntry{CategoryID: category, SubID: sub, Name: name, Description: desc})
			case dictKindItem:
				out = append(out, sim.DictionaryEntry{CategoryID: category, SubID: curSub, ItemID: id, Name: name, Description: desc})
			}
		}
	}
	return out
}

type dictKind int

const (
	dictKindUnknown dictKind = iota
	dictKindSub
	dictKindItem
)

// dictTableKind reads a dictionary table's header row: a DUI column
// means sub-entries, a code or value column means items.
func dictTableKind(table [][]string) dictKind {
	if len(table) == 0 {
		return dictKindUnknown
	}
	header := strings.ToLower(strings.Join(table[0], " "))
	switch {
	case strings.Contains(header, "dui"):
		return dictKindSub
	case strings.Contains(header, "code") || strings.Contains(header, "value"):
		return dictKindItem
	}
	return dictKindUnknown
}

func dictRowParts(row []string) (id, name, desc string) {
	switch len(row) {
	case 0:
		return "", "", ""
	case 1:
		return strings.TrimSpace(row[0]), "", ""
	case 2:
		return strings.TrimSpace(row[0]), strings.TrimSpace(row[1]), ""
	default:
		return strings.TrimSpace(row[0]), strings.TrimSpace(row[1]), strings.TrimSpace(row[2])
	}
}

func sortDictionary(entries []sim.DictionaryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.CategoryID != b.CategoryID {
			return a.CategoryID < b.CategoryID
		}
		if a.SubID != b.SubID {
			return a.SubID < b.SubID
		}
		return a.ItemID < b.ItemID
	})
}

// HarvestEnums collects enumerations listed in field descriptions,
// keyed by the slugified field name. The first definition of a key
// wins; later conflicting listings are left for the validator to flag.
func HarvestEnums(msgs []sim.Message) []sim.EnumDef {
	byKey := map[string]sim.EnumDef{}
	var keys []string
	for _, msg := range msgs {
		for _, seg := range msg.Segments {
			for _, f := range seg.Fields {
				if f.Encoding != sim.EncodingEnum {
					continue
				}
				items := normalize.EnumItems(f.Description)
				if len(items) == 0 {
					continue
				}
				key := EnumKey(f.Name)
				if _, exists := byKey[key]; exists {
					continue
				}
				byKey[key] = sim.EnumDef{Key: key, Items: items}
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	out := make([]sim.EnumDef, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return out
}

var slugRE = regexp.MustCompile(`[^a-z0-9]+`)

// EnumKey slugifies a field name: "Track Status" becomes "track_status".
func EnumKey(name string) string {
	s := slugRE.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(s, "_")
}

// HarvestUnits collects the canonical definition of every known unit
// symbol the fields reference, sorted by symbol. Unknown symbols stay
// on the field for the validator.
func HarvestUnits(msgs []sim.Message) []sim.UnitDef {
	seen := map[string]sim.UnitDef{}
	for _, msg := range msgs {
		for _, seg := range msg.Segments {
			for _, f := range seg.Fields {
				if f.Units == "" {
					continue
				}
				if def, ok := normalize.NormalizeUnit(f.Units); ok {
					seen[def.Symbol] = def
				}
			}
		}
	}
	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	out := make([]sim.UnitDef, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, seen[s])
	}
	return out
}
