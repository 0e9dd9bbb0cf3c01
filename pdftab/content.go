package pdftab

import (
	"bytes"
	"strconv"
)

// TextRun is one positioned piece of text from a page content stream.
// Coordinates are in PDF page units, origin at the lower left.
type TextRun struct {
	X, Y float64
	Text string
}

// Line is one ruled stroke, kept when it is axis-aligned. Table borders
// arrive either as stroked paths or as thin filled rectangles.
type Line struct {
	X0, Y0, X1, Y1 float64
}

// Horizontal reports whether the line runs left to right.
func (l Line) Horizontal() bool {
	return abs(l.Y1-l.Y0) <= 1 && abs(l.X1-l.X0) > 1
}

// Vertical reports whether the line runs top to bottom.
func (l Line) Vertical() bool {
	return abs(l.X1-l.X0) <= 1 && abs(l.Y1-l.Y0) > 1
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// parseContent interprets the subset of the content stream language
// that matters for table recovery: text positioning and showing
// operators, plus path construction for ruled lines. Everything else
// is skipped.
func parseContent(data []byte) ([]TextRun, []Line) {
	var (
		runs  []TextRun
		rules []Line

		nums    []float64
		strs    []string
		lineX   float64
		lineY   float64
		leading float64

		pathX, pathY float64
		hasPoint     bool
	)

	popNums := func(n int) []float64 {
		if len(nums) < n {
			return nil
		}
		out := nums[len(nums)-n:]
		return out
	}
	reset := func() {
		nums = nums[:0]
		strs = strs[:0]
	}
	emit := func() {
		if len(strs) == 0 {
			return
		}
		text := ""
		for _, s := range strs {
			text += s
		}
		if text != "" {
			runs = append(runs, TextRun{X: lineX, Y: lineY, Text: text})
		}
	}
	nextLine := func() {
		lineY -= leading
	}

	tok := newTokenizer(data)
	for {
		t, ok := tok.next()
		if !ok {
			break
		}
		switch t.kind {
		case tokNumber:
			nums = append(nums, t.num)
		case tokString:
			strs = append(strs, t.str)
		case tokOperator:
			switch t.str {
			case "BT":
				lineX, lineY, leading = 0, 0, 0
			case "Tm":
				if v := popNums(6); v != nil {
					lineX, lineY = v[4], v[5]
				}
			case "Td":
				if v := popNums(2); v != nil {
					lineX += v[0]
					lineY += v[1]
				}
			case "TD":
				if v := popNums(2); v != nil {
					leading = -v[1]
					lineX += v[0]
					lineY += v[1]
				}
			case "TL":
				if v := popNums(1); v != nil {
					leading = v[0]
				}
			case "T*":
				nextLine()
			case "Tj", "TJ":
				emit()
			case "'":
				nextLine()
				emit()
			case "\"":
				nextLine()
				emit()
			case "m":
				if v := popNums(2); v != nil {
					pathX, pathY = v[0], v[1]
					hasPoint = true
				}
			case "l":
				if v := popNums(2); v != nil && hasPoint {
					rules = append(rules, Line{X0: pathX, Y0: pathY, X1: v[0], Y1: v[1]})
					pathX, pathY = v[0], v[1]
				}
			case "re":
				if v := popNums(4); v != nil {
					x, y, w, h := v[0], v[1], v[2], v[3]
					rules = append(rules,
						Line{X0: x, Y0: y, X1: x + w, Y1: y},
						Line{X0: x, Y0: y + h, X1: x + w, Y1: y + h},
						Line{X0: x, Y0: y, X1: x, Y1: y + h},
						Line{X0: x + w, Y0: y, X1: x + w, Y1: y + h},
					)
				}
			}
			reset()
		}
	}
	return runs, rules
}

type tokKind int

const (
	tokNumber tokKind = iota
	tokString
	tokOperator
)

type token struct {
	kind tokKind
	num  float64
	str  string
}

type tokenizer struct {
	data []byte
	pos  int
}

func newTokenizer(data []byte) *tokenizer {
	return &tokenizer{data: data}
}

func isDelim(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', 0, '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (t *tokenizer) next() (token, bool) {
	for t.pos < len(t.data) {
		b := t.data[t.pos]
		switch {
		case b == ' ' || b == '\t' || b == '\r' || b == '\n' || b == '\f' || b == 0:
			t.pos++
		case b == '%':
			if i := bytes.IndexByte(t.data[t.pos:], '\n'); i >= 0 {
				t.pos += i + 1
			} else {
				t.pos = len(t.data)
			}
		case b == '(':
			return token{kind: tokString, str: t.readLiteralString()}, true
		case b == '<':
			if t.pos+1 < len(t.data) && t.data[t.pos+1] == '<' {
				t.pos += 2 // dict open, skip
				continue
			}
			return token{kind: tokString, str: t.readHexString()}, true
		case b == '>':
			t.pos++ // dict close halves
		case b == '[' || b == ']' || b == '{' || b == '}':
			t.pos++
		case b == '/':
			t.pos++
			t.readBareToken() // name, unused
		default:
			word := t.readBareToken()
			if n, err := strconv.ParseFloat(word, 64); err == nil {
				return token{kind: tokNumber, num: n}, true
			}
			return token{kind: tokOperator, str: word}, true
		}
	}
	return token{}, false
}

func (t *tokenizer) readBareToken() string {
	start := t.pos
	for t.pos < len(t.data) && !isDelim(t.data[t.pos]) {
		t.pos++
	}
	return string(t.data[start:t.pos])
}

// readLiteralString consumes a (string), handling escapes and nested
// parentheses per the PDF string grammar.
func (t *tokenizer) readLiteralString() string {
	t.pos++ // consume '('
	var sb bytes.Buffer
	depth := 1
	for t.pos < len(t.data) {
		b := t.data[t.pos]
		switch b {
		case '\\':
			t.pos++
			if t.pos >= len(t.data) {
				return sb.String()
			}
			e := t.data[t.pos]
			switch e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '\\', '(', ')':
				sb.WriteByte(e)
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && t.pos+1 < len(t.data); k++ {
						nx := t.data[t.pos+1]
						if nx < '0' || nx > '7' {
							break
						}
						t.pos++
						val = val*8 + int(nx-'0')
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(e)
				}
			}
			t.pos++
		case '(':
			depth++
			sb.WriteByte(b)
			t.pos++
		case ')':
			depth--
			t.pos++
			if depth == 0 {
				return sb.String()
			}
			sb.WriteByte(b)
		default:
			sb.WriteByte(b)
			t.pos++
		}
	}
	return sb.String()
}

func (t *tokenizer) readHexString() string {
	t.pos++ // consume '<'
	var sb bytes.Buffer
	var hi byte
	haveHi := false
	for t.pos < len(t.data) {
		b := t.data[t.pos]
		t.pos++
		if b == '>' {
			break
		}
		v, ok := hexVal(b)
		if !ok {
			continue
		}
		if !haveHi {
			hi, haveHi = v, true
		} else {
			sb.WriteByte(hi<<4 | v)
			haveHi = false
		}
	}
	if haveHi {
		sb.WriteByte(hi << 4)
	}
	return sb.String()
}

func hexVal(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}
