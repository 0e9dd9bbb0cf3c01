package sections

import (
	"testing"

	"github.com/simdoc/simdoc/extract"
)

func pagesOf(texts ...string) []extract.PageText {
	out := make([]extract.PageText, len(texts))
	for i, t := range texts {
		out[i] = extract.PageText{Page: i + 1, Text: t}
	}
	return out
}

func TestClassifyKinds(t *testing.T) {
	pages := pagesOf(
		"Table of contents\nblah",
		"J3.2 Air Track\nField Name Bits\nAltitude 0-15",
		"DFI 277 Altitude\n0 No statement\n1 Estimated",
		"APPENDIX A: Transmit rules\nrule text",
	)
	got := Classify(pages)
	wantKinds := []Kind{KindOther, KindMessage, KindDictionary, KindAppendix}
	if len(got) != len(wantKinds) {
		t.Fatalf("got %d sections, want %d: %+v", len(got), len(wantKinds), got)
	}
	for i, k := range wantKinds {
		if got[i].Kind != k {
			t.Errorf("section %d kind = %q, want %q", i, got[i].Kind, k)
		}
	}
	if got[1].Label != "J3.2" || got[1].Title != "Air Track" {
		t.Errorf("message section = %q %q, want J3.2 / Air Track", got[1].Label, got[1].Title)
	}
	if got[2].Label != "DFI 277" {
		t.Errorf("dictionary label = %q, want DFI 277", got[2].Label)
	}
	if got[3].Label != "Appendix A" {
		t.Errorf("appendix label = %q, want Appendix A", got[3].Label)
	}
}

func TestContinuedFoldsIntoPrevious(t *testing.T) {
	// WHAT: "J3.2 (Continued)" on a later page extends the open J3.2
	// section instead of starting a second one.
	pages := pagesOf(
		"J3.2 Air Track\nAltitude 0-15",
		"J3.2 Air Track (Continued)\nTrack Status 16-18",
		"J10.2 Engagement\nfields",
	)
	got := Classify(pages)
	msgs := got.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d message sections, want 2: %+v", len(msgs), msgs)
	}
	if msgs[0].Label != "J3.2" || msgs[0].End.Page != 2 {
		t.Errorf("J3.2 section = %+v, want span through page 2", msgs[0])
	}
	if msgs[1].Label != "J10.2" || msgs[1].Start.Page != 3 {
		t.Errorf("J10.2 section = %+v, want start at page 3", msgs[1])
	}
}

func TestSectionsDisjointAndOrdered(t *testing.T) {
	pages := pagesOf(
		"intro",
		"J3.2 Air Track\nbody",
		"J3.3 Surface Track\nbody\nJ3.4 Land Track\nbody",
		"DFI 300 Status",
	)
	got := Classify(pages)
	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		if !prev.Start.Before(cur.Start) {
			t.Errorf("sections out of order: %+v then %+v", prev, cur)
		}
		if cur.Start.Before(prev.End) || cur.Start == prev.End {
			t.Errorf("sections overlap: %+v then %+v", prev, cur)
		}
	}
}

func TestForPage(t *testing.T) {
	pages := pagesOf(
		"J3.2 Air Track\nbody",
		"more body",
		"J10.2 Engagement\nbody",
	)
	got := Classify(pages)
	onTwo := got.ForPage(2)
	if len(onTwo) != 1 || onTwo[0].Label != "J3.2" {
		t.Errorf("ForPage(2) = %+v, want lone J3.2", onTwo)
	}
	onThree := got.ForPage(3)
	if len(onThree) != 1 || onThree[0].Label != "J10.2" {
		t.Errorf("ForPage(3) = %+v, want lone J10.2", onThree)
	}
}

func TestHeadingNotConfusedByBodyText(t *testing.T) {
	// Body prose mentioning a label mid-sentence must not cut a section.
	pages := pagesOf("J3.2 Air Track\nsee also message J3.3 for details\nAltitude 0-15")
	got := Classify(pages)
	if n := len(got.Messages()); n != 1 {
		t.Fatalf("got %d message sections, want 1: %+v", n, got)
	}
}

func TestClassifyEmpty(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Errorf("Classify(nil) = %+v, want nil", got)
	}
}
