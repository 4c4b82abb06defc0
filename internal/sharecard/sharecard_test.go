package sharecard

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	svg := Render(7, "Text one person you appreciate")

	if !strings.HasPrefix(svg, "<svg ") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatal("output is not a complete SVG document")
	}
	if !strings.Contains(svg, ">7 days<") {
		t.Error("streak count missing from card")
	}
	if !strings.Contains(svg, "Text one person you appreciate") {
		t.Error("micro-challenge missing from card")
	}
	if !strings.Contains(svg, "width='1080' height='1920'") {
		t.Error("card is not story-sized")
	}
}

func TestRender_DefaultMicro(t *testing.T) {
	svg := Render(0, "")
	if !strings.Contains(svg, defaultMicro) {
		t.Error("empty micro should use the stock line")
	}
	if !strings.Contains(svg, ">0 days<") {
		t.Error("zero streak should still render")
	}
}

func TestRender_TruncatesLongMicro(t *testing.T) {
	long := strings.Repeat("é", 100)
	svg := Render(1, long)
	if strings.Contains(svg, long) {
		t.Error("micro longer than the card width was not truncated")
	}
	if !strings.Contains(svg, strings.Repeat("é", maxMicroRunes)) {
		t.Error("truncation should keep the first 72 runes intact")
	}
}

func TestRender_EscapesMarkup(t *testing.T) {
	svg := Render(1, "do <this> & that")
	if strings.Contains(svg, "<this>") {
		t.Error("markup in the micro-challenge must be escaped")
	}
	if !strings.Contains(svg, "do &lt;this&gt; &amp; that") {
		t.Errorf("escaped text missing: %s", svg)
	}
}
