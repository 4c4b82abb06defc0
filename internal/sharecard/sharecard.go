// Package sharecard renders the story-sized streak card as inline SVG.
package sharecard

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// maxMicroRunes caps the challenge line so it fits the card width.
const maxMicroRunes = 72

// defaultMicro fills in when the user has no challenge generated today.
const defaultMicro = "Show up for one courageous moment today."

// Render produces a 1080x1920 share card showing the current streak and
// today's micro-challenge. An empty micro falls back to a stock line.
func Render(streakDays int, micro string) string {
	if micro == "" {
		micro = defaultMicro
	}
	if runes := []rune(micro); len(runes) > maxMicroRunes {
		micro = string(runes[:maxMicroRunes])
	}
	micro = escapeText(micro)

	var b strings.Builder
	b.WriteString("<svg xmlns='http://www.w3.org/2000/svg' width='1080' height='1920'>\n")
	b.WriteString("<defs><linearGradient id='g' x1='0%' y1='0%' x2='100%' y2='100%'><stop offset='0%' stop-color='#0B1020'/><stop offset='100%' stop-color='#1B2A6B'/></linearGradient></defs>\n")
	b.WriteString("<rect width='100%' height='100%' fill='url(#g)'/>\n")
	b.WriteString("<text x='72' y='170' fill='#A5B4FC' font-size='42' font-family='Arial'>Kindred Daily Streak</text>\n")
	fmt.Fprintf(&b, "<text x='72' y='340' fill='white' font-size='120' font-family='Arial' font-weight='700'>%d days</text>\n", streakDays)
	b.WriteString("<rect x='72' y='430' width='936' height='2' fill='#374151'/>\n")
	b.WriteString("<text x='72' y='520' fill='#E5E7EB' font-size='48' font-family='Arial'>Today&apos;s challenge:</text>\n")
	fmt.Fprintf(&b, "<text x='72' y='610' fill='white' font-size='52' font-family='Arial'>%s</text>\n", micro)
	b.WriteString("<text x='72' y='1830' fill='#9CA3AF' font-size='34' font-family='Arial'>#Kindred #ConfidenceArc</text>\n")
	b.WriteString("</svg>")
	return b.String()
}

func escapeText(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
