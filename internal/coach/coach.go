// Package coach produces the narrative insight payload and the conversational
// situation coaching. Both lean on the oracle and degrade to fixed supportive
// content when it yields nothing.
package coach

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kindredwell/kindred/internal/oracle"
)

const (
	insightPersona = "You are Kindred, warm and non-clinical. Focus on self-comparison, not external benchmarking."

	insightMaxTokens  = 320
	simulateMaxTokens = 300

	microInsightCount = 5
	microInsightPad   = "Small consistent steps are helping your confidence arc."

	defaultWeeklyAction = "Choose one relational moment this week and stay present 60 seconds longer."

	fallbackNarrative    = "You are growing in meaningful ways, and your progress is best measured against your own past."
	fallbackMicroInsight = "Keep building consistency in small daily moments."
	fallbackWeeklyAction = "Choose one relational moment this week and practice staying present for 60 seconds longer."

	fallbackCoachingLine = "I hear you. Let's break this down into one small, doable step for today."

	defaultDial = 50
)

// Completer is the oracle surface the coach needs. Simulate carries the whole
// conversation, so it needs the multi-turn form.
type Completer interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) string
	CompleteConversation(ctx context.Context, system string, turns []oracle.Turn, maxTokens int) string
}

// Score is one dimension score as submitted by the client.
type Score struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Value float64 `json:"score"`
}

// Insight is the self-comparison narrative for the latest assessment.
type Insight struct {
	NarrativeSummary string   `json:"narrative_summary"`
	MicroInsights    []string `json:"dimension_micro_insights"`
	WeeklyAction     string   `json:"weekly_action"`
}

// SimulateRequest is one turn of situation coaching. Style dials run 0-100
// and default to the midpoint when unset.
type SimulateRequest struct {
	Situation     string        `json:"situation"`
	Scores        []Score       `json:"scores"`
	Messages      []oracle.Turn `json:"messages"`
	SupportStyle  *int          `json:"support_style"`
	ResponseDepth *int          `json:"response_depth"`
}

// Coach runs the insight and simulation prompts.
type Coach struct {
	oracle Completer
}

// NewCoach creates a Coach.
func NewCoach(completer Completer) *Coach {
	return &Coach{oracle: completer}
}

// Insight asks the oracle for a strict-JSON narrative over the current scores
// and their deltas against the previous assessment. The micro insight list is
// normalized to exactly five entries; a dimension missing from the previous
// scores reads as unchanged.
func (c *Coach) Insight(ctx context.Context, scores []Score, previous map[string]float64) Insight {
	var scoreLines, deltaLines []string
	for _, s := range scores {
		scoreLines = append(scoreLines, fmt.Sprintf("- %s: %s/5", s.Label, formatScore(s.Value)))
		prev, ok := previous[s.ID]
		if !ok {
			prev = s.Value
		}
		deltaLines = append(deltaLines, fmt.Sprintf("- %s change: %s", s.ID, formatScore(round2(s.Value-prev))))
	}

	prompt := fmt.Sprintf(
		"Current scores:\n%s\n\nRecent self-comparison deltas:\n%s\n\n"+
			"Return strict JSON with keys: narrative_summary(string), dimension_micro_insights(array of 5 strings), weekly_action(string).",
		strings.Join(scoreLines, "\n"), strings.Join(deltaLines, "\n"),
	)
	raw := c.oracle.Complete(ctx, insightPersona, prompt, insightMaxTokens)
	parsed := oracle.ExtractObject(raw)

	narrative := oracle.StringField(parsed, "narrative_summary")
	if narrative == "" {
		return fallbackInsight()
	}

	micro := oracle.StringListField(parsed, "dimension_micro_insights")
	for len(micro) < microInsightCount {
		micro = append(micro, microInsightPad)
	}
	action := oracle.StringField(parsed, "weekly_action")
	if action == "" {
		action = defaultWeeklyAction
	}
	return Insight{
		NarrativeSummary: narrative,
		MicroInsights:    micro[:microInsightCount],
		WeeklyAction:     action,
	}
}

func fallbackInsight() Insight {
	micro := make([]string, microInsightCount)
	for i := range micro {
		micro[i] = fallbackMicroInsight
	}
	return Insight{
		NarrativeSummary: fallbackNarrative,
		MicroInsights:    micro,
		WeeklyAction:     fallbackWeeklyAction,
	}
}

// Simulate runs one coaching turn: the persona embeds the anxiety profile,
// the situation, and the style dials, and the full message history rides
// along. An empty completion becomes a fixed supportive line.
func (c *Coach) Simulate(ctx context.Context, req SimulateRequest) string {
	var scoreLines []string
	for _, s := range req.Scores {
		scoreLines = append(scoreLines, fmt.Sprintf("- %s: %s/5", s.Label, formatScore(s.Value)))
	}

	system := fmt.Sprintf(
		"You are Kindred, a warm and supportive social anxiety coach."+
			" Support style=%d/100. Response depth=%d/100.\n"+
			"The user's anxiety profile:\n%s\n"+
			"Situation: %s\n"+
			"Give practical, validating coaching. Never provide clinical diagnosis.",
		dial(req.SupportStyle), dial(req.ResponseDepth),
		strings.Join(scoreLines, "\n"), req.Situation,
	)

	if reply := c.oracle.CompleteConversation(ctx, system, req.Messages, simulateMaxTokens); reply != "" {
		return reply
	}
	return fallbackCoachingLine
}

func dial(v *int) int {
	if v == nil {
		return defaultDial
	}
	return *v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
