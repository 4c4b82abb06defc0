package coach

import (
	"context"
	"strings"
	"testing"

	"github.com/kindredwell/kindred/internal/oracle"
)

type scriptedOracle struct {
	reply      string
	lastSystem string
	lastPrompt string
	lastTurns  []oracle.Turn
}

func (o *scriptedOracle) Complete(ctx context.Context, system, prompt string, maxTokens int) string {
	o.lastSystem = system
	o.lastPrompt = prompt
	return o.reply
}

func (o *scriptedOracle) CompleteConversation(ctx context.Context, system string, turns []oracle.Turn, maxTokens int) string {
	o.lastSystem = system
	o.lastTurns = turns
	return o.reply
}

var sampleScores = []Score{
	{ID: "anxiety", Label: "Anxiety", Value: 2},
	{ID: "emotional", Label: "Emotional", Value: 3.5},
}

func TestInsight_OraclePayload(t *testing.T) {
	o := &scriptedOracle{reply: `{
		"narrative_summary": "steady week",
		"dimension_micro_insights": ["a", "b"],
		"weekly_action": "call a friend"
	}`}
	c := NewCoach(o)

	got := c.Insight(context.Background(), sampleScores, map[string]float64{"anxiety": 3})

	if got.NarrativeSummary != "steady week" {
		t.Errorf("narrative = %q", got.NarrativeSummary)
	}
	if got.WeeklyAction != "call a friend" {
		t.Errorf("weekly action = %q", got.WeeklyAction)
	}
	// Short lists pad out to exactly five entries.
	if len(got.MicroInsights) != 5 {
		t.Fatalf("micro insights = %d entries, want 5", len(got.MicroInsights))
	}
	if got.MicroInsights[0] != "a" || got.MicroInsights[1] != "b" || got.MicroInsights[2] != microInsightPad {
		t.Errorf("micro insights = %v", got.MicroInsights)
	}

	// The prompt carries scores and self-comparison deltas.
	if !strings.Contains(o.lastPrompt, "- Anxiety: 2/5") {
		t.Errorf("prompt missing score line: %q", o.lastPrompt)
	}
	if !strings.Contains(o.lastPrompt, "- anxiety change: -1") {
		t.Errorf("prompt missing delta line: %q", o.lastPrompt)
	}
	// A dimension absent from the previous scores reads as unchanged.
	if !strings.Contains(o.lastPrompt, "- emotional change: 0") {
		t.Errorf("prompt missing zero delta for new dimension: %q", o.lastPrompt)
	}
}

func TestInsight_LongListTruncated(t *testing.T) {
	o := &scriptedOracle{reply: `{"narrative_summary":"s","dimension_micro_insights":["1","2","3","4","5","6","7"]}`}
	got := NewCoach(o).Insight(context.Background(), sampleScores, nil)
	if len(got.MicroInsights) != 5 || got.MicroInsights[4] != "5" {
		t.Errorf("micro insights = %v, want first five", got.MicroInsights)
	}
	if got.WeeklyAction != defaultWeeklyAction {
		t.Errorf("weekly action = %q, want default", got.WeeklyAction)
	}
}

func TestInsight_FallbackOnEmptyCompletion(t *testing.T) {
	got := NewCoach(&scriptedOracle{reply: ""}).Insight(context.Background(), sampleScores, nil)
	if got.NarrativeSummary != fallbackNarrative {
		t.Errorf("narrative = %q, want fallback", got.NarrativeSummary)
	}
	if len(got.MicroInsights) != 5 {
		t.Fatalf("micro insights = %d entries, want 5", len(got.MicroInsights))
	}
	for _, m := range got.MicroInsights {
		if m != fallbackMicroInsight {
			t.Errorf("micro insight = %q, want fallback", m)
		}
	}
	if got.WeeklyAction != fallbackWeeklyAction {
		t.Errorf("weekly action = %q, want fallback", got.WeeklyAction)
	}
}

func TestInsight_MissingNarrativeTriggersFallback(t *testing.T) {
	o := &scriptedOracle{reply: `{"weekly_action":"something"}`}
	got := NewCoach(o).Insight(context.Background(), sampleScores, nil)
	if got.NarrativeSummary != fallbackNarrative {
		t.Error("payload without a narrative should fall back entirely")
	}
}

func TestSimulate(t *testing.T) {
	o := &scriptedOracle{reply: "try naming the fear out loud"}
	c := NewCoach(o)

	depth := 80
	got := c.Simulate(context.Background(), SimulateRequest{
		Situation:     "team meeting tomorrow",
		Scores:        sampleScores,
		Messages:      []oracle.Turn{{Role: "user", Content: "I'm dreading it"}},
		ResponseDepth: &depth,
	})

	if got != "try naming the fear out loud" {
		t.Errorf("Simulate = %q", got)
	}
	if !strings.Contains(o.lastSystem, "Support style=50/100") {
		t.Errorf("system missing default support dial: %q", o.lastSystem)
	}
	if !strings.Contains(o.lastSystem, "Response depth=80/100") {
		t.Errorf("system missing explicit depth dial: %q", o.lastSystem)
	}
	if !strings.Contains(o.lastSystem, "Situation: team meeting tomorrow") {
		t.Errorf("system missing situation: %q", o.lastSystem)
	}
	if len(o.lastTurns) != 1 || o.lastTurns[0].Content != "I'm dreading it" {
		t.Errorf("turns = %+v, want conversation forwarded", o.lastTurns)
	}
}

func TestSimulate_FallbackOnEmptyCompletion(t *testing.T) {
	got := NewCoach(&scriptedOracle{reply: ""}).Simulate(context.Background(), SimulateRequest{Situation: "x"})
	if got != fallbackCoachingLine {
		t.Errorf("Simulate = %q, want fallback line", got)
	}
}
