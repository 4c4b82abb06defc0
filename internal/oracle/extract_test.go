package oracle

import "testing"

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantKey string
		wantVal string
		wantNil bool
	}{
		{"direct JSON", `{"affirmation":"breathe"}`, "affirmation", "breathe", false},
		{"fenced JSON", "Here you go:\n```json\n{\"affirmation\":\"breathe\"}\n```", "affirmation", "breathe", false},
		{"prose around braces", "Sure! {\"affirmation\":\"breathe\"} Hope that helps.", "affirmation", "breathe", false},
		{"empty input", "", "", "", true},
		{"no braces", "I cannot produce JSON today.", "", "", true},
		{"broken braces", "{\"affirmation\": oops", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractObject(tt.text)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("ExtractObject = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("ExtractObject = nil, want object")
			}
			if got[tt.wantKey] != tt.wantVal {
				t.Errorf("obj[%q] = %v, want %q", tt.wantKey, got[tt.wantKey], tt.wantVal)
			}
		})
	}
}

func TestStringField(t *testing.T) {
	obj := map[string]any{"a": "  text  ", "b": "", "c": 7}

	if got := StringField(obj, "a"); got != "text" {
		t.Errorf("trimmed field = %q, want %q", got, "text")
	}
	if got := StringField(obj, "b"); got != "" {
		t.Errorf("empty field = %q, want empty", got)
	}
	if got := StringField(obj, "c"); got != "" {
		t.Errorf("non-string field = %q, want empty", got)
	}
	if got := StringField(nil, "a"); got != "" {
		t.Errorf("nil object = %q, want empty", got)
	}
}

func TestIntField(t *testing.T) {
	tests := []struct {
		name string
		obj  map[string]any
		want int
	}{
		{"number", map[string]any{"difficulty": float64(4)}, 4},
		{"numeric string", map[string]any{"difficulty": "3"}, 3},
		{"float string", map[string]any{"difficulty": "3.7"}, 3},
		{"non-numeric string", map[string]any{"difficulty": "abc"}, 2},
		{"missing", map[string]any{}, 2},
		{"nil object", nil, 2},
		{"wrong type", map[string]any{"difficulty": []any{1}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IntField(tt.obj, "difficulty", 2); got != tt.want {
				t.Errorf("IntField = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStringListField(t *testing.T) {
	obj := map[string]any{
		"insights": []any{"one", 2, "three", ""},
		"scalar":   "not a list",
	}

	got := StringListField(obj, "insights")
	if len(got) != 2 || got[0] != "one" || got[1] != "three" {
		t.Errorf("StringListField = %v, want [one three]", got)
	}
	if StringListField(obj, "scalar") != nil {
		t.Error("scalar field should yield nil")
	}
	if StringListField(obj, "missing") != nil {
		t.Error("missing field should yield nil")
	}
}
