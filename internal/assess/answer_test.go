package assess

import (
	"encoding/json"
	"testing"
)

func TestAnswerWireForms(t *testing.T) {
	tests := []struct {
		name string
		ans  Answer
		wire string
	}{
		{"option", OptionAnswer("opt-1"), `"opt-1"`},
		{"options", OptionsAnswer("a", "b"), `["a","b"]`},
		{"text", TextAnswer("hello"), `"hello"`},
		{"number", NumberAnswer(42), `42`},
		{"date", DateAnswer("2026-05-01"), `"2026-05-01"`},
		{"unanswered", Answer{}, `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.ans)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(got) != tt.wire {
				t.Fatalf("wire = %s, want %s", got, tt.wire)
			}
		})
	}
}

func TestAnswerUnmarshalIsBare(t *testing.T) {
	// Strings come back as text; question type decides the interpretation.
	var a Answer
	if err := json.Unmarshal([]byte(`"opt-1"`), &a); err != nil {
		t.Fatal(err)
	}
	if a.Kind() != AnswerText || a.Text() != "opt-1" {
		t.Fatalf("got %v %q", a.Kind(), a.Text())
	}

	if err := json.Unmarshal([]byte(`["a","b"]`), &a); err != nil {
		t.Fatal(err)
	}
	if a.Kind() != AnswerOptions || len(a.Options()) != 2 {
		t.Fatalf("got %v %v", a.Kind(), a.Options())
	}

	if err := json.Unmarshal([]byte(`3.5`), &a); err != nil {
		t.Fatal(err)
	}
	if a.Kind() != AnswerNumber || a.Number() != 3.5 {
		t.Fatalf("got %v %v", a.Kind(), a.Number())
	}

	if err := json.Unmarshal([]byte(`null`), &a); err != nil {
		t.Fatal(err)
	}
	if !a.IsEmpty() {
		t.Fatal("null should decode as unanswered")
	}
}

func TestAnswerIsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		ans   Answer
		empty bool
	}{
		{"zero value", Answer{}, true},
		{"blank text", TextAnswer("   "), true},
		{"no selections", OptionsAnswer(), true},
		{"zero number counts as answered", NumberAnswer(0), false},
		{"real text", TextAnswer("x"), false},
		{"one selection", OptionsAnswer("a"), false},
	}
	for _, tt := range tests {
		if got := tt.ans.IsEmpty(); got != tt.empty {
			t.Errorf("%s: IsEmpty = %v, want %v", tt.name, got, tt.empty)
		}
	}
}

func TestAnswerEqualIsOrderSensitive(t *testing.T) {
	if !OptionsAnswer("a", "b").Equal(OptionsAnswer("a", "b")) {
		t.Fatal("identical selections must compare equal")
	}
	if OptionsAnswer("a", "b").Equal(OptionsAnswer("b", "a")) {
		t.Fatal("selection order is part of the value")
	}
	if TextAnswer("42").Equal(NumberAnswer(42)) {
		t.Fatal("kinds must match")
	}
}
