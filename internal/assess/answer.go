package assess

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AnswerKind tags the union of answer shapes a question can take.
type AnswerKind int

const (
	AnswerNone AnswerKind = iota
	AnswerOption
	AnswerOptions
	AnswerText
	AnswerNumber
	AnswerDate
)

// Answer is the polymorphic value a learner records for one question:
// a selected option id, a set of option ids, free text, a number, or a
// date string. The zero value means "not answered".
type Answer struct {
	kind    AnswerKind
	option  string
	options []string
	text    string
	number  float64
}

func OptionAnswer(optionID string) Answer { return Answer{kind: AnswerOption, option: optionID} }

func OptionsAnswer(optionIDs ...string) Answer {
	cp := make([]string, len(optionIDs))
	copy(cp, optionIDs)
	return Answer{kind: AnswerOptions, options: cp}
}

func TextAnswer(text string) Answer     { return Answer{kind: AnswerText, text: text} }
func NumberAnswer(n float64) Answer     { return Answer{kind: AnswerNumber, number: n} }
func DateAnswer(isoDate string) Answer  { return Answer{kind: AnswerDate, text: isoDate} }

func (a Answer) Kind() AnswerKind { return a.kind }

func (a Answer) Option() string { return a.option }

// Options returns a copy; callers cannot mutate the stored answer.
func (a Answer) Options() []string {
	cp := make([]string, len(a.options))
	copy(cp, a.options)
	return cp
}

func (a Answer) Text() string    { return a.text }
func (a Answer) Number() float64 { return a.number }

// IsEmpty reports whether the answer counts as "not answered" for
// completeness checks: unset, blank text, or an empty option set.
func (a Answer) IsEmpty() bool {
	switch a.kind {
	case AnswerNone:
		return true
	case AnswerOption:
		return a.option == ""
	case AnswerOptions:
		return len(a.options) == 0
	case AnswerText, AnswerDate:
		return strings.TrimSpace(a.text) == ""
	default:
		return false
	}
}

// Equal compares two answers by value. Option sets compare order-sensitively:
// the tracker stores selections in the order the learner made them.
func (a Answer) Equal(b Answer) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case AnswerOptions:
		if len(a.options) != len(b.options) {
			return false
		}
		for i := range a.options {
			if a.options[i] != b.options[i] {
				return false
			}
		}
		return true
	default:
		return a.option == b.option && a.text == b.text && a.number == b.number
	}
}

// MarshalJSON emits the bare wire value: "opt-1", ["a","b"], 42, or "2026-05-01".
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case AnswerNone:
		return []byte("null"), nil
	case AnswerOption:
		return json.Marshal(a.option)
	case AnswerOptions:
		return json.Marshal(a.options)
	case AnswerText, AnswerDate:
		return json.Marshal(a.text)
	case AnswerNumber:
		return json.Marshal(a.number)
	}
	return nil, fmt.Errorf("answer: unknown kind %d", a.kind)
}

// UnmarshalJSON accepts the bare wire value. Strings come back as text
// answers; question type decides how they are interpreted downstream.
func (a *Answer) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` {
		*a = Answer{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = TextAnswer(s)
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*a = OptionsAnswer(arr...)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*a = NumberAnswer(n)
		return nil
	}
	return fmt.Errorf("answer: unsupported wire value %s", trimmed)
}

// Strings flattens the answer to the string form the grading strategies
// compare against answer keys.
func (a Answer) Strings() []string {
	switch a.kind {
	case AnswerOption:
		return []string{a.option}
	case AnswerOptions:
		return a.Options()
	case AnswerText, AnswerDate:
		return []string{a.text}
	case AnswerNumber:
		return []string{trimFloat(a.number)}
	}
	return nil
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}
