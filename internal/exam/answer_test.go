package exam

import (
	"encoding/json"
	"testing"
)

func TestAnswerRoundTrip(t *testing.T) {
	in := PairsAnswer([]Pair{{Left: "a", Right: "1"}, {Left: "b", Right: "2"}})
	buf, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Answer
	if err := json.Unmarshal(buf, &out); err != nil {
		t.Fatal(err)
	}
	if out.Type != TypeMatching {
		t.Fatalf("type = %q", out.Type)
	}
	pairs, ok := out.PairList()
	if !ok || len(pairs) != 2 || pairs[0].Left != "a" || pairs[1].Right != "2" {
		t.Fatalf("pairs = %v, ok=%v", pairs, ok)
	}
}

func TestAnswerMalformedPayloadSurvives(t *testing.T) {
	// a matching answer whose payload is a bare string: accessors refuse it
	// but the raw bytes survive a round-trip untouched
	raw := []byte(`{"type":"matching","value":"oops"}`)
	var a Answer
	if err := json.Unmarshal(raw, &a); err != nil {
		t.Fatal(err)
	}
	if _, ok := a.PairList(); ok {
		t.Fatal("string payload must not decode as pairs")
	}
	buf, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	var again Answer
	if err := json.Unmarshal(buf, &again); err != nil {
		t.Fatal(err)
	}
	if string(again.Value) != `"oops"` {
		t.Fatalf("payload changed across round-trip: %s", again.Value)
	}
}

func TestAnswerAccessors(t *testing.T) {
	if idx, ok := ChoiceAnswer(2).Choice(); !ok || idx != 2 {
		t.Fatalf("Choice() = %d,%v", idx, ok)
	}
	if s, ok := TextAnswer(TypeEssay, "because").Text(); !ok || s != "because" {
		t.Fatalf("Text() = %q,%v", s, ok)
	}
	if _, ok := TextAnswer(TypeEssay, "x").Choice(); ok {
		t.Fatal("string payload must not decode as a choice index")
	}
}

func TestAnswerEmpty(t *testing.T) {
	if !(Answer{Type: TypeEssay}).Empty() {
		t.Fatal("nil payload should be empty")
	}
	if !(Answer{Type: TypeEssay, Value: json.RawMessage("null")}).Empty() {
		t.Fatal("null payload should be empty")
	}
	if TextAnswer(TypeEssay, "").Empty() {
		t.Fatal(`"" payload is present, not empty`)
	}
}
