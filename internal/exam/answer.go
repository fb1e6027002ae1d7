package exam

import (
	"encoding/json"
	"strings"
)

// Answer is the polymorphic student answer: an option index for mcq, a string
// for truefalse/fill_blank/short_answer/essay, a pair list for matching. The
// payload is kept as raw JSON so the exact shape survives a round-trip even
// when it is malformed for the declared type; typed accessors decode on
// demand and report whether the payload fits.
type Answer struct {
	Type  ItemType
	Value json.RawMessage
}

type answerEnvelope struct {
	Type  ItemType        `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (a Answer) MarshalJSON() ([]byte, error) {
	v := a.Value
	if v == nil {
		v = json.RawMessage("null")
	}
	return json.Marshal(answerEnvelope{Type: a.Type, Value: v})
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var env answerEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	a.Type = env.Type
	a.Value = env.Value
	return nil
}

// ChoiceAnswer builds an mcq answer holding an option index.
func ChoiceAnswer(index int) Answer {
	raw, _ := json.Marshal(index)
	return Answer{Type: TypeMCQ, Value: raw}
}

// TextAnswer builds a string-valued answer for the given type.
func TextAnswer(t ItemType, text string) Answer {
	raw, _ := json.Marshal(text)
	return Answer{Type: t, Value: raw}
}

// PairsAnswer builds a matching answer from submitted left/right pairs.
func PairsAnswer(pairs []Pair) Answer {
	raw, _ := json.Marshal(pairs)
	return Answer{Type: TypeMatching, Value: raw}
}

// Empty reports whether no payload was submitted at all.
func (a Answer) Empty() bool {
	s := strings.TrimSpace(string(a.Value))
	return s == "" || s == "null"
}

// Choice decodes the payload as an option index.
func (a Answer) Choice() (int, bool) {
	var i int
	if err := json.Unmarshal(a.Value, &i); err != nil {
		return 0, false
	}
	return i, true
}

// Text decodes the payload as a string.
func (a Answer) Text() (string, bool) {
	var s string
	if err := json.Unmarshal(a.Value, &s); err != nil {
		return "", false
	}
	return s, true
}

// PairList decodes the payload as matching pairs. Malformed payloads return
// ok=false; callers score those as zero rather than erroring.
func (a Answer) PairList() ([]Pair, bool) {
	var pairs []Pair
	if err := json.Unmarshal(a.Value, &pairs); err != nil {
		return nil, false
	}
	return pairs, true
}
