package grading

import "testing"

func TestGradeMCQ(t *testing.T) {
	q := Q{Type: TypeMCQ, Points: 2, CorrectChoice: 1}

	if got := Grade(q, 1); got == nil || *got != 2 {
		t.Fatalf("correct choice: got %v, want 2", got)
	}
	if got := Grade(q, 0); got == nil || *got != 0 {
		t.Fatalf("wrong choice: got %v, want 0", got)
	}
	// payload of the wrong kind scores zero, it does not error
	if got := Grade(q, "1"); got == nil || *got != 0 {
		t.Fatalf("string payload: got %v, want 0", got)
	}
	if got := Grade(q, nil); got == nil || *got != 0 {
		t.Fatalf("nil payload: got %v, want 0", got)
	}
}

func TestGradeMCQNoCorrectOption(t *testing.T) {
	q := Q{Type: TypeMCQ, Points: 2, CorrectChoice: -1}
	if got := Grade(q, 0); got == nil || *got != 0 {
		t.Fatalf("got %v, want 0 when no option is flagged correct", got)
	}
}

func TestGradeTrueFalse(t *testing.T) {
	q := Q{Type: TypeTrueFalse, Points: 1, Expected: "true"}
	for _, resp := range []string{"true", "True", "TRUE", "1", " true "} {
		if got := Grade(q, resp); got == nil || *got != 1 {
			t.Fatalf("%q: got %v, want 1", resp, got)
		}
	}
	for _, resp := range []string{"false", "0", "yes", ""} {
		if got := Grade(q, resp); got == nil || *got != 0 {
			t.Fatalf("%q: got %v, want 0", resp, got)
		}
	}
}

func TestGradeFillBlank(t *testing.T) {
	q := Q{Type: TypeFillBlank, Points: 3, Expected: "Mitochondria"}
	cases := map[string]float64{
		"Mitochondria":    3,
		"mitochondria":    3,
		"  MITOCHONDRIA ": 3,
		"mitochondrion":   0,
		"":                0,
	}
	for resp, want := range cases {
		if got := Grade(q, resp); got == nil || *got != want {
			t.Fatalf("%q: got %v, want %v", resp, got, want)
		}
	}
}

func TestGradeShortAnswerComparable(t *testing.T) {
	q := Q{Type: TypeShortAnswer, Points: 5, Expected: "photosynthesis"}
	if got := Grade(q, "Photosynthesis"); got == nil || *got != 5 {
		t.Fatalf("got %v, want 5", got)
	}
	if got := Grade(q, "respiration"); got == nil || *got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}

func TestGradeEssayIsManual(t *testing.T) {
	q := Q{Type: TypeEssay, Points: 10}
	if got := Grade(q, "a long answer"); got != nil {
		t.Fatalf("essay must stay ungraded, got %v", *got)
	}
}

func TestGradeMatchingRawPoints(t *testing.T) {
	q := Q{
		Type:   TypeMatching,
		Points: 10, // nominal value is ignored; each correct pair earns one raw point
		PairKey: map[string]string{
			"H2O": "water",
			"NaCl": "salt",
			"CO2": "carbon dioxide",
		},
	}

	all := []Pairing{
		{Left: "H2O", Right: "water"},
		{Left: "NaCl", Right: "salt"},
		{Left: "CO2", Right: "carbon dioxide"},
	}
	if got := Grade(q, all); got == nil || *got != 3 {
		t.Fatalf("all correct: got %v, want 3", got)
	}

	partial := []Pairing{
		{Left: "H2O", Right: "water"},
		{Left: "NaCl", Right: "carbon dioxide"},
	}
	if got := Grade(q, partial); got == nil || *got != 1 {
		t.Fatalf("partial: got %v, want 1", got)
	}

	unknownLeft := []Pairing{{Left: "O2", Right: "water"}}
	if got := Grade(q, unknownLeft); got == nil || *got != 0 {
		t.Fatalf("unknown left key: got %v, want 0", got)
	}

	if got := Grade(q, "not pairs"); got == nil || *got != 0 {
		t.Fatalf("malformed payload: got %v, want 0", got)
	}
}

func TestGradeMatchingOrderIrrelevant(t *testing.T) {
	q := Q{Type: TypeMatching, PairKey: map[string]string{"a": "1", "b": "2"}}
	rev := []Pairing{{Left: "b", Right: "2"}, {Left: "a", Right: "1"}}
	if got := Grade(q, rev); got == nil || *got != 2 {
		t.Fatalf("got %v, want 2", got)
	}
}

func TestGradeUnknownType(t *testing.T) {
	if got := Grade(Q{Type: "ranking"}, "x"); got != nil {
		t.Fatalf("unknown type must return nil, got %v", *got)
	}
}

func TestIsCorrect(t *testing.T) {
	mcq := Q{Type: TypeMCQ, Points: 2, CorrectChoice: 0}
	if c := IsCorrect(mcq, 0); c == nil || !*c {
		t.Fatalf("mcq correct: got %v", c)
	}
	if c := IsCorrect(mcq, 1); c == nil || *c {
		t.Fatalf("mcq wrong: got %v", c)
	}

	if c := IsCorrect(Q{Type: TypeEssay}, "text"); c != nil {
		t.Fatalf("essay correctness must be nil, got %v", *c)
	}
}

func TestIsCorrectMatchingRequiresAllPairs(t *testing.T) {
	q := Q{Type: TypeMatching, PairKey: map[string]string{"a": "1", "b": "2"}}

	full := []Pairing{{Left: "a", Right: "1"}, {Left: "b", Right: "2"}}
	if c := IsCorrect(q, full); c == nil || !*c {
		t.Fatalf("full match: got %v", c)
	}

	// one right pair out of two is partial credit but not "correct"
	half := []Pairing{{Left: "a", Right: "1"}}
	if c := IsCorrect(q, half); c == nil || *c {
		t.Fatalf("half match: got %v", c)
	}

	// extra wrong pairs also break full correctness
	extra := []Pairing{{Left: "a", Right: "1"}, {Left: "b", Right: "2"}, {Left: "c", Right: "9"}}
	if c := IsCorrect(q, extra); c == nil || *c {
		t.Fatalf("extra pair: got %v", c)
	}
}

func TestNormalizeBool(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"true", "true", true},
		{"True", "true", true},
		{"1", "true", true},
		{" TRUE ", "true", true},
		{"false", "false", true},
		{"0", "false", true},
		{"yes", "", false},
		{"", "", false},
		{"2", "", false},
	}
	for _, c := range cases {
		got, ok := NormalizeBool(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("NormalizeBool(%q) = %q,%v; want %q,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}
