package exam

import "testing"

func TestItemValidatePerType(t *testing.T) {
	cases := []struct {
		name string
		item Item
		ok   bool
	}{
		{"mcq without options", Item{Type: TypeMCQ, Question: "q", Points: 1}, false},
		{"mcq without a correct flag", Item{Type: TypeMCQ, Question: "q", Points: 1,
			Options: []Option{{Text: "a"}, {Text: "b"}}}, false},
		{"mcq valid", Item{Type: TypeMCQ, Question: "q", Points: 1,
			Options: []Option{{Text: "a", Correct: true}}}, true},
		{"truefalse bad expected", Item{Type: TypeTrueFalse, Question: "q", Points: 1,
			ExpectedAnswer: "maybe"}, false},
		{"truefalse numeric expected", Item{Type: TypeTrueFalse, Question: "q", Points: 1,
			ExpectedAnswer: "0"}, true},
		{"fill_blank without expected", Item{Type: TypeFillBlank, Question: "q", Points: 1}, false},
		{"matching without pairs", Item{Type: TypeMatching, Question: "q", Points: 1}, false},
		{"matching incomplete pair", Item{Type: TypeMatching, Question: "q", Points: 1,
			Pairs: []Pair{{Left: "a"}}}, false},
		{"essay without rubric", Item{Type: TypeEssay, Question: "q", Points: 5}, true},
		{"zero points", Item{Type: TypeEssay, Question: "q", Points: 0}, false},
		{"missing question", Item{Type: TypeEssay, Points: 5}, false},
		{"unknown type", Item{Type: "ranking", Question: "q", Points: 1}, false},
	}
	for _, c := range cases {
		err := c.item.Validate()
		if c.ok && err != nil {
			t.Errorf("%s: unexpected %v", c.name, err)
		}
		if !c.ok && err == nil {
			t.Errorf("%s: expected a validation error", c.name)
		}
	}
}

func TestItemNormalizeClearsForeignFields(t *testing.T) {
	it := Item{
		Type:           TypeMCQ,
		Question:       "q",
		Points:         1,
		Options:        []Option{{Text: "a", Correct: true}},
		ExpectedAnswer: "leftover",
		Pairs:          []Pair{{Left: "x", Right: "y"}},
	}
	it.Normalize()
	if it.ExpectedAnswer != "" || it.Pairs != nil {
		t.Fatalf("mcq kept foreign fields: %+v", it)
	}

	tf := Item{Type: TypeTrueFalse, Question: "q", Points: 1, ExpectedAnswer: "True"}
	tf.Normalize()
	if tf.ExpectedAnswer != "true" {
		t.Fatalf("truefalse expected = %q, want canonical \"true\"", tf.ExpectedAnswer)
	}
}

func TestExamValidate(t *testing.T) {
	if err := (&Exam{Title: "t", StartsAt: 10, EndsAt: 10}).Validate(); err == nil {
		t.Fatal("ends_at == starts_at must fail")
	}
	if err := (&Exam{StartsAt: 1, EndsAt: 2}).Validate(); err == nil {
		t.Fatal("missing title must fail")
	}
	if err := (&Exam{Title: "t", StartsAt: 1, EndsAt: 2}).Validate(); err != nil {
		t.Fatalf("valid exam rejected: %v", err)
	}
}

func TestEligibleFor(t *testing.T) {
	e := Exam{Years: []string{"2026"}, Sections: []string{"A"}}
	if !e.EligibleFor("2026", "A") {
		t.Fatal("matching year and section must be eligible")
	}
	if e.EligibleFor("2026", "B") || e.EligibleFor("2025", "A") {
		t.Fatal("mismatch must be ineligible")
	}
	open := Exam{}
	if !open.EligibleFor("anything", "at all") {
		t.Fatal("empty sets admit everyone")
	}
}
