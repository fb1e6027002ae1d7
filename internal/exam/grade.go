package exam

import "github.com/examhall/examhall/internal/grading"

// AutoGradable reports whether the system grades this type without a teacher.
// short_answer is comparable but treated conservatively as manual, so it is
// excluded here and gated by the finalize precondition instead.
func AutoGradable(t ItemType) bool {
	switch t {
	case TypeMCQ, TypeTrueFalse, TypeFillBlank, TypeMatching:
		return true
	}
	return false
}

// ManualType reports whether a teacher-entered score is required.
func ManualType(t ItemType) bool {
	return t == TypeEssay || t == TypeShortAnswer
}

// Grade computes the earned points for one answer to one item, or nil when
// the item needs manual grading.
func Grade(it Item, ans Answer) *float64 {
	return grading.Grade(qview(it), response(it, ans))
}

// IsCorrect reports full correctness, or nil when undeterminable.
func IsCorrect(it Item, ans Answer) *bool {
	return grading.IsCorrect(qview(it), response(it, ans))
}

// RecalculateTotal is the score aggregator: sum of points_earned with nil
// (ungraded) contributing zero. Idempotent; always a full recompute.
func RecalculateTotal(answers []TakenAnswer) float64 {
	total := 0.0
	for _, a := range answers {
		if a.PointsEarned != nil {
			total += *a.PointsEarned
		}
	}
	return total
}

// CountUngradedManual counts essay/short_answer answers still missing a
// teacher score. Finalization is rejected while this is non-zero.
func CountUngradedManual(items map[string]Item, answers []TakenAnswer) int {
	n := 0
	for _, a := range answers {
		it, ok := items[a.ItemID]
		if ok && ManualType(it.Type) && a.PointsEarned == nil {
			n++
		}
	}
	return n
}

// AutoGradePass grades every auto-gradable answer that has no score yet and
// returns itemID -> earned points. Manual items and already-graded rows are
// left alone.
func AutoGradePass(items map[string]Item, answers []TakenAnswer) map[string]float64 {
	out := make(map[string]float64)
	for _, a := range answers {
		if a.PointsEarned != nil {
			continue
		}
		it, ok := items[a.ItemID]
		if !ok || !AutoGradable(it.Type) {
			continue
		}
		if earned := Grade(it, a.Value); earned != nil {
			out[a.ItemID] = *earned
		}
	}
	return out
}

// ItemIndex keys items by ID for grading passes.
func ItemIndex(items []Item) map[string]Item {
	m := make(map[string]Item, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return m
}

func qview(it Item) grading.Q {
	q := grading.Q{
		Type:          string(it.Type),
		Points:        it.Points,
		CorrectChoice: -1,
	}
	switch it.Type {
	case TypeMCQ:
		for i, o := range it.Options {
			if o.Correct {
				q.CorrectChoice = i
				break
			}
		}
	case TypeTrueFalse:
		q.Expected, _ = grading.NormalizeBool(it.ExpectedAnswer)
	case TypeFillBlank, TypeShortAnswer:
		q.Expected = it.ExpectedAnswer
	case TypeMatching:
		q.PairKey = make(map[string]string, len(it.Pairs))
		for _, p := range it.Pairs {
			q.PairKey[p.Left] = p.Right
		}
	}
	return q
}

// response decodes the stored answer payload into what the comparator
// expects. Payloads that do not fit the item's type decode to nil, which the
// comparator scores as zero for auto-gradable types.
func response(it Item, ans Answer) interface{} {
	switch it.Type {
	case TypeMCQ:
		if idx, ok := ans.Choice(); ok {
			return idx
		}
	case TypeTrueFalse, TypeFillBlank, TypeShortAnswer, TypeEssay:
		if s, ok := ans.Text(); ok {
			return s
		}
	case TypeMatching:
		if pairs, ok := ans.PairList(); ok {
			out := make([]grading.Pairing, len(pairs))
			for i, p := range pairs {
				out[i] = grading.Pairing{Left: p.Left, Right: p.Right}
			}
			return out
		}
	}
	return nil
}
