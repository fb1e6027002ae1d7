package grading

import "strings"

// Question types, mirrored from the exam model.
const (
	TypeMCQ         = "mcq"
	TypeTrueFalse   = "truefalse"
	TypeFillBlank   = "fill_blank"
	TypeShortAnswer = "short_answer"
	TypeEssay       = "essay"
	TypeMatching    = "matching"
)

// Q is a minimal view of an item needed for comparison. The store layer maps
// its own item type onto this.
type Q struct {
	Type          string
	Points        int
	CorrectChoice int               // mcq: index of the first correct option, -1 when absent
	Expected      string            // truefalse canonical "true"/"false", fill_blank/short_answer expected text
	PairKey       map[string]string // matching: left key -> canonical right value
}

// Pairing is one submitted left/right matching pair.
type Pairing struct {
	Left  string
	Right string
}

// Grade compares a student response against q and returns the earned points,
// or nil when the item requires manual grading (essay). Responses are one of
// int (mcq), string (text types) or []Pairing (matching); anything else
// scores zero for auto-gradable types.
//
// Matching awards one raw point per correct pair, not a share of the item's
// nominal point value. That mirrors the system this replaces; see DESIGN.md.
func Grade(q Q, response interface{}) *float64 {
	switch q.Type {
	case TypeMCQ:
		idx, ok := response.(int)
		if ok && q.CorrectChoice >= 0 && idx == q.CorrectChoice {
			return points(float64(q.Points))
		}
		return points(0)

	case TypeTrueFalse:
		s, _ := response.(string)
		student, ok := NormalizeBool(s)
		if ok && student == q.Expected {
			return points(float64(q.Points))
		}
		return points(0)

	case TypeFillBlank, TypeShortAnswer:
		s, _ := response.(string)
		if foldEqual(s, q.Expected) {
			return points(float64(q.Points))
		}
		return points(0)

	case TypeMatching:
		pairs, ok := response.([]Pairing)
		if !ok {
			return points(0)
		}
		return points(float64(correctPairs(q.PairKey, pairs)))

	case TypeEssay:
		return nil

	default:
		return nil
	}
}

// IsCorrect reports full correctness of a response, or nil when that cannot
// be determined automatically (essay, unknown types). For matching it is true
// only when every canonical pair was answered and answered right.
func IsCorrect(q Q, response interface{}) *bool {
	switch q.Type {
	case TypeMatching:
		pairs, ok := response.([]Pairing)
		if !ok {
			return boolPtr(false)
		}
		n := correctPairs(q.PairKey, pairs)
		return boolPtr(n == len(q.PairKey) && n == len(pairs))
	case TypeEssay:
		return nil
	default:
		earned := Grade(q, response)
		if earned == nil {
			return nil
		}
		return boolPtr(*earned > 0 || q.Points == 0)
	}
}

// correctPairs counts submitted pairs whose right value matches the canonical
// right value for their left key. Order is irrelevant.
func correctPairs(key map[string]string, pairs []Pairing) int {
	n := 0
	for _, p := range pairs {
		want, ok := key[p.Left]
		if ok && p.Right == want {
			n++
		}
	}
	return n
}

// NormalizeBool canonicalizes accepted true/false spellings to the strings
// "true" and "false".
func NormalizeBool(v string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1":
		return "true", true
	case "false", "0":
		return "false", true
	}
	return "", false
}

func foldEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func points(v float64) *float64 { return &v }

func boolPtr(b bool) *bool { return &b }
