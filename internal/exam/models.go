package exam

import (
	"encoding/json"

	"github.com/examhall/examhall/internal/grading"
)

// ItemType is the question type of an exam item. It decides which correctness
// field is populated and how answers are compared.
type ItemType string

const (
	TypeMCQ         ItemType = "mcq"
	TypeTrueFalse   ItemType = "truefalse"
	TypeFillBlank   ItemType = "fill_blank"
	TypeShortAnswer ItemType = "short_answer"
	TypeEssay       ItemType = "essay"
	TypeMatching    ItemType = "matching"
)

func (t ItemType) Valid() bool {
	switch t {
	case TypeMCQ, TypeTrueFalse, TypeFillBlank, TypeShortAnswer, TypeEssay, TypeMatching:
		return true
	}
	return false
}

type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Pair is one left/right matching entry. On an item, Right is the canonical
// value for Left; on an answer, Right is what the student picked.
type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

type Level string

const (
	LevelEasy      Level = "easy"
	LevelAverage   Level = "average"
	LevelDifficult Level = "difficult"
)

// Item is one question. Exactly one of Options, ExpectedAnswer or Pairs is
// populated, according to Type; Normalize nulls the others before persisting.
type Item struct {
	ID       string   `json:"id"`
	ExamID   string   `json:"exam_id"`
	Topic    string   `json:"topic,omitempty"`
	Type     ItemType `json:"type"`
	Level    Level    `json:"level,omitempty"`
	Question string   `json:"question"`
	Points   int      `json:"points"`

	Options        []Option `json:"options,omitempty"`         // mcq
	ExpectedAnswer string   `json:"expected_answer,omitempty"` // truefalse, fill_blank, short_answer, essay rubric
	Pairs          []Pair   `json:"pairs,omitempty"`           // matching

	Position int `json:"position"`
}

type Exam struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	StartsAt    int64           `json:"starts_at"`
	EndsAt      int64           `json:"ends_at"`
	Years       []string        `json:"years"`
	Sections    []string        `json:"sections"`
	Status      Status          `json:"status"`
	TotalPoints float64         `json:"total_points"`
	TOS         json.RawMessage `json:"tos,omitempty"` // table of specifications, opaque
	Items       []Item          `json:"items,omitempty"`
	TeacherIDs  []string        `json:"teacher_ids,omitempty"`
	CreatedAt   int64           `json:"created_at,omitempty"`
	UpdatedAt   int64           `json:"updated_at,omitempty"`
}

// TakenExam is one student's attempt record against one exam. At most one row
// exists per (exam_id, user_id); starting twice returns the existing attempt.
type TakenExam struct {
	ID          string      `json:"id"`
	ExamID      string      `json:"exam_id"`
	UserID      string      `json:"user_id"`
	Status      TakenStatus `json:"status"`
	StartedAt   int64       `json:"started_at"`
	SubmittedAt *int64      `json:"submitted_at,omitempty"`
	TotalPoints float64     `json:"total_points"`
}

// TakenAnswer is the stored answer for one item of one attempt.
// PointsEarned nil means "not yet graded"; zero means "graded as wrong".
type TakenAnswer struct {
	ID           string   `json:"id"`
	TakenExamID  string   `json:"taken_exam_id"`
	ItemID       string   `json:"exam_item_id"`
	Value        Answer   `json:"answer"`
	PointsEarned *float64 `json:"points_earned"`
	Feedback     string   `json:"feedback,omitempty"`
}

// ActivityEvent is one append-only proctoring signal (tab blur, focus loss)
// tied to an attempt. Never mutated after the write.
type ActivityEvent struct {
	ID          int64           `json:"id"`
	TakenExamID string          `json:"taken_exam_id"`
	StudentID   string          `json:"student_id"`
	EventType   string          `json:"event_type"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   int64           `json:"created_at"`
}

// Normalize clears the correctness fields that do not belong to the item's
// type, keeping the per-type exclusivity invariant.
func (it *Item) Normalize() {
	switch it.Type {
	case TypeMCQ:
		it.ExpectedAnswer = ""
		it.Pairs = nil
	case TypeMatching:
		it.Options = nil
		it.ExpectedAnswer = ""
	default:
		it.Options = nil
		it.Pairs = nil
	}
	if it.Type == TypeTrueFalse {
		if b, ok := grading.NormalizeBool(it.ExpectedAnswer); ok {
			it.ExpectedAnswer = b
		}
	}
}

// Validate checks the item's shape for its declared type.
func (it *Item) Validate() error {
	if !it.Type.Valid() {
		return &ValidationError{Field: "type", Reason: "unknown item type"}
	}
	if it.Question == "" {
		return &ValidationError{Field: "question", Reason: "is required"}
	}
	if it.Points < 1 {
		return &ValidationError{Field: "points", Reason: "must be a positive integer"}
	}
	switch it.Type {
	case TypeMCQ:
		if len(it.Options) == 0 {
			return &ValidationError{Field: "options", Reason: "are required for mcq items"}
		}
		correct := 0
		for _, o := range it.Options {
			if o.Text == "" {
				return &ValidationError{Field: "options", Reason: "every option needs text"}
			}
			if o.Correct {
				correct++
			}
		}
		if correct == 0 {
			return &ValidationError{Field: "options", Reason: "at least one option must be flagged correct"}
		}
	case TypeTrueFalse:
		if _, ok := grading.NormalizeBool(it.ExpectedAnswer); !ok {
			return &ValidationError{Field: "expected_answer", Reason: `must normalize to "true" or "false"`}
		}
	case TypeFillBlank, TypeShortAnswer:
		if it.ExpectedAnswer == "" {
			return &ValidationError{Field: "expected_answer", Reason: "is required"}
		}
	case TypeMatching:
		if len(it.Pairs) == 0 {
			return &ValidationError{Field: "pairs", Reason: "are required for matching items"}
		}
		for _, p := range it.Pairs {
			if p.Left == "" || p.Right == "" {
				return &ValidationError{Field: "pairs", Reason: "every pair needs left and right values"}
			}
		}
	case TypeEssay:
		// expected_answer doubles as the grading rubric and may be empty
	}
	return nil
}

// Validate checks exam-level invariants. Items are validated individually.
func (e *Exam) Validate() error {
	if e.Title == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if e.EndsAt <= e.StartsAt {
		return &ValidationError{Field: "ends_at", Reason: "must be after starts_at"}
	}
	return nil
}

// SumItemPoints computes the derived exam total from its items.
func SumItemPoints(items []Item) float64 {
	total := 0.0
	for _, it := range items {
		total += float64(it.Points)
	}
	return total
}

// EligibleFor reports whether a student in the given year/section may see the
// exam. Empty eligibility sets admit everyone.
func (e *Exam) EligibleFor(year, section string) bool {
	return containsOrEmpty(e.Years, year) && containsOrEmpty(e.Sections, section)
}

func containsOrEmpty(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
