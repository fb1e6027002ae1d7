package http

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/examhall/examhall/internal/auth"
	"github.com/examhall/examhall/internal/exam"
)

// studentItem is the exam item as students see it: no correct-choice flags,
// no expected answers, and matching pairs split into two unordered columns.
type studentItem struct {
	ID       string   `json:"id"`
	Topic    string   `json:"topic,omitempty"`
	Type     string   `json:"type"`
	Level    string   `json:"level,omitempty"`
	Question string   `json:"question"`
	Points   int      `json:"points"`
	Options  []string `json:"options,omitempty"`
	Lefts    []string `json:"lefts,omitempty"`
	Rights   []string `json:"rights,omitempty"`
	Position int      `json:"position"`
}

func sanitizeItem(it exam.Item) studentItem {
	out := studentItem{
		ID:       it.ID,
		Topic:    it.Topic,
		Type:     string(it.Type),
		Level:    string(it.Level),
		Question: it.Question,
		Points:   it.Points,
		Position: it.Position,
	}
	for _, o := range it.Options {
		out.Options = append(out.Options, o.Text)
	}
	if it.Type == exam.TypeMatching {
		for _, p := range it.Pairs {
			out.Lefts = append(out.Lefts, p.Left)
			out.Rights = append(out.Rights, p.Right)
		}
		sort.Strings(out.Rights)
	}
	return out
}

type studentExam struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	StartsAt    int64   `json:"starts_at"`
	EndsAt      int64   `json:"ends_at"`
	TotalPoints float64 `json:"total_points"`
}

// GET /api/student/exams — ongoing exams the caller's year/section may take.
func AvailableExamsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := auth.IdentityFromContext(r.Context())
		exams, err := store.ListExams(r.Context(), exam.ExamListOpts{
			AvailableFor:  true,
			ViewerYear:    id.Year,
			ViewerSection: id.Section,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		out := []studentExam{}
		for _, e := range exams {
			out = append(out, studentExam{
				ID: e.ID, Title: e.Title, Description: e.Description,
				StartsAt: e.StartsAt, EndsAt: e.EndsAt, TotalPoints: e.TotalPoints,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /api/student/exams/{examID}/take — start or resume an attempt.
func TakeExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := auth.IdentityFromContext(r.Context())
		examID := chi.URLParam(r, "examID")
		e, err := store.GetExam(r.Context(), examID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !e.EligibleFor(id.Year, id.Section) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "exam not open to you"})
			return
		}
		t, created, err := store.StartTakenExam(r.Context(), examID, id.ID, time.Now().Unix())
		if err != nil {
			writeError(w, err)
			return
		}
		answers, err := store.ListAnswers(r.Context(), t.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		items := make([]studentItem, 0, len(e.Items))
		for _, it := range e.Items {
			items = append(items, sanitizeItem(it))
		}
		saved := map[string]exam.Answer{}
		for _, a := range answers {
			saved[a.ItemID] = a.Value
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, map[string]any{
			"taken_exam": t,
			"exam": map[string]any{
				"id": e.ID, "title": e.Title, "ends_at": e.EndsAt, "items": items,
			},
			"answers": saved,
		})
	}
}

// ownedAttempt loads the attempt and checks the caller is its student.
func ownedAttempt(w http.ResponseWriter, r *http.Request, store exam.Store) (exam.TakenExam, bool) {
	t, err := store.GetTakenExam(r.Context(), chi.URLParam(r, "takenID"))
	if err != nil {
		writeError(w, err)
		return exam.TakenExam{}, false
	}
	if t.UserID != auth.IdentityFromContext(r.Context()).ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not your attempt"})
		return exam.TakenExam{}, false
	}
	return t, true
}

// PUT /api/student/attempts/{takenID}/answers/{itemID}
func SaveAnswerHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := ownedAttempt(w, r, store)
		if !ok {
			return
		}
		var ans exam.Answer
		if err := json.NewDecoder(r.Body).Decode(&ans); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		out, err := store.SaveAnswer(r.Context(), t.ID, chi.URLParam(r, "itemID"), ans)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// PUT /api/student/attempts/{takenID}/answers — batch save, all-or-nothing.
func SaveAnswersHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := ownedAttempt(w, r, store)
		if !ok {
			return
		}
		var req map[string]exam.Answer
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		n, err := store.SaveAnswers(r.Context(), t.ID, req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"saved": n})
	}
}

// POST /api/student/attempts/{takenID}/submit
func SubmitHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := ownedAttempt(w, r, store)
		if !ok {
			return
		}
		out, err := store.Submit(r.Context(), t.ID, time.Now().Unix())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /api/student/attempts/{takenID} — results. Replies 202 while grading
// is still in progress so clients can poll.
func ReviewHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := ownedAttempt(w, r, store)
		if !ok {
			return
		}
		if t.Status != exam.TakenGraded {
			writeJSON(w, http.StatusAccepted, map[string]any{
				"status": t.Status,
				"detail": "results pending",
			})
			return
		}
		answers, err := store.ListAnswers(r.Context(), t.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		e, err := store.GetExam(r.Context(), t.ExamID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"taken_exam":   t,
			"exam_title":   e.Title,
			"total_points": t.TotalPoints,
			"max_points":   e.TotalPoints,
			"answers":      answers,
		})
	}
}

// POST /api/student/attempts/{takenID}/activity — append a proctoring event.
func LogActivityHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := ownedAttempt(w, r, store)
		if !ok {
			return
		}
		var req struct {
			EventType string          `json:"event_type"`
			Details   json.RawMessage `json:"details"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.EventType == "" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "event_type required"})
			return
		}
		ev, err := store.AppendActivity(r.Context(), exam.ActivityEvent{
			TakenExamID: t.ID,
			StudentID:   t.UserID,
			EventType:   req.EventType,
			Details:     req.Details,
			CreatedAt:   time.Now().Unix(),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ev)
	}
}
