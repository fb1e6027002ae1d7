package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/examhall/examhall/internal/auth"
	"github.com/examhall/examhall/internal/exam"
)

// GET /api/grading/attempts?exam_id=&status=&pending=1
// Lists submitted attempts on the caller's exams. pending=1 narrows to
// attempts with manual answers still waiting for a score.
func GradingQueueHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := auth.IdentityFromContext(r.Context())
		opts := exam.TakenListOpts{
			ExamID:        r.URL.Query().Get("exam_id"),
			Status:        exam.TakenStatus(r.URL.Query().Get("status")),
			PendingManual: r.URL.Query().Get("pending") == "1",
		}
		if id.Role != "admin" {
			opts.TeacherID = id.ID
		}
		out, err := store.ListTakenExams(r.Context(), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		if out == nil {
			out = []exam.TakenExam{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// gradableAttempt loads the attempt and checks the caller teaches its exam.
func gradableAttempt(w http.ResponseWriter, r *http.Request, store exam.Store) (exam.TakenExam, exam.Exam, bool) {
	t, err := store.GetTakenExam(r.Context(), chi.URLParam(r, "takenID"))
	if err != nil {
		writeError(w, err)
		return exam.TakenExam{}, exam.Exam{}, false
	}
	e, err := store.GetExam(r.Context(), t.ExamID)
	if err != nil {
		writeError(w, err)
		return exam.TakenExam{}, exam.Exam{}, false
	}
	if !ownsExam(e, auth.IdentityFromContext(r.Context())) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not your exam"})
		return exam.TakenExam{}, exam.Exam{}, false
	}
	return t, e, true
}

// GET /api/grading/attempts/{takenID} — the full grading sheet: each item
// with its answer, earned points and the auto/manual split.
func GradingSheetHandler(store exam.Store) http.HandlerFunc {
	type row struct {
		Item   exam.Item         `json:"item"`
		Answer *exam.TakenAnswer `json:"answer,omitempty"`
		Manual bool              `json:"manual"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		t, e, ok := gradableAttempt(w, r, store)
		if !ok {
			return
		}
		answers, err := store.ListAnswers(r.Context(), t.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		byItem := map[string]exam.TakenAnswer{}
		for _, a := range answers {
			byItem[a.ItemID] = a
		}
		rows := make([]row, 0, len(e.Items))
		ungraded := 0
		for _, it := range e.Items {
			rw := row{Item: it, Manual: exam.ManualType(it.Type)}
			if a, ok := byItem[it.ID]; ok {
				cp := a
				rw.Answer = &cp
				if rw.Manual && a.PointsEarned == nil {
					ungraded++
				}
			}
			rows = append(rows, rw)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"taken_exam":     t,
			"items":          rows,
			"ungraded_count": ungraded,
		})
	}
}

// PUT /api/grading/attempts/{takenID}/answers/{itemID}
// {"points_earned": 3.5, "feedback": "..."}
func ScoreAnswerHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, _, ok := gradableAttempt(w, r, store)
		if !ok {
			return
		}
		var req struct {
			PointsEarned float64 `json:"points_earned"`
			Feedback     string  `json:"feedback"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		out, err := store.SetItemScore(r.Context(), t.ID, chi.URLParam(r, "itemID"), req.PointsEarned, req.Feedback)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /api/grading/attempts/{takenID}/finalize
// Refuses with 422 and an ungraded_count while manual answers lack scores.
func FinalizeHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, _, ok := gradableAttempt(w, r, store)
		if !ok {
			return
		}
		out, err := store.Finalize(r.Context(), t.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /api/grading/attempts/{takenID}/activity — proctoring events, newest first.
func AttemptActivityHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, _, ok := gradableAttempt(w, r, store)
		if !ok {
			return
		}
		evs, err := store.ListActivity(r.Context(), t.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if evs == nil {
			evs = []exam.ActivityEvent{}
		}
		writeJSON(w, http.StatusOK, evs)
	}
}
