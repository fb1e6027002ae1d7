package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/examhall/examhall/internal/auth"
	"github.com/examhall/examhall/internal/exam"
)

func ownsExam(e exam.Exam, id auth.Identity) bool {
	if id.Role == "admin" {
		return true
	}
	for _, t := range e.TeacherIDs {
		if t == id.ID {
			return true
		}
	}
	return false
}

// loadOwnedExam fetches the exam and enforces that the caller owns it.
func loadOwnedExam(w http.ResponseWriter, r *http.Request, store exam.Store) (exam.Exam, bool) {
	e, err := store.GetExam(r.Context(), chi.URLParam(r, "examID"))
	if err != nil {
		writeError(w, err)
		return exam.Exam{}, false
	}
	if !ownsExam(e, auth.IdentityFromContext(r.Context())) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not your exam"})
		return exam.Exam{}, false
	}
	return e, true
}

func CreateExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e exam.Exam
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		id := auth.IdentityFromContext(r.Context())
		created, err := store.CreateExam(r.Context(), e, id.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func ListExamsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := auth.IdentityFromContext(r.Context())
		opts := exam.ExamListOpts{Status: exam.Status(r.URL.Query().Get("status"))}
		if id.Role != "admin" {
			opts.TeacherID = id.ID
		}
		out, err := store.ListExams(r.Context(), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		if out == nil {
			out = []exam.Exam{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func GetExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := loadOwnedExam(w, r, store)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func UpdateExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := loadOwnedExam(w, r, store)
		if !ok {
			return
		}
		var in exam.Exam
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		in.ID = e.ID
		out, err := store.UpdateExam(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func DeleteExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := loadOwnedExam(w, r, store)
		if !ok {
			return
		}
		if err := store.DeleteExam(r.Context(), e.ID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /api/exams/{examID}/status {"status":"published"}
func SetExamStatusHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := loadOwnedExam(w, r, store)
		if !ok {
			return
		}
		var req struct {
			Status exam.Status `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		out, err := store.SetExamStatus(r.Context(), e.ID, req.Status)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func AddItemHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := loadOwnedExam(w, r, store)
		if !ok {
			return
		}
		var it exam.Item
		if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		out, err := store.AddItem(r.Context(), e.ID, it)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

func UpdateItemHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := loadOwnedExam(w, r, store)
		if !ok {
			return
		}
		var it exam.Item
		if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		it.ID = chi.URLParam(r, "itemID")
		out, err := store.UpdateItem(r.Context(), e.ID, it)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func RemoveItemHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := loadOwnedExam(w, r, store)
		if !ok {
			return
		}
		if err := store.RemoveItem(r.Context(), e.ID, chi.URLParam(r, "itemID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
