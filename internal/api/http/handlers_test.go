package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/examhall/examhall/internal/auth"
	"github.com/examhall/examhall/internal/exam"
	"github.com/examhall/examhall/internal/rbac"
)

// testRouter mounts the handlers without the JWT layer; identity comes from
// the helper below so tests can act as any user.
func testRouter(store exam.Store) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/exams", CreateExamHandler(store))
	r.Get("/api/exams/{examID}", GetExamHandler(store))
	r.Post("/api/exams/{examID}/status", SetExamStatusHandler(store))
	r.Post("/api/exams/{examID}/items", AddItemHandler(store))
	r.Get("/api/student/exams", AvailableExamsHandler(store))
	r.Post("/api/student/exams/{examID}/take", TakeExamHandler(store))
	r.Put("/api/student/attempts/{takenID}/answers/{itemID}", SaveAnswerHandler(store))
	r.Post("/api/student/attempts/{takenID}/submit", SubmitHandler(store))
	r.Get("/api/student/attempts/{takenID}", ReviewHandler(store))
	r.Post("/api/student/attempts/{takenID}/activity", LogActivityHandler(store))
	r.Put("/api/grading/attempts/{takenID}/answers/{itemID}", ScoreAnswerHandler(store))
	r.Post("/api/grading/attempts/{takenID}/finalize", FinalizeHandler(store))
	return r
}

func asUser(req *http.Request, id auth.Identity) *http.Request {
	ctx := auth.WithIdentity(req.Context(), id)
	ctx = rbac.WithRole(ctx, id.Role)
	return req.WithContext(ctx)
}

var (
	teacher = auth.Identity{ID: "teacher-1", Role: "teacher"}
	student = auth.Identity{ID: "stu-1", Role: "student", Year: "2026", Section: "A"}
	rival   = auth.Identity{ID: "teacher-2", Role: "teacher"}
)

func do(t *testing.T, r http.Handler, id auth.Identity, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, asUser(req, id))
	return w
}

func seedOngoing(t *testing.T, store exam.Store) exam.Exam {
	t.Helper()
	ctx := context.Background()
	e, err := store.CreateExam(ctx, exam.Exam{
		Title:    "Quiz",
		StartsAt: time.Now().Unix() - 60,
		EndsAt:   time.Now().Unix() + 3600,
		Items: []exam.Item{
			{Type: exam.TypeMCQ, Question: "2+2?", Points: 1,
				Options: []exam.Option{{Text: "3"}, {Text: "4", Correct: true}}},
			{Type: exam.TypeEssay, Question: "Why?", Points: 5},
		},
	}, teacher.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []exam.Status{exam.StatusReady, exam.StatusPublished, exam.StatusOngoing} {
		if _, err := store.SetExamStatus(ctx, e.ID, s); err != nil {
			t.Fatal(err)
		}
	}
	e, _ = store.GetExam(ctx, e.ID)
	return e
}

func TestIllegalTransitionIs422(t *testing.T) {
	store := exam.NewMemoryStore()
	r := testRouter(store)
	e := seedOngoing(t, store)

	w := do(t, r, teacher, "POST", "/api/exams/"+e.ID+"/status", map[string]string{"status": "draft"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("ongoing->draft: status %d, want 422", w.Code)
	}
}

func TestForeignTeacherIs403(t *testing.T) {
	store := exam.NewMemoryStore()
	r := testRouter(store)
	e := seedOngoing(t, store)

	if w := do(t, r, rival, "GET", "/api/exams/"+e.ID, nil); w.Code != http.StatusForbidden {
		t.Fatalf("foreign get: status %d, want 403", w.Code)
	}
	if w := do(t, r, teacher, "GET", "/api/exams/"+e.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("owner get: status %d, want 200", w.Code)
	}
}

func TestItemEditAfterPublishIs422(t *testing.T) {
	store := exam.NewMemoryStore()
	r := testRouter(store)
	e := seedOngoing(t, store)

	w := do(t, r, teacher, "POST", "/api/exams/"+e.ID+"/items", exam.Item{
		Type: exam.TypeFillBlank, Question: "Late?", Points: 1, ExpectedAnswer: "no",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422", w.Code)
	}
}

func TestStudentTakeSubmitReviewFlow(t *testing.T) {
	store := exam.NewMemoryStore()
	r := testRouter(store)
	e := seedOngoing(t, store)

	// exam shows up in the available list
	w := do(t, r, student, "GET", "/api/student/exams", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("available: status %d", w.Code)
	}
	var avail []studentExam
	_ = json.Unmarshal(w.Body.Bytes(), &avail)
	if len(avail) != 1 || avail[0].ID != e.ID {
		t.Fatalf("available list: %+v", avail)
	}

	// first take creates, and hides the correct flags from items
	w = do(t, r, student, "POST", "/api/student/exams/"+e.ID+"/take", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("take: status %d, want 201", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte(`"correct"`)) {
		t.Fatal("take payload leaks correct-option flags")
	}
	var takeResp struct {
		TakenExam exam.TakenExam `json:"taken_exam"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &takeResp)
	ta := takeResp.TakenExam

	// second take resumes with 200
	if w = do(t, r, student, "POST", "/api/student/exams/"+e.ID+"/take", nil); w.Code != http.StatusOK {
		t.Fatalf("retake: status %d, want 200", w.Code)
	}

	// answer the mcq, leave the essay alone
	w = do(t, r, student, "PUT", "/api/student/attempts/"+ta.ID+"/answers/"+e.Items[0].ID, exam.ChoiceAnswer(1))
	if w.Code != http.StatusOK {
		t.Fatalf("save: status %d", w.Code)
	}

	// another student cannot touch this attempt
	other := auth.Identity{ID: "stu-2", Role: "student"}
	w = do(t, r, other, "PUT", "/api/student/attempts/"+ta.ID+"/answers/"+e.Items[0].ID, exam.ChoiceAnswer(0))
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign save: status %d, want 403", w.Code)
	}

	if w = do(t, r, student, "POST", "/api/student/attempts/"+ta.ID+"/submit", nil); w.Code != http.StatusOK {
		t.Fatalf("submit: status %d", w.Code)
	}

	// results are pending until the essay is graded and the attempt finalized
	if w = do(t, r, student, "GET", "/api/student/attempts/"+ta.ID, nil); w.Code != http.StatusAccepted {
		t.Fatalf("review while pending: status %d, want 202", w.Code)
	}

	// finalize blocked by the ungraded essay
	w = do(t, r, teacher, "POST", "/api/grading/attempts/"+ta.ID+"/finalize", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("finalize with ungraded: status %d, want 422", w.Code)
	}
	var fail struct {
		UngradedCount int `json:"ungraded_count"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &fail)
	if fail.UngradedCount != 1 {
		t.Fatalf("ungraded_count = %d, want 1", fail.UngradedCount)
	}

	w = do(t, r, teacher, "PUT", "/api/grading/attempts/"+ta.ID+"/answers/"+e.Items[1].ID,
		map[string]any{"points_earned": 4.0, "feedback": "good"})
	if w.Code != http.StatusOK {
		t.Fatalf("score: status %d", w.Code)
	}
	if w = do(t, r, teacher, "POST", "/api/grading/attempts/"+ta.ID+"/finalize", nil); w.Code != http.StatusOK {
		t.Fatalf("finalize: status %d", w.Code)
	}

	// now the student sees the breakdown
	w = do(t, r, student, "GET", "/api/student/attempts/"+ta.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("review after grading: status %d", w.Code)
	}
	var review struct {
		TotalPoints float64 `json:"total_points"`
		MaxPoints   float64 `json:"max_points"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &review)
	if review.TotalPoints != 5 || review.MaxPoints != 6 {
		t.Fatalf("review totals: %+v", review)
	}
}

func TestActivityLogEndpoint(t *testing.T) {
	store := exam.NewMemoryStore()
	r := testRouter(store)
	e := seedOngoing(t, store)

	w := do(t, r, student, "POST", "/api/student/exams/"+e.ID+"/take", nil)
	var takeResp struct {
		TakenExam exam.TakenExam `json:"taken_exam"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &takeResp)

	w = do(t, r, student, "POST", "/api/student/attempts/"+takeResp.TakenExam.ID+"/activity",
		map[string]any{"event_type": "tab_blur", "details": map[string]int{"count": 1}})
	if w.Code != http.StatusCreated {
		t.Fatalf("log activity: status %d, want 201", w.Code)
	}

	w = do(t, r, student, "POST", "/api/student/attempts/"+takeResp.TakenExam.ID+"/activity",
		map[string]any{"details": map[string]int{}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing event_type: status %d, want 422", w.Code)
	}
}
