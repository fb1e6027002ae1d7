package http

import (
	"net/http"

	"github.com/examhall/examhall/internal/exam"
)

type itemStats struct {
	ItemID    string  `json:"item_id"`
	Question  string  `json:"question"`
	Type      string  `json:"type"`
	Points    int     `json:"points"`
	Answered  int     `json:"answered"`
	Correct   int     `json:"correct"`
	AvgEarned float64 `json:"avg_earned"`
}

// GET /api/analytics/exams/{examID} — score distribution and per-item
// difficulty for one exam. Only graded attempts enter the averages.
func ExamAnalyticsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := loadOwnedExam(w, r, store)
		if !ok {
			return
		}
		attempts, err := store.ListTakenExams(r.Context(), exam.TakenListOpts{ExamID: e.ID})
		if err != nil {
			writeError(w, err)
			return
		}

		var submitted, graded int
		var sum, min, max float64
		first := true
		stats := map[string]*itemStats{}
		for _, it := range e.Items {
			stats[it.ID] = &itemStats{
				ItemID: it.ID, Question: it.Question, Type: string(it.Type), Points: it.Points,
			}
		}

		for _, t := range attempts {
			if t.SubmittedAt != nil {
				submitted++
			}
			if t.Status != exam.TakenGraded {
				continue
			}
			graded++
			sum += t.TotalPoints
			if first || t.TotalPoints < min {
				min = t.TotalPoints
			}
			if first || t.TotalPoints > max {
				max = t.TotalPoints
			}
			first = false

			answers, err := store.ListAnswers(r.Context(), t.ID)
			if err != nil {
				writeError(w, err)
				return
			}
			index := exam.ItemIndex(e.Items)
			for _, a := range answers {
				st, ok := stats[a.ItemID]
				if !ok {
					continue
				}
				st.Answered++
				if a.PointsEarned != nil {
					st.AvgEarned += *a.PointsEarned
				}
				it := index[a.ItemID]
				if c := exam.IsCorrect(it, a.Value); c != nil && *c {
					st.Correct++
				}
			}
		}

		items := make([]itemStats, 0, len(e.Items))
		for _, it := range e.Items {
			st := stats[it.ID]
			if st.Answered > 0 {
				st.AvgEarned /= float64(st.Answered)
			}
			items = append(items, *st)
		}
		avg := 0.0
		if graded > 0 {
			avg = sum / float64(graded)
		}
		if first {
			min, max = 0, 0
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"exam_id":      e.ID,
			"title":        e.Title,
			"max_points":   e.TotalPoints,
			"attempts":     len(attempts),
			"submitted":    submitted,
			"graded":       graded,
			"average":      avg,
			"min":          min,
			"max":          max,
			"items":        items,
		})
	}
}
