package exam

import "context"

// ExamListOpts filters exam listings.
type ExamListOpts struct {
	TeacherID string // only exams owned by this teacher
	Status    Status // optional status filter
	// Student availability view: only ongoing exams eligible for year/section.
	AvailableFor bool
	ViewerYear   string
	ViewerSection string

	Limit  int
	Offset int
}

// TakenListOpts filters attempt listings.
type TakenListOpts struct {
	ExamID    string
	UserID    string
	TeacherID string // attempts against exams owned by this teacher
	Status    TakenStatus
	// PendingManual keeps only submitted attempts that still have ungraded
	// essay/short_answer answers (the grading queue).
	PendingManual bool

	Limit  int
	Offset int
}

// Store is the persistence boundary for the exam domain. Two implementations
// exist: the SQL store (sqlite/postgres) and an in-memory store used by tests
// and offline runs.
type Store interface {
	// Exams. Create/Update/Delete enforce schedule and item invariants;
	// item mutation is legal only while the status allows editing, and the
	// exam's total_points is recomputed whenever items change.
	CreateExam(ctx context.Context, e Exam, teacherID string) (Exam, error)
	GetExam(ctx context.Context, id string) (Exam, error)
	ListExams(ctx context.Context, opts ExamListOpts) ([]Exam, error)
	UpdateExam(ctx context.Context, e Exam) (Exam, error)
	DeleteExam(ctx context.Context, id string) error

	// SetExamStatus applies one explicit lifecycle transition. Requests not
	// in the allow-list fail with ErrIllegalTransition and leave the stored
	// status unchanged.
	SetExamStatus(ctx context.Context, id string, to Status) (Exam, error)

	AddItem(ctx context.Context, examID string, it Item) (Item, error)
	UpdateItem(ctx context.Context, examID string, it Item) (Item, error)
	RemoveItem(ctx context.Context, examID, itemID string) error

	// Attempts. Start is fetch-or-create: the unique (exam_id, user_id)
	// constraint guarantees at most one attempt even under concurrent
	// requests. created reports whether a new row was made.
	StartTakenExam(ctx context.Context, examID, userID string, now int64) (t TakenExam, created bool, err error)
	GetTakenExam(ctx context.Context, id string) (TakenExam, error)
	ListTakenExams(ctx context.Context, opts TakenListOpts) ([]TakenExam, error)

	// Answers are upserts keyed on (taken_exam_id, exam_item_id); the last
	// write wins. Saves are rejected once the attempt is submitted.
	SaveAnswer(ctx context.Context, takenID, itemID string, value Answer) (TakenAnswer, error)
	SaveAnswers(ctx context.Context, takenID string, values map[string]Answer) (int, error)
	ListAnswers(ctx context.Context, takenID string) ([]TakenAnswer, error)

	// Submit marks the attempt submitted, auto-grades every ungraded
	// auto-gradable answer and stores the provisional total, atomically.
	Submit(ctx context.Context, takenID string, now int64) (TakenExam, error)

	// SetItemScore records a teacher score for one essay/short_answer item,
	// bounded by [0, item points], and recomputes the total.
	SetItemScore(ctx context.Context, takenID, itemID string, pts float64, feedback string) (TakenAnswer, error)

	// Finalize grades any remaining objective answers, recomputes the total
	// and flips the attempt to graded — all or nothing. While manual items
	// are ungraded it fails with *UngradedError and writes nothing.
	Finalize(ctx context.Context, takenID string) (TakenExam, error)

	// Proctoring log, append-only.
	AppendActivity(ctx context.Context, ev ActivityEvent) (ActivityEvent, error)
	ListActivity(ctx context.Context, takenID string) ([]ActivityEvent, error)

	// Scheduler sweeps: idempotent bulk predicate updates, explicit now.
	PublishDue(ctx context.Context, now int64) (int64, error)
	CloseDue(ctx context.Context, now int64) (int64, error)
}
