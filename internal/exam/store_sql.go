package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLStore implements Store on database/sql. It works against both sqlite
// (modernc driver) and postgres (pgx stdlib driver); all statements use $N
// placeholders, which both accept.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func newID() string { return uuid.NewString() }

/* ---------------- exams ---------------- */

func (s *SQLStore) CreateExam(ctx context.Context, e Exam, teacherID string) (Exam, error) {
	if err := e.Validate(); err != nil {
		return Exam{}, err
	}
	for i := range e.Items {
		e.Items[i].Normalize()
		if err := e.Items[i].Validate(); err != nil {
			return Exam{}, err
		}
	}
	e.ID = newID()
	e.Status = StatusDraft
	e.TotalPoints = SumItemPoints(e.Items)
	now := time.Now().Unix()
	e.CreatedAt, e.UpdatedAt = now, now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Exam{}, err
	}
	defer tx.Rollback()

	yearsJSON, _ := json.Marshal(nonNil(e.Years))
	sectionsJSON, _ := json.Marshal(nonNil(e.Sections))
	_, err = tx.ExecContext(ctx,
		`INSERT INTO exams (id,title,description,starts_at,ends_at,years_json,sections_json,status,total_points,tos_json,created_at,updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.ID, e.Title, e.Description, e.StartsAt, e.EndsAt,
		string(yearsJSON), string(sectionsJSON), string(e.Status), e.TotalPoints, rawOrNull(e.TOS), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return Exam{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO exam_teachers (exam_id, teacher_id) VALUES ($1,$2)`, e.ID, teacherID); err != nil {
		return Exam{}, err
	}
	for i := range e.Items {
		e.Items[i].ID = newID()
		e.Items[i].ExamID = e.ID
		e.Items[i].Position = i
		if err := insertItem(ctx, tx, e.Items[i]); err != nil {
			return Exam{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return Exam{}, err
	}
	e.TeacherIDs = []string{teacherID}
	return e, nil
}

func insertItem(ctx context.Context, tx *sql.Tx, it Item) error {
	optionsJSON := jsonOrNull(it.Options != nil, it.Options)
	pairsJSON := jsonOrNull(it.Pairs != nil, it.Pairs)
	_, err := tx.ExecContext(ctx,
		`INSERT INTO exam_items (id,exam_id,topic,type,level,question,points,expected_answer,options_json,pairs_json,position)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		it.ID, it.ExamID, it.Topic, string(it.Type), string(it.Level), it.Question, it.Points,
		it.ExpectedAnswer, optionsJSON, pairsJSON, it.Position)
	return err
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	e, err := s.getExam(ctx, s.db, id)
	if err != nil {
		return Exam{}, err
	}
	e.Items, err = s.listItems(ctx, s.db, id)
	if err != nil {
		return Exam{}, err
	}
	e.TeacherIDs, err = s.listTeacherIDs(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	return e, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) getExam(ctx context.Context, q querier, id string) (Exam, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id,title,description,starts_at,ends_at,years_json,sections_json,status,total_points,tos_json,created_at,updated_at
		 FROM exams WHERE id=$1`, id)
	return scanExam(row)
}

func scanExam(row *sql.Row) (Exam, error) {
	var e Exam
	var years, sections string
	var tos sql.NullString
	var status string
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.StartsAt, &e.EndsAt,
		&years, &sections, &status, &e.TotalPoints, &tos, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, ErrNotFound
		}
		return Exam{}, err
	}
	e.Status = Status(status)
	_ = json.Unmarshal([]byte(years), &e.Years)
	_ = json.Unmarshal([]byte(sections), &e.Sections)
	if tos.Valid && tos.String != "" {
		e.TOS = json.RawMessage(tos.String)
	}
	return e, nil
}

func (s *SQLStore) listItems(ctx context.Context, q querier, examID string) ([]Item, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id,exam_id,topic,type,level,question,points,expected_answer,options_json,pairs_json,position
		 FROM exam_items WHERE exam_id=$1 ORDER BY position, id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		var typ, level string
		var options, pairs sql.NullString
		if err := rows.Scan(&it.ID, &it.ExamID, &it.Topic, &typ, &level, &it.Question, &it.Points,
			&it.ExpectedAnswer, &options, &pairs, &it.Position); err != nil {
			return nil, err
		}
		it.Type = ItemType(typ)
		it.Level = Level(level)
		if options.Valid {
			_ = json.Unmarshal([]byte(options.String), &it.Options)
		}
		if pairs.Valid {
			_ = json.Unmarshal([]byte(pairs.String), &it.Pairs)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLStore) listTeacherIDs(ctx context.Context, examID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT teacher_id FROM exam_teachers WHERE exam_id=$1`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) ListExams(ctx context.Context, opts ExamListOpts) ([]Exam, error) {
	var (
		where []string
		args  []any
	)
	q := `SELECT e.id,e.title,e.description,e.starts_at,e.ends_at,e.years_json,e.sections_json,e.status,e.total_points,e.tos_json,e.created_at,e.updated_at FROM exams e`
	if opts.TeacherID != "" {
		args = append(args, opts.TeacherID)
		q += fmt.Sprintf(` JOIN exam_teachers et ON et.exam_id=e.id AND et.teacher_id=$%d`, len(args))
	}
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		where = append(where, fmt.Sprintf(`e.status=$%d`, len(args)))
	}
	if opts.AvailableFor {
		args = append(args, string(StatusOngoing))
		where = append(where, fmt.Sprintf(`e.status=$%d`, len(args)))
	}
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += ` ORDER BY e.starts_at DESC, e.id`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Exam
	for rows.Next() {
		var e Exam
		var years, sections string
		var tos sql.NullString
		var status string
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.StartsAt, &e.EndsAt,
			&years, &sections, &status, &e.TotalPoints, &tos, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Status = Status(status)
		_ = json.Unmarshal([]byte(years), &e.Years)
		_ = json.Unmarshal([]byte(sections), &e.Sections)
		if tos.Valid && tos.String != "" {
			e.TOS = json.RawMessage(tos.String)
		}
		// Eligibility sets are JSON arrays; filtering happens here rather
		// than in SQL so both drivers behave identically.
		if opts.AvailableFor && !e.EligibleFor(opts.ViewerYear, opts.ViewerSection) {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateExam(ctx context.Context, e Exam) (Exam, error) {
	if err := e.Validate(); err != nil {
		return Exam{}, err
	}
	yearsJSON, _ := json.Marshal(nonNil(e.Years))
	sectionsJSON, _ := json.Marshal(nonNil(e.Sections))
	res, err := s.db.ExecContext(ctx,
		`UPDATE exams SET title=$1, description=$2, starts_at=$3, ends_at=$4, years_json=$5, sections_json=$6, tos_json=$7, updated_at=$8
		 WHERE id=$9`,
		e.Title, e.Description, e.StartsAt, e.EndsAt, string(yearsJSON), string(sectionsJSON),
		rawOrNull(e.TOS), time.Now().Unix(), e.ID)
	if err != nil {
		return Exam{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Exam{}, ErrNotFound
	}
	return s.GetExam(ctx, e.ID)
}

// DeleteExam removes a draft/ready exam; rows cascade. Exams that have ever
// been published keep their attempt history and must be archived instead.
func (s *SQLStore) DeleteExam(ctx context.Context, id string) error {
	if err := s.editableExam(ctx, s.db, id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) SetExamStatus(ctx context.Context, id string, to Status) (Exam, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Exam{}, err
	}
	defer tx.Rollback()

	var cur string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM exams WHERE id=$1`, id).Scan(&cur); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, ErrNotFound
		}
		return Exam{}, err
	}
	if err := Transition(Status(cur), to); err != nil {
		return Exam{}, err
	}
	// Guard on the status we read so a concurrent transition cannot slip an
	// edge past the allow-list.
	res, err := tx.ExecContext(ctx,
		`UPDATE exams SET status=$1, updated_at=$2 WHERE id=$3 AND status=$4`,
		string(to), time.Now().Unix(), id, cur)
	if err != nil {
		return Exam{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Exam{}, ErrIllegalTransition
	}
	if err := tx.Commit(); err != nil {
		return Exam{}, err
	}
	return s.GetExam(ctx, id)
}

/* ---------------- items ---------------- */

func (s *SQLStore) editableExam(ctx context.Context, q querier, examID string) error {
	var cur string
	if err := q.QueryRowContext(ctx, `SELECT status FROM exams WHERE id=$1`, examID).Scan(&cur); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if !Status(cur).CanBeEdited() {
		return ErrNotEditable
	}
	return nil
}

func recomputeExamPoints(ctx context.Context, tx *sql.Tx, examID string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE exams SET total_points=(SELECT COALESCE(SUM(points),0) FROM exam_items WHERE exam_id=$1), updated_at=$2
		 WHERE id=$1`, examID, time.Now().Unix())
	return err
}

func (s *SQLStore) AddItem(ctx context.Context, examID string, it Item) (Item, error) {
	it.Normalize()
	if err := it.Validate(); err != nil {
		return Item{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Item{}, err
	}
	defer tx.Rollback()
	if err := s.editableExam(ctx, tx, examID); err != nil {
		return Item{}, err
	}
	it.ID = newID()
	it.ExamID = examID
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position)+1,0) FROM exam_items WHERE exam_id=$1`, examID).Scan(&it.Position); err != nil {
		return Item{}, err
	}
	if err := insertItem(ctx, tx, it); err != nil {
		return Item{}, err
	}
	if err := recomputeExamPoints(ctx, tx, examID); err != nil {
		return Item{}, err
	}
	return it, tx.Commit()
}

func (s *SQLStore) UpdateItem(ctx context.Context, examID string, it Item) (Item, error) {
	it.Normalize()
	if err := it.Validate(); err != nil {
		return Item{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Item{}, err
	}
	defer tx.Rollback()
	if err := s.editableExam(ctx, tx, examID); err != nil {
		return Item{}, err
	}
	optionsJSON := jsonOrNull(it.Options != nil, it.Options)
	pairsJSON := jsonOrNull(it.Pairs != nil, it.Pairs)
	res, err := tx.ExecContext(ctx,
		`UPDATE exam_items SET topic=$1, type=$2, level=$3, question=$4, points=$5, expected_answer=$6, options_json=$7, pairs_json=$8
		 WHERE id=$9 AND exam_id=$10`,
		it.Topic, string(it.Type), string(it.Level), it.Question, it.Points,
		it.ExpectedAnswer, optionsJSON, pairsJSON, it.ID, examID)
	if err != nil {
		return Item{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Item{}, ErrNotFound
	}
	if err := recomputeExamPoints(ctx, tx, examID); err != nil {
		return Item{}, err
	}
	it.ExamID = examID
	return it, tx.Commit()
}

func (s *SQLStore) RemoveItem(ctx context.Context, examID, itemID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.editableExam(ctx, tx, examID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM exam_items WHERE id=$1 AND exam_id=$2`, itemID, examID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := recomputeExamPoints(ctx, tx, examID); err != nil {
		return err
	}
	return tx.Commit()
}

/* ---------------- attempts ---------------- */

func (s *SQLStore) StartTakenExam(ctx context.Context, examID, userID string, now int64) (TakenExam, bool, error) {
	e, err := s.getExam(ctx, s.db, examID)
	if err != nil {
		return TakenExam{}, false, err
	}
	if !e.Status.AvailableToTake() {
		return TakenExam{}, false, ErrNotAvailable
	}
	if t, err := s.takenByExamUser(ctx, examID, userID); err == nil {
		if t.SubmittedAt != nil {
			return t, false, ErrAlreadySubmitted
		}
		return t, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return TakenExam{}, false, err
	}

	id := newID()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO taken_exams (id,exam_id,user_id,status,started_at,total_points)
		 VALUES ($1,$2,$3,$4,$5,0)
		 ON CONFLICT (exam_id,user_id) DO NOTHING`,
		id, examID, userID, string(TakenInProgress), now)
	if err != nil {
		return TakenExam{}, false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// lost the race; the unique constraint kept a single attempt
		t, err := s.takenByExamUser(ctx, examID, userID)
		return t, false, err
	}
	return TakenExam{ID: id, ExamID: examID, UserID: userID, Status: TakenInProgress, StartedAt: now}, true, nil
}

func (s *SQLStore) takenByExamUser(ctx context.Context, examID, userID string) (TakenExam, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,exam_id,user_id,status,started_at,submitted_at,total_points
		 FROM taken_exams WHERE exam_id=$1 AND user_id=$2`, examID, userID)
	return scanTaken(row)
}

func (s *SQLStore) GetTakenExam(ctx context.Context, id string) (TakenExam, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,exam_id,user_id,status,started_at,submitted_at,total_points
		 FROM taken_exams WHERE id=$1`, id)
	return scanTaken(row)
}

func scanTaken(row *sql.Row) (TakenExam, error) {
	var t TakenExam
	var status string
	var submitted sql.NullInt64
	if err := row.Scan(&t.ID, &t.ExamID, &t.UserID, &status, &t.StartedAt, &submitted, &t.TotalPoints); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TakenExam{}, ErrNotFound
		}
		return TakenExam{}, err
	}
	t.Status = TakenStatus(status)
	if submitted.Valid {
		v := submitted.Int64
		t.SubmittedAt = &v
	}
	return t, nil
}

func (s *SQLStore) ListTakenExams(ctx context.Context, opts TakenListOpts) ([]TakenExam, error) {
	var (
		where []string
		args  []any
	)
	q := `SELECT t.id,t.exam_id,t.user_id,t.status,t.started_at,t.submitted_at,t.total_points FROM taken_exams t`
	if opts.TeacherID != "" {
		args = append(args, opts.TeacherID)
		q += fmt.Sprintf(` JOIN exam_teachers et ON et.exam_id=t.exam_id AND et.teacher_id=$%d`, len(args))
	}
	if opts.ExamID != "" {
		args = append(args, opts.ExamID)
		where = append(where, fmt.Sprintf(`t.exam_id=$%d`, len(args)))
	}
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		where = append(where, fmt.Sprintf(`t.user_id=$%d`, len(args)))
	}
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		where = append(where, fmt.Sprintf(`t.status=$%d`, len(args)))
	}
	if opts.PendingManual {
		where = append(where, `t.submitted_at IS NOT NULL AND EXISTS (
			SELECT 1 FROM taken_exam_answers a
			JOIN exam_items i ON i.id=a.exam_item_id
			WHERE a.taken_exam_id=t.id AND a.points_earned IS NULL AND i.type IN ('essay','short_answer'))`)
	}
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += ` ORDER BY t.started_at DESC, t.id`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TakenExam
	for rows.Next() {
		var t TakenExam
		var status string
		var submitted sql.NullInt64
		if err := rows.Scan(&t.ID, &t.ExamID, &t.UserID, &status, &t.StartedAt, &submitted, &t.TotalPoints); err != nil {
			return nil, err
		}
		t.Status = TakenStatus(status)
		if submitted.Valid {
			v := submitted.Int64
			t.SubmittedAt = &v
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

/* ---------------- answers ---------------- */

func (s *SQLStore) SaveAnswer(ctx context.Context, takenID, itemID string, value Answer) (TakenAnswer, error) {
	t, err := s.GetTakenExam(ctx, takenID)
	if err != nil {
		return TakenAnswer{}, err
	}
	if t.SubmittedAt != nil {
		return TakenAnswer{}, ErrAlreadySubmitted
	}
	var one int
	if err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM exam_items WHERE id=$1 AND exam_id=$2`, itemID, t.ExamID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TakenAnswer{}, ErrNotFound
		}
		return TakenAnswer{}, err
	}
	return s.upsertAnswer(ctx, s.db, takenID, itemID, value)
}

func (s *SQLStore) upsertAnswer(ctx context.Context, q querier, takenID, itemID string, value Answer) (TakenAnswer, error) {
	buf, err := json.Marshal(value)
	if err != nil {
		return TakenAnswer{}, err
	}
	id := newID()
	// last write wins; a re-save clears any stale auto-grade
	_, err = q.ExecContext(ctx,
		`INSERT INTO taken_exam_answers (id,taken_exam_id,exam_item_id,answer_json,points_earned,feedback)
		 VALUES ($1,$2,$3,$4,NULL,'')
		 ON CONFLICT (taken_exam_id,exam_item_id)
		 DO UPDATE SET answer_json=EXCLUDED.answer_json, points_earned=NULL`,
		id, takenID, itemID, string(buf))
	if err != nil {
		return TakenAnswer{}, err
	}
	return s.getAnswer(ctx, q, takenID, itemID)
}

func (s *SQLStore) getAnswer(ctx context.Context, q querier, takenID, itemID string) (TakenAnswer, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id,taken_exam_id,exam_item_id,answer_json,points_earned,feedback
		 FROM taken_exam_answers WHERE taken_exam_id=$1 AND exam_item_id=$2`, takenID, itemID)
	return scanAnswer(row)
}

func scanAnswer(row *sql.Row) (TakenAnswer, error) {
	var a TakenAnswer
	var payload string
	var pts sql.NullFloat64
	if err := row.Scan(&a.ID, &a.TakenExamID, &a.ItemID, &payload, &pts, &a.Feedback); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TakenAnswer{}, ErrNotFound
		}
		return TakenAnswer{}, err
	}
	_ = json.Unmarshal([]byte(payload), &a.Value)
	if pts.Valid {
		v := pts.Float64
		a.PointsEarned = &v
	}
	return a, nil
}

func (s *SQLStore) SaveAnswers(ctx context.Context, takenID string, values map[string]Answer) (int, error) {
	t, err := s.GetTakenExam(ctx, takenID)
	if err != nil {
		return 0, err
	}
	if t.SubmittedAt != nil {
		return 0, ErrAlreadySubmitted
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	saved := 0
	for itemID, v := range values {
		var one int
		if err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM exam_items WHERE id=$1 AND exam_id=$2`, itemID, t.ExamID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, ErrNotFound
			}
			return 0, err
		}
		if _, err := s.upsertAnswer(ctx, tx, takenID, itemID, v); err != nil {
			return 0, err
		}
		saved++
	}
	return saved, tx.Commit()
}

func (s *SQLStore) ListAnswers(ctx context.Context, takenID string) ([]TakenAnswer, error) {
	return s.listAnswers(ctx, s.db, takenID)
}

func (s *SQLStore) listAnswers(ctx context.Context, q querier, takenID string) ([]TakenAnswer, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id,taken_exam_id,exam_item_id,answer_json,points_earned,feedback
		 FROM taken_exam_answers WHERE taken_exam_id=$1 ORDER BY id`, takenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TakenAnswer
	for rows.Next() {
		var a TakenAnswer
		var payload string
		var pts sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.TakenExamID, &a.ItemID, &payload, &pts, &a.Feedback); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(payload), &a.Value)
		if pts.Valid {
			v := pts.Float64
			a.PointsEarned = &v
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

/* ---------------- submission and grading ---------------- */

func (s *SQLStore) Submit(ctx context.Context, takenID string, now int64) (TakenExam, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TakenExam{}, err
	}
	defer tx.Rollback()

	t, err := s.takenForUpdate(ctx, tx, takenID)
	if err != nil {
		return TakenExam{}, err
	}
	if t.SubmittedAt != nil {
		return TakenExam{}, ErrAlreadySubmitted
	}
	e, err := s.getExam(ctx, tx, t.ExamID)
	if err != nil {
		return TakenExam{}, err
	}
	if !e.Status.AvailableToTake() {
		return TakenExam{}, ErrNotAvailable
	}

	items, err := s.listItems(ctx, tx, t.ExamID)
	if err != nil {
		return TakenExam{}, err
	}
	answers, err := s.listAnswers(ctx, tx, takenID)
	if err != nil {
		return TakenExam{}, err
	}

	updates := AutoGradePass(ItemIndex(items), answers)
	if err := applyScores(ctx, tx, takenID, updates); err != nil {
		return TakenExam{}, err
	}
	total := RecalculateTotal(merge(answers, updates))

	_, err = tx.ExecContext(ctx,
		`UPDATE taken_exams SET status=$1, submitted_at=$2, total_points=$3 WHERE id=$4`,
		string(TakenSubmitted), now, total, takenID)
	if err != nil {
		return TakenExam{}, err
	}
	if err := tx.Commit(); err != nil {
		return TakenExam{}, err
	}
	return s.GetTakenExam(ctx, takenID)
}

func (s *SQLStore) SetItemScore(ctx context.Context, takenID, itemID string, pts float64, feedback string) (TakenAnswer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TakenAnswer{}, err
	}
	defer tx.Rollback()

	t, err := s.takenForUpdate(ctx, tx, takenID)
	if err != nil {
		return TakenAnswer{}, err
	}
	if t.SubmittedAt == nil {
		return TakenAnswer{}, ErrNotSubmitted
	}

	var itemType string
	var itemPoints int
	err = tx.QueryRowContext(ctx,
		`SELECT i.type, i.points FROM taken_exam_answers a JOIN exam_items i ON i.id=a.exam_item_id
		 WHERE a.taken_exam_id=$1 AND a.exam_item_id=$2`, takenID, itemID).Scan(&itemType, &itemPoints)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TakenAnswer{}, ErrNotFound
		}
		return TakenAnswer{}, err
	}
	if !ManualType(ItemType(itemType)) {
		return TakenAnswer{}, ErrNotManualType
	}
	if pts < 0 || pts > float64(itemPoints) {
		return TakenAnswer{}, ErrScoreOutOfRange
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE taken_exam_answers SET points_earned=$1, feedback=$2 WHERE taken_exam_id=$3 AND exam_item_id=$4`,
		pts, feedback, takenID, itemID)
	if err != nil {
		return TakenAnswer{}, err
	}
	if err := recomputeTakenTotal(ctx, tx, takenID); err != nil {
		return TakenAnswer{}, err
	}
	a, err := s.getAnswer(ctx, tx, takenID, itemID)
	if err != nil {
		return TakenAnswer{}, err
	}
	return a, tx.Commit()
}

func (s *SQLStore) Finalize(ctx context.Context, takenID string) (TakenExam, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TakenExam{}, err
	}
	defer tx.Rollback()

	t, err := s.takenForUpdate(ctx, tx, takenID)
	if err != nil {
		return TakenExam{}, err
	}
	if t.SubmittedAt == nil {
		return TakenExam{}, ErrNotSubmitted
	}
	if t.Status == TakenGraded {
		return t, nil
	}

	items, err := s.listItems(ctx, tx, t.ExamID)
	if err != nil {
		return TakenExam{}, err
	}
	answers, err := s.listAnswers(ctx, tx, takenID)
	if err != nil {
		return TakenExam{}, err
	}
	index := ItemIndex(items)
	if n := CountUngradedManual(index, answers); n > 0 {
		return TakenExam{}, &UngradedError{Count: n}
	}

	updates := AutoGradePass(index, answers)
	if err := applyScores(ctx, tx, takenID, updates); err != nil {
		return TakenExam{}, err
	}
	total := RecalculateTotal(merge(answers, updates))

	_, err = tx.ExecContext(ctx,
		`UPDATE taken_exams SET status=$1, total_points=$2 WHERE id=$3`,
		string(TakenGraded), total, takenID)
	if err != nil {
		return TakenExam{}, err
	}
	if err := tx.Commit(); err != nil {
		return TakenExam{}, err
	}
	return s.GetTakenExam(ctx, takenID)
}

func (s *SQLStore) takenForUpdate(ctx context.Context, tx *sql.Tx, id string) (TakenExam, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id,exam_id,user_id,status,started_at,submitted_at,total_points
		 FROM taken_exams WHERE id=$1`, id)
	return scanTaken(row)
}

func applyScores(ctx context.Context, tx *sql.Tx, takenID string, updates map[string]float64) error {
	for itemID, pts := range updates {
		if _, err := tx.ExecContext(ctx,
			`UPDATE taken_exam_answers SET points_earned=$1 WHERE taken_exam_id=$2 AND exam_item_id=$3`,
			pts, takenID, itemID); err != nil {
			return err
		}
	}
	return nil
}

func recomputeTakenTotal(ctx context.Context, tx *sql.Tx, takenID string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE taken_exams SET total_points=(SELECT COALESCE(SUM(points_earned),0) FROM taken_exam_answers WHERE taken_exam_id=$1)
		 WHERE id=$1`, takenID)
	return err
}

// merge overlays freshly computed scores on the loaded answer rows so the
// aggregator sees the post-pass state without a re-read.
func merge(answers []TakenAnswer, updates map[string]float64) []TakenAnswer {
	out := make([]TakenAnswer, len(answers))
	copy(out, answers)
	for i := range out {
		if v, ok := updates[out[i].ItemID]; ok {
			pts := v
			out[i].PointsEarned = &pts
		}
	}
	return out
}

/* ---------------- activity log ---------------- */

func (s *SQLStore) AppendActivity(ctx context.Context, ev ActivityEvent) (ActivityEvent, error) {
	if ev.CreatedAt == 0 {
		ev.CreatedAt = time.Now().Unix()
	}
	details := "{}"
	if len(ev.Details) > 0 {
		details = string(ev.Details)
	}
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO exam_activity_logs (taken_exam_id,student_id,event_type,details_json,created_at)
		 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		ev.TakenExamID, ev.StudentID, ev.EventType, details, ev.CreatedAt)
	if err := row.Scan(&ev.ID); err != nil {
		return ActivityEvent{}, err
	}
	return ev, nil
}

func (s *SQLStore) ListActivity(ctx context.Context, takenID string) ([]ActivityEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,taken_exam_id,student_id,event_type,details_json,created_at
		 FROM exam_activity_logs WHERE taken_exam_id=$1 ORDER BY created_at DESC, id DESC`, takenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ActivityEvent
	for rows.Next() {
		var ev ActivityEvent
		var details string
		if err := rows.Scan(&ev.ID, &ev.TakenExamID, &ev.StudentID, &ev.EventType, &details, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Details = json.RawMessage(details)
		out = append(out, ev)
	}
	return out, rows.Err()
}

/* ---------------- scheduler sweeps ---------------- */

// PublishDue moves published exams whose window has opened to ongoing. Safe
// to run at any cadence; the predicate makes it a no-op the second time.
func (s *SQLStore) PublishDue(ctx context.Context, now int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exams SET status=$1, updated_at=$2 WHERE status=$3 AND starts_at<=$2 AND ends_at>$2`,
		string(StatusOngoing), now, string(StatusPublished))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CloseDue moves ongoing exams whose window has ended to closed.
func (s *SQLStore) CloseDue(ctx context.Context, now int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exams SET status=$1, updated_at=$2 WHERE status=$3 AND ends_at<=$2`,
		string(StatusClosed), now, string(StatusOngoing))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

/* ---------------- helpers ---------------- */

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func rawOrNull(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func jsonOrNull(present bool, v any) any {
	if !present {
		return nil
	}
	buf, _ := json.Marshal(v)
	return string(buf)
}
