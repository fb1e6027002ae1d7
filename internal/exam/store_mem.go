package exam

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore keeps everything in maps behind a single mutex. It backs tests
// and offline runs; the SQL store is the production path.
type memoryStore struct {
	mu sync.RWMutex

	exams    map[string]*Exam
	teachers map[string][]string            // exam id -> teacher ids
	taken    map[string]*TakenExam          // taken id
	byUser   map[string]string              // examID+"/"+userID -> taken id
	answers  map[string]map[string]*TakenAnswer // taken id -> item id -> answer
	activity map[string][]ActivityEvent     // taken id
	nextActivityID int64
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{
		exams:    map[string]*Exam{},
		teachers: map[string][]string{},
		taken:    map[string]*TakenExam{},
		byUser:   map[string]string{},
		answers:  map[string]map[string]*TakenAnswer{},
		activity: map[string][]ActivityEvent{},
	}
}

func attemptKey(examID, userID string) string { return examID + "/" + userID }

func (m *memoryStore) CreateExam(_ context.Context, e Exam, teacherID string) (Exam, error) {
	if err := e.Validate(); err != nil {
		return Exam{}, err
	}
	for i := range e.Items {
		e.Items[i].Normalize()
		if err := e.Items[i].Validate(); err != nil {
			return Exam{}, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.NewString()
	e.Status = StatusDraft
	now := time.Now().Unix()
	e.CreatedAt, e.UpdatedAt = now, now
	for i := range e.Items {
		e.Items[i].ID = uuid.NewString()
		e.Items[i].ExamID = e.ID
		e.Items[i].Position = i
	}
	e.TotalPoints = SumItemPoints(e.Items)
	e.TeacherIDs = []string{teacherID}
	cp := cloneExam(e)
	m.exams[e.ID] = &cp
	m.teachers[e.ID] = []string{teacherID}
	return e, nil
}

func (m *memoryStore) GetExam(_ context.Context, id string) (Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	out := cloneExam(*e)
	out.TeacherIDs = append([]string(nil), m.teachers[id]...)
	return out, nil
}

func (m *memoryStore) ListExams(_ context.Context, opts ExamListOpts) ([]Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Exam
	for id, e := range m.exams {
		if opts.TeacherID != "" && !contains(m.teachers[id], opts.TeacherID) {
			continue
		}
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		if opts.AvailableFor {
			if !e.Status.AvailableToTake() || !e.EligibleFor(opts.ViewerYear, opts.ViewerSection) {
				continue
			}
		}
		cp := cloneExam(*e)
		cp.TeacherIDs = append([]string(nil), m.teachers[id]...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt != out[j].StartsAt {
			return out[i].StartsAt > out[j].StartsAt
		}
		return out[i].ID < out[j].ID
	})
	out = page(out, opts.Offset, opts.Limit)
	return out, nil
}

func (m *memoryStore) UpdateExam(_ context.Context, e Exam) (Exam, error) {
	if err := e.Validate(); err != nil {
		return Exam{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.exams[e.ID]
	if !ok {
		return Exam{}, ErrNotFound
	}
	cur.Title = e.Title
	cur.Description = e.Description
	cur.StartsAt = e.StartsAt
	cur.EndsAt = e.EndsAt
	cur.Years = append([]string(nil), e.Years...)
	cur.Sections = append([]string(nil), e.Sections...)
	cur.TOS = append([]byte(nil), e.TOS...)
	cur.UpdatedAt = time.Now().Unix()
	out := cloneExam(*cur)
	out.TeacherIDs = append([]string(nil), m.teachers[e.ID]...)
	return out, nil
}

func (m *memoryStore) DeleteExam(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return ErrNotFound
	}
	if !e.Status.CanBeEdited() {
		return ErrNotEditable
	}
	delete(m.exams, id)
	delete(m.teachers, id)
	for tid, t := range m.taken {
		if t.ExamID == id {
			delete(m.byUser, attemptKey(t.ExamID, t.UserID))
			delete(m.taken, tid)
			delete(m.answers, tid)
			delete(m.activity, tid)
		}
	}
	return nil
}

func (m *memoryStore) SetExamStatus(_ context.Context, id string, to Status) (Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	if err := Transition(e.Status, to); err != nil {
		return Exam{}, err
	}
	e.Status = to
	e.UpdatedAt = time.Now().Unix()
	out := cloneExam(*e)
	out.TeacherIDs = append([]string(nil), m.teachers[id]...)
	return out, nil
}

func (m *memoryStore) AddItem(_ context.Context, examID string, it Item) (Item, error) {
	it.Normalize()
	if err := it.Validate(); err != nil {
		return Item{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[examID]
	if !ok {
		return Item{}, ErrNotFound
	}
	if !e.Status.CanBeEdited() {
		return Item{}, ErrNotEditable
	}
	it.ID = uuid.NewString()
	it.ExamID = examID
	it.Position = len(e.Items)
	e.Items = append(e.Items, it)
	e.TotalPoints = SumItemPoints(e.Items)
	e.UpdatedAt = time.Now().Unix()
	return it, nil
}

func (m *memoryStore) UpdateItem(_ context.Context, examID string, it Item) (Item, error) {
	it.Normalize()
	if err := it.Validate(); err != nil {
		return Item{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[examID]
	if !ok {
		return Item{}, ErrNotFound
	}
	if !e.Status.CanBeEdited() {
		return Item{}, ErrNotEditable
	}
	for i := range e.Items {
		if e.Items[i].ID == it.ID {
			it.ExamID = examID
			it.Position = e.Items[i].Position
			e.Items[i] = it
			e.TotalPoints = SumItemPoints(e.Items)
			e.UpdatedAt = time.Now().Unix()
			return it, nil
		}
	}
	return Item{}, ErrNotFound
}

func (m *memoryStore) RemoveItem(_ context.Context, examID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[examID]
	if !ok {
		return ErrNotFound
	}
	if !e.Status.CanBeEdited() {
		return ErrNotEditable
	}
	for i := range e.Items {
		if e.Items[i].ID == itemID {
			e.Items = append(e.Items[:i], e.Items[i+1:]...)
			for j := range e.Items {
				e.Items[j].Position = j
			}
			e.TotalPoints = SumItemPoints(e.Items)
			e.UpdatedAt = time.Now().Unix()
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryStore) StartTakenExam(_ context.Context, examID, userID string, now int64) (TakenExam, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[examID]
	if !ok {
		return TakenExam{}, false, ErrNotFound
	}
	if !e.Status.AvailableToTake() {
		return TakenExam{}, false, ErrNotAvailable
	}
	if tid, ok := m.byUser[attemptKey(examID, userID)]; ok {
		t := *m.taken[tid]
		if t.SubmittedAt != nil {
			return t, false, ErrAlreadySubmitted
		}
		return t, false, nil
	}
	t := TakenExam{
		ID:        uuid.NewString(),
		ExamID:    examID,
		UserID:    userID,
		Status:    TakenInProgress,
		StartedAt: now,
	}
	m.taken[t.ID] = &t
	m.byUser[attemptKey(examID, userID)] = t.ID
	m.answers[t.ID] = map[string]*TakenAnswer{}
	return t, true, nil
}

func (m *memoryStore) GetTakenExam(_ context.Context, id string) (TakenExam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.taken[id]
	if !ok {
		return TakenExam{}, ErrNotFound
	}
	return *t, nil
}

func (m *memoryStore) ListTakenExams(_ context.Context, opts TakenListOpts) ([]TakenExam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TakenExam
	for _, t := range m.taken {
		if opts.ExamID != "" && t.ExamID != opts.ExamID {
			continue
		}
		if opts.UserID != "" && t.UserID != opts.UserID {
			continue
		}
		if opts.TeacherID != "" && !contains(m.teachers[t.ExamID], opts.TeacherID) {
			continue
		}
		if opts.Status != "" && t.Status != opts.Status {
			continue
		}
		if opts.PendingManual && !m.pendingManualLocked(t) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt != out[j].StartedAt {
			return out[i].StartedAt > out[j].StartedAt
		}
		return out[i].ID < out[j].ID
	})
	out = page(out, opts.Offset, opts.Limit)
	return out, nil
}

func (m *memoryStore) pendingManualLocked(t *TakenExam) bool {
	if t.SubmittedAt == nil {
		return false
	}
	e, ok := m.exams[t.ExamID]
	if !ok {
		return false
	}
	index := ItemIndex(e.Items)
	for _, a := range m.answers[t.ID] {
		it, ok := index[a.ItemID]
		if ok && ManualType(it.Type) && a.PointsEarned == nil {
			return true
		}
	}
	return false
}

func (m *memoryStore) SaveAnswer(_ context.Context, takenID, itemID string, value Answer) (TakenAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveAnswerLocked(takenID, itemID, value)
}

func (m *memoryStore) saveAnswerLocked(takenID, itemID string, value Answer) (TakenAnswer, error) {
	t, ok := m.taken[takenID]
	if !ok {
		return TakenAnswer{}, ErrNotFound
	}
	if t.SubmittedAt != nil {
		return TakenAnswer{}, ErrAlreadySubmitted
	}
	e := m.exams[t.ExamID]
	if e == nil || itemByID(e.Items, itemID) == nil {
		return TakenAnswer{}, ErrNotFound
	}
	if a, ok := m.answers[takenID][itemID]; ok {
		a.Value = value
		a.PointsEarned = nil
		return *a, nil
	}
	a := &TakenAnswer{
		ID:          uuid.NewString(),
		TakenExamID: takenID,
		ItemID:      itemID,
		Value:       value,
	}
	m.answers[takenID][itemID] = a
	return *a, nil
}

func (m *memoryStore) SaveAnswers(_ context.Context, takenID string, values map[string]Answer) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// validate first so the batch is all-or-nothing
	t, ok := m.taken[takenID]
	if !ok {
		return 0, ErrNotFound
	}
	if t.SubmittedAt != nil {
		return 0, ErrAlreadySubmitted
	}
	e := m.exams[t.ExamID]
	for itemID := range values {
		if e == nil || itemByID(e.Items, itemID) == nil {
			return 0, ErrNotFound
		}
	}
	for itemID, v := range values {
		if _, err := m.saveAnswerLocked(takenID, itemID, v); err != nil {
			return 0, err
		}
	}
	return len(values), nil
}

func (m *memoryStore) ListAnswers(_ context.Context, takenID string) ([]TakenAnswer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.taken[takenID]; !ok {
		return nil, ErrNotFound
	}
	return m.answersLocked(takenID), nil
}

func (m *memoryStore) answersLocked(takenID string) []TakenAnswer {
	var out []TakenAnswer
	for _, a := range m.answers[takenID] {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memoryStore) Submit(_ context.Context, takenID string, now int64) (TakenExam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.taken[takenID]
	if !ok {
		return TakenExam{}, ErrNotFound
	}
	if t.SubmittedAt != nil {
		return TakenExam{}, ErrAlreadySubmitted
	}
	e, ok := m.exams[t.ExamID]
	if !ok {
		return TakenExam{}, ErrNotFound
	}
	if !e.Status.AvailableToTake() {
		return TakenExam{}, ErrNotAvailable
	}
	index := ItemIndex(e.Items)
	for itemID, pts := range AutoGradePass(index, m.answersLocked(takenID)) {
		v := pts
		m.answers[takenID][itemID].PointsEarned = &v
	}
	t.TotalPoints = RecalculateTotal(m.answersLocked(takenID))
	t.Status = TakenSubmitted
	t.SubmittedAt = &now
	return *t, nil
}

func (m *memoryStore) SetItemScore(_ context.Context, takenID, itemID string, pts float64, feedback string) (TakenAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.taken[takenID]
	if !ok {
		return TakenAnswer{}, ErrNotFound
	}
	if t.SubmittedAt == nil {
		return TakenAnswer{}, ErrNotSubmitted
	}
	a, ok := m.answers[takenID][itemID]
	if !ok {
		return TakenAnswer{}, ErrNotFound
	}
	e := m.exams[t.ExamID]
	it := itemByID(e.Items, itemID)
	if it == nil {
		return TakenAnswer{}, ErrNotFound
	}
	if !ManualType(it.Type) {
		return TakenAnswer{}, ErrNotManualType
	}
	if pts < 0 || pts > float64(it.Points) {
		return TakenAnswer{}, ErrScoreOutOfRange
	}
	v := pts
	a.PointsEarned = &v
	a.Feedback = feedback
	t.TotalPoints = RecalculateTotal(m.answersLocked(takenID))
	return *a, nil
}

func (m *memoryStore) Finalize(_ context.Context, takenID string) (TakenExam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.taken[takenID]
	if !ok {
		return TakenExam{}, ErrNotFound
	}
	if t.SubmittedAt == nil {
		return TakenExam{}, ErrNotSubmitted
	}
	if t.Status == TakenGraded {
		return *t, nil
	}
	e, ok := m.exams[t.ExamID]
	if !ok {
		return TakenExam{}, ErrNotFound
	}
	index := ItemIndex(e.Items)
	if n := CountUngradedManual(index, m.answersLocked(takenID)); n > 0 {
		return TakenExam{}, &UngradedError{Count: n}
	}
	for itemID, pts := range AutoGradePass(index, m.answersLocked(takenID)) {
		v := pts
		m.answers[takenID][itemID].PointsEarned = &v
	}
	t.TotalPoints = RecalculateTotal(m.answersLocked(takenID))
	t.Status = TakenGraded
	return *t, nil
}

func (m *memoryStore) AppendActivity(_ context.Context, ev ActivityEvent) (ActivityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.taken[ev.TakenExamID]; !ok {
		return ActivityEvent{}, ErrNotFound
	}
	m.nextActivityID++
	ev.ID = m.nextActivityID
	if ev.CreatedAt == 0 {
		ev.CreatedAt = time.Now().Unix()
	}
	m.activity[ev.TakenExamID] = append(m.activity[ev.TakenExamID], ev)
	return ev, nil
}

func (m *memoryStore) ListActivity(_ context.Context, takenID string) ([]ActivityEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.taken[takenID]; !ok {
		return nil, ErrNotFound
	}
	evs := append([]ActivityEvent(nil), m.activity[takenID]...)
	sort.Slice(evs, func(i, j int) bool { return evs[i].ID > evs[j].ID })
	return evs, nil
}

func (m *memoryStore) PublishDue(_ context.Context, now int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.exams {
		if e.Status == StatusPublished && e.StartsAt <= now && e.EndsAt > now {
			e.Status = StatusOngoing
			e.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) CloseDue(_ context.Context, now int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.exams {
		if e.Status == StatusOngoing && e.EndsAt <= now {
			e.Status = StatusClosed
			e.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func cloneExam(e Exam) Exam {
	e.Years = append([]string(nil), e.Years...)
	e.Sections = append([]string(nil), e.Sections...)
	e.TOS = append([]byte(nil), e.TOS...)
	e.Items = append([]Item(nil), e.Items...)
	return e
}

func itemByID(items []Item, id string) *Item {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func page[T any](xs []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(xs) {
			return nil
		}
		xs = xs[offset:]
	}
	if limit > 0 && limit < len(xs) {
		xs = xs[:limit]
	}
	return xs
}
