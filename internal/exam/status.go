package exam

// Status is the lifecycle state of an exam. Transitions are restricted to the
// allow-list below; anything else is rejected with ErrIllegalTransition and
// the stored status stays untouched.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusReady     Status = "ready"
	StatusPublished Status = "published"
	StatusOngoing   Status = "ongoing"
	StatusClosed    Status = "closed"
	StatusGraded    Status = "graded"
	StatusArchived  Status = "archived"
)

// transitions is the single source of truth for legal status edges.
// ready->draft and published->ready are the only backward edges.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusReady},
	StatusReady:     {StatusPublished, StatusDraft},
	StatusPublished: {StatusOngoing, StatusReady},
	StatusOngoing:   {StatusClosed},
	StatusClosed:    {StatusGraded},
	StatusGraded:    {StatusArchived},
	StatusArchived:  {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether the edge s->to is in the allow-list.
func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition validates the edge from->to. It never mutates anything; callers
// persist the new status only when the returned error is nil.
func Transition(from, to Status) error {
	if !from.Valid() || !to.Valid() {
		return ErrIllegalTransition
	}
	if !from.CanTransitionTo(to) {
		return ErrIllegalTransition
	}
	return nil
}

// CanBeEdited reports whether items may be added, changed or removed.
func (s Status) CanBeEdited() bool {
	return s == StatusDraft || s == StatusReady
}

// VisibleToStudents reports whether students may see the exam at all.
func (s Status) VisibleToStudents() bool {
	switch s {
	case StatusPublished, StatusOngoing, StatusClosed, StatusGraded:
		return true
	}
	return false
}

// AvailableToTake reports whether students may start, continue or submit.
func (s Status) AvailableToTake() bool {
	return s == StatusOngoing
}

// TakenStatus is the state of one student's attempt.
type TakenStatus string

const (
	TakenInProgress TakenStatus = "in_progress"
	TakenSubmitted  TakenStatus = "submitted"
	TakenGraded     TakenStatus = "graded"
)
