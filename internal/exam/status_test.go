package exam

import "testing"

var allStatuses = []Status{
	StatusDraft, StatusReady, StatusPublished, StatusOngoing,
	StatusClosed, StatusGraded, StatusArchived,
}

func TestTransitionMatrix(t *testing.T) {
	legal := map[Status][]Status{
		StatusDraft:     {StatusReady},
		StatusReady:     {StatusPublished, StatusDraft},
		StatusPublished: {StatusOngoing, StatusReady},
		StatusOngoing:   {StatusClosed},
		StatusClosed:    {StatusGraded},
		StatusGraded:    {StatusArchived},
		StatusArchived:  {},
	}
	isLegal := func(from, to Status) bool {
		for _, s := range legal[from] {
			if s == to {
				return true
			}
		}
		return false
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			err := Transition(from, to)
			if isLegal(from, to) && err != nil {
				t.Errorf("%s -> %s should be legal, got %v", from, to, err)
			}
			if !isLegal(from, to) && err == nil {
				t.Errorf("%s -> %s should be rejected", from, to)
			}
		}
	}
}

func TestTransitionUnknownStatus(t *testing.T) {
	if err := Transition("bogus", StatusReady); err == nil {
		t.Fatal("unknown from-status must be rejected")
	}
	if err := Transition(StatusDraft, "bogus"); err == nil {
		t.Fatal("unknown to-status must be rejected")
	}
}

func TestStatusPredicates(t *testing.T) {
	editable := map[Status]bool{StatusDraft: true, StatusReady: true}
	visible := map[Status]bool{
		StatusPublished: true, StatusOngoing: true, StatusClosed: true, StatusGraded: true,
	}
	for _, s := range allStatuses {
		if got := s.CanBeEdited(); got != editable[s] {
			t.Errorf("%s.CanBeEdited() = %v", s, got)
		}
		if got := s.VisibleToStudents(); got != visible[s] {
			t.Errorf("%s.VisibleToStudents() = %v", s, got)
		}
		if got := s.AvailableToTake(); got != (s == StatusOngoing) {
			t.Errorf("%s.AvailableToTake() = %v", s, got)
		}
	}
}
