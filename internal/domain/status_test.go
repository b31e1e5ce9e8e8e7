package domain

import (
	"errors"
	"testing"
)

func TestTransitionLegalEdges(t *testing.T) {
	cases := []struct {
		from   Status
		action Action
		want   Status
	}{
		{StatusDraft, ActionSubmit, StatusSubmitted},
		{StatusRejected, ActionSubmit, StatusSubmitted},
		{StatusSubmitted, ActionApprove, StatusApproved},
		{StatusSubmitted, ActionReject, StatusRejected},
		{StatusApproved, ActionLock, StatusLocked},
		{StatusLocked, ActionUnlock, StatusApproved},
	}
	for _, tc := range cases {
		got, err := Transition(tc.from, tc.action)
		if err != nil {
			t.Fatalf("%s --%s-->: %v", tc.from, tc.action, err)
		}
		if got != tc.want {
			t.Fatalf("%s --%s--> %s, want %s", tc.from, tc.action, got, tc.want)
		}
	}
}

func TestTransitionIllegalEdges(t *testing.T) {
	statuses := []Status{StatusDraft, StatusSubmitted, StatusApproved, StatusRejected, StatusLocked}
	legal := map[Status][]Action{
		StatusDraft:     {ActionSubmit},
		StatusRejected:  {ActionSubmit},
		StatusSubmitted: {ActionApprove, ActionReject},
		StatusApproved:  {ActionLock},
		StatusLocked:    {ActionUnlock},
	}
	for _, from := range statuses {
		for _, action := range []Action{ActionSubmit, ActionApprove, ActionReject, ActionLock, ActionUnlock} {
			allowed := false
			for _, a := range legal[from] {
				if a == action {
					allowed = true
				}
			}
			if allowed {
				continue
			}
			got, err := Transition(from, action)
			var ise *InvalidStateError
			if !errors.As(err, &ise) {
				t.Fatalf("%s --%s--> expected InvalidStateError, got %v", from, action, err)
			}
			if got != from {
				t.Fatalf("illegal transition moved status %s -> %s", from, got)
			}
		}
	}
}

func TestEditable(t *testing.T) {
	if !StatusDraft.Editable() || !StatusRejected.Editable() {
		t.Fatalf("DRAFT and REJECTED must be editable")
	}
	for _, s := range []Status{StatusSubmitted, StatusApproved, StatusLocked} {
		if s.Editable() {
			t.Fatalf("%s must not be editable", s)
		}
	}
}
