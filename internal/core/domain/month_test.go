package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2024-12")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Year != 2024 || m.Month != time.December {
		t.Errorf("expected 2024-12, got %v", m)
	}
	if m.Next().String() != "2025-01" {
		t.Errorf("expected next 2025-01, got %s", m.Next())
	}
	if m.Prev().String() != "2024-11" {
		t.Errorf("expected prev 2024-11, got %s", m.Prev())
	}
	if !m.End().Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end %v", m.End())
	}

	if _, err := ParseMonth("2024/12"); err == nil {
		t.Error("expected error for malformed month")
	}
}

func TestMonthJSON(t *testing.T) {
	var p struct {
		Period Month `json:"period"`
	}
	if err := json.Unmarshal([]byte(`{"period":"2023-02"}`), &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	out, _ := json.Marshal(p)
	if string(out) != `{"period":"2023-02"}` {
		t.Errorf("unexpected json %s", out)
	}
}

func TestRequestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to RequestStatus
		ok       bool
	}{
		{RequestPending, RequestAccepted, true},
		{RequestPending, RequestCancelled, true},
		{RequestPending, RequestDispatched, false},
		{RequestAccepted, RequestDispatched, true},
		{RequestDispatched, RequestReceived, true},
		{RequestReceived, RequestPending, false},
		{RequestRejected, RequestAccepted, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.ok {
			t.Errorf("%s -> %s: expected %v, got %v", c.from, c.to, c.ok, got)
		}
	}
}

func TestLeaveOverlaps(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2024, 5, day, 0, 0, 0, 0, time.UTC) }
	a := Leave{StartDate: d(1), EndDate: d(3)}
	if !a.Overlaps(Leave{StartDate: d(3), EndDate: d(5)}) {
		t.Error("expected overlap on shared boundary day")
	}
	if a.Overlaps(Leave{StartDate: d(4), EndDate: d(5)}) {
		t.Error("expected no overlap")
	}
}

func TestRoleSuperior(t *testing.T) {
	if r, ok := RoleEmployee.Superior(); !ok || r != RoleManager {
		t.Errorf("employee should report to manager, got %s", r)
	}
	if r, ok := RoleManager.Superior(); !ok || r != RoleClusterHead {
		t.Errorf("manager should report to cluster head, got %s", r)
	}
	if _, ok := RoleClusterHead.Superior(); ok {
		t.Error("cluster head has no superior")
	}
}
