package tasks

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPatch_PresenceTracking(t *testing.T) {
	var p Patch
	if err := json.Unmarshal([]byte(`{"description": null, "status": 0}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Title.Set || p.Priority.Set || p.DueDate.Set {
		t.Fatalf("absent fields must stay unset: %+v", p)
	}
	if !p.Description.Set || p.Description.Value != "" {
		t.Fatalf("null description should be set and empty: %+v", p.Description)
	}
	if !p.Status.Set || bool(p.Status.Value) {
		t.Fatalf("status 0 should be set and false: %+v", p.Status)
	}
}

func TestFlag_Truthiness(t *testing.T) {
	cases := map[string]bool{
		`true`:    true,
		`false`:   false,
		`1`:       true,
		`0`:       false,
		`0.5`:     true,
		`"yes"`:   true,
		`""`:      false,
		`"false"`: true,
		`null`:    false,
		`[]`:      false,
		`[0]`:     true,
		`{}`:      false,
		`{"a":1}`: true,
	}
	for in, want := range cases {
		var f Flag
		if err := f.UnmarshalJSON([]byte(in)); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if bool(f) != want {
			t.Errorf("%s: expected %v, got %v", in, want, bool(f))
		}
	}
}

func TestPatch_Apply(t *testing.T) {
	base := Task{ID: 7, Title: "t", Description: "d", Priority: PriorityLow, CreatedDate: "2024-01-01", DueDate: "soon"}

	got, err := Patch{Title: Some("  new  "), DueDate: Some("")}.Apply(base)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Title != "new" || got.DueDate != "" || got.Description != "d" || got.ID != 7 || got.CreatedDate != "2024-01-01" {
		t.Fatalf("unexpected result: %+v", got)
	}

	if _, err := (Patch{Title: Some("")}).Apply(base); !errors.Is(err, ErrTitleEmpty) {
		t.Fatalf("expected ErrTitleEmpty, got %v", err)
	}
	if _, err := (Patch{Priority: Some(Priority("low"))}).Apply(base); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
}

func TestNewTask_NormalizeOrder(t *testing.T) {
	// title is checked before priority
	if _, err := (NewTask{Title: " ", Priority: "bogus"}).normalize(); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
	n, err := NewTask{Title: " a ", Description: " b ", Priority: PriorityMedium, DueDate: " c "}.normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if n.Title != "a" || n.Description != "b" || n.DueDate != " c " {
		t.Fatalf("unexpected normalization: %+v", n)
	}
}

func TestOptional_DecodeFailureLeavesUnset(t *testing.T) {
	var o Optional[string]
	if err := o.UnmarshalJSON([]byte(`5`)); err == nil {
		t.Fatalf("expected type error")
	}
	if o.Set {
		t.Fatalf("failed decode must leave the field unset: %+v", o)
	}
}

func TestDecodePatch_MistypedPriorityIsInvalidNotFieldError(t *testing.T) {
	p, err := decodePatch(map[string]json.RawMessage{"priority": json.RawMessage(`5`)})
	if err != nil {
		t.Fatalf("mistyped priority should not be a field error: %v", err)
	}
	if !p.Priority.Set || p.Priority.Value.Valid() {
		t.Fatalf("expected a present, invalid priority: %+v", p.Priority)
	}
}
