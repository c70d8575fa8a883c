package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lucerna/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func msgAt(id, user string, at time.Time) models.Message {
	return models.Message{
		ID:         id,
		UserID:     user,
		Model:      "gpt-4",
		Role:       "user",
		Content:    "hello " + id,
		TokenCount: 3,
		CreatedAt:  at,
	}
}

func TestReadyTracksLifecycle(t *testing.T) {
	s := openTestStore(t)
	if !s.Ready() {
		t.Fatal("open store must report ready")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if s.Ready() {
		t.Fatal("closed store must not report ready")
	}
	var nilStore *Store
	if nilStore.Ready() {
		t.Fatal("nil store must not report ready")
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Microsecond)
	m := models.Message{
		ID:          "m1",
		UserID:      "u1",
		AggregateID: "conv-1",
		Model:       "gpt-4",
		Role:        "assistant",
		Content:     "hi there",
		TokenCount:  2,
		CreatedAt:   now,
	}
	if err := s.SaveMessage(m); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	got, ok, err := s.GetMessage("m1")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if !ok {
		t.Fatal("expected message to exist")
	}
	if got.ID != m.ID || got.UserID != m.UserID || got.AggregateID != m.AggregateID ||
		got.Model != m.Model || got.Role != m.Role || got.Content != m.Content ||
		got.TokenCount != m.TokenCount || !got.CreatedAt.Equal(m.CreatedAt) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, m)
	}
}

func TestGetMessageAbsent(t *testing.T) {
	s := openTestStore(t)
	got, ok, err := s.GetMessage("definitely-not-there")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if ok || got != nil {
		t.Fatalf("expected absent, got %+v", got)
	}
}

func TestSaveDuplicateIDFails(t *testing.T) {
	s := openTestStore(t)
	m := msgAt("dup", "u1", time.Now().UTC())
	if err := s.SaveMessage(m); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveMessage(m); err == nil {
		t.Fatal("expected duplicate id save to fail")
	}
}

func TestQueryTimeRangeInclusive(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		m := msgAt(fmt.Sprintf("m%d", i), "u1", base.Add(time.Duration(i)*time.Hour))
		if err := s.SaveMessage(m); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	// window [base+30m, base+90m] should catch exactly the base+1h message
	got, err := s.Query(
		Gte(FieldCreatedAt, base.Add(30*time.Minute)),
		Lte(FieldCreatedAt, base.Add(90*time.Minute)),
	)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("expected [m1], got %+v", got)
	}

	// bounds are inclusive
	got, err = s.Query(
		Gte(FieldCreatedAt, base),
		Lte(FieldCreatedAt, base.Add(2*time.Hour)),
	)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
}

func TestQueryFieldPredicates(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	msgs := []models.Message{
		{ID: "a", UserID: "u1", AggregateID: "c1", Model: "gpt-4", Role: "user", Content: "x", TokenCount: 5, CreatedAt: now},
		{ID: "b", UserID: "u2", AggregateID: "c1", Model: "gpt-4o", Role: "assistant", Content: "y", TokenCount: 50, CreatedAt: now.Add(time.Second)},
		{ID: "c", UserID: "u1", AggregateID: "", Model: "gpt-4", Role: "system", Content: "z", TokenCount: 1, CreatedAt: now.Add(2 * time.Second)},
	}
	for _, m := range msgs {
		if err := s.SaveMessage(m); err != nil {
			t.Fatalf("save %s: %v", m.ID, err)
		}
	}

	got, err := s.Query(Eq(FieldUserID, "u1"))
	if err != nil {
		t.Fatalf("Query eq: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("eq user_id: expected 2, got %d", len(got))
	}
	for _, m := range got {
		if m.UserID != "u1" {
			t.Fatalf("eq user_id returned %s", m.UserID)
		}
	}

	// equality on an empty aggregate id is a real filter, not a no-op
	got, err = s.Query(Eq(FieldAggregateID, ""))
	if err != nil {
		t.Fatalf("Query eq empty: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("eq empty aggregate_id: expected [c], got %+v", got)
	}

	got, err = s.Query(Ne(FieldRole, "user"), Gt(FieldTokenCount, 10))
	if err != nil {
		t.Fatalf("Query ne/gt: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("ne+gt: expected [b], got %+v", got)
	}

	got, err = s.Query(In(FieldModel, "gpt-4o", "gpt-4o-mini"))
	if err != nil {
		t.Fatalf("Query in: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("in model: expected [b], got %+v", got)
	}

	// empty predicate set returns everything, in created_at order
	got, err = s.Query()
	if err != nil {
		t.Fatalf("Query all: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("all: expected 3, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.Before(got[i-1].CreatedAt) {
			t.Fatalf("results out of created_at order: %+v", got)
		}
	}

	if _, err := s.Query(Eq("no_such_field", "x")); err == nil {
		t.Fatal("expected unknown field to error")
	}
}

func TestConcurrentSaves(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := msgAt(fmt.Sprintf("c%d", i), "u1", now)
			errs <- s.SaveMessage(m)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent save: %v", err)
		}
	}
	got, err := s.Query(Eq(FieldUserID, "u1"))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 50 {
		t.Fatalf("expected 50 messages, got %d", len(got))
	}
}

func TestDeleteOlderThan(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := s.SaveMessage(msgAt(fmt.Sprintf("r%d", i), "u1", base.AddDate(0, 0, i))); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	n, err := s.DeleteOlderThan(base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pruned, got %d", n)
	}
	left, err := s.Query()
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(left) != 3 {
		t.Fatalf("expected 3 left, got %d", len(left))
	}
	// id index entries for pruned records are gone too
	if _, ok, err := s.GetMessage("r0"); err != nil || ok {
		t.Fatalf("expected r0 absent, ok=%v err=%v", ok, err)
	}
}
