package store

import (
	"testing"
	"time"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return New(WithNowFunc(clock.Now)), clock
}

func TestSessionLifecycle(t *testing.T) {
	s, _ := newTestStore()

	tools := []ToolSchema{{Name: "get_weather", Description: "Get weather for a city"}}
	sess := s.CreateSession("qwen2.5-7b-instruct", tools, "You are a helpful assistant.")

	if sess.ID == "" {
		t.Fatal("expected a generated session id")
	}
	if len(sess.Messages) != 1 || sess.Messages[0].Role != RoleSystem {
		t.Fatalf("expected seeded system message, got %+v", sess.Messages)
	}

	got, ok := s.GetSession(sess.ID)
	if !ok {
		t.Fatal("GetSession failed for a fresh session")
	}
	if got.ModelID != "qwen2.5-7b-instruct" {
		t.Errorf("expected model id to round-trip, got %s", got.ModelID)
	}

	info, ok := s.GetSessionInfo(sess.ID)
	if !ok {
		t.Fatal("GetSessionInfo failed for a fresh session")
	}
	if info.ToolCount != 1 {
		t.Errorf("expected tool count 1, got %d", info.ToolCount)
	}
	if info.MessageCount != 1 {
		t.Errorf("expected message count 1, got %d", info.MessageCount)
	}
	if info.TTLRemainingMS != SessionTTL.Milliseconds() {
		t.Errorf("expected full TTL remaining after refresh, got %d", info.TTLRemainingMS)
	}
}

func TestCreateSessionWithoutSystemPrompt(t *testing.T) {
	s, _ := newTestStore()

	sess := s.CreateSession("m", nil, "")
	if len(sess.Messages) != 0 {
		t.Fatalf("expected empty log without system prompt, got %d messages", len(sess.Messages))
	}
}

func TestSessionExpiry(t *testing.T) {
	s, clock := newTestStore()

	sess := s.CreateSession("m", nil, "")

	// Just inside the window the session is still live.
	clock.Advance(SessionTTL)
	if _, ok := s.GetSession(sess.ID); !ok {
		t.Fatal("session expired at exactly TTL; expiry should be strict >")
	}

	// The read above refreshed the access time; cross the threshold now.
	clock.Advance(SessionTTL + time.Second)
	if _, ok := s.GetSession(sess.ID); ok {
		t.Fatal("expected session to be expired")
	}

	// Expiry on the read path deletes the record physically.
	if s.DeleteSession(sess.ID) {
		t.Error("expected expired record to have been removed on lookup")
	}
}

func TestSlidingWindowRefresh(t *testing.T) {
	s, clock := newTestStore()

	sess := s.CreateSession("m", nil, "")

	// Repeated reads inside the window keep the session alive well past
	// a single TTL from creation.
	for i := 0; i < 4; i++ {
		clock.Advance(20 * time.Minute)
		if _, ok := s.GetSession(sess.ID); !ok {
			t.Fatalf("session expired on read %d despite refreshes", i+1)
		}
	}
}

func TestAppendMessage(t *testing.T) {
	s, clock := newTestStore()

	sess := s.CreateSession("m", nil, "sys")

	if !s.AppendMessage(sess.ID, Message{Role: RoleUser, Content: "hi"}) {
		t.Fatal("AppendMessage failed for a live session")
	}

	got, _ := s.GetSession(sess.ID)
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != RoleSystem || got.Messages[1].Content != "hi" {
		t.Errorf("append broke message order: %+v", got.Messages)
	}

	// Unknown id: no mutation, false.
	if s.AppendMessage("nope", Message{Role: RoleUser, Content: "x"}) {
		t.Error("AppendMessage succeeded for an unknown id")
	}

	// Expired id behaves like unknown.
	clock.Advance(SessionTTL + time.Minute)
	if s.AppendMessage(sess.ID, Message{Role: RoleUser, Content: "late"}) {
		t.Error("AppendMessage succeeded for an expired session")
	}
}

func TestDeleteSessionIdempotence(t *testing.T) {
	s, _ := newTestStore()

	if s.DeleteSession("missing") {
		t.Error("deleting a non-existent id reported true")
	}

	sess := s.CreateSession("m", nil, "")
	if !s.DeleteSession(sess.ID) {
		t.Error("first delete of an existing id reported false")
	}
	if s.DeleteSession(sess.ID) {
		t.Error("second delete of the same id reported true")
	}
}

func TestCopySemantics(t *testing.T) {
	s, _ := newTestStore()

	sess := s.CreateSession("m", nil, "sys")
	got, _ := s.GetSession(sess.ID)
	got.Messages[0].Content = "tampered"
	got.Messages = append(got.Messages, Message{Role: RoleUser, Content: "sneak"})

	fresh, _ := s.GetSession(sess.ID)
	if fresh.Messages[0].Content != "sys" || len(fresh.Messages) != 1 {
		t.Error("caller mutation leaked into store state")
	}
}

func TestCleanupExpiredCountsBothStores(t *testing.T) {
	s, clock := newTestStore()

	s.CreateSession("m", nil, "")
	s.CreateSession("m", nil, "")
	s.RegisterToolSet([]ToolSchema{{Name: "t"}}, "bundle")

	clock.Advance(SessionTTL + time.Minute)

	if removed := s.CleanupExpired(); removed != 3 {
		t.Fatalf("expected 3 removed across sessions and tool sets, got %d", removed)
	}

	live := s.CreateSession("m", nil, "")
	if _, ok := s.GetSession(live.ID); !ok {
		t.Error("cleanup removed a live session")
	}
	if s.SessionCount() != 1 {
		t.Errorf("expected 1 session after cleanup, got %d", s.SessionCount())
	}
	if s.ToolSetCount() != 0 {
		t.Errorf("expected 0 tool sets after cleanup, got %d", s.ToolSetCount())
	}
}

func TestListTriggersSweep(t *testing.T) {
	s, clock := newTestStore()

	s.CreateSession("m", nil, "")
	clock.Advance(SessionTTL + time.Minute)

	if ids := s.ListSessions(); len(ids) != 0 {
		t.Fatalf("expected list to sweep expired entries, got %v", ids)
	}
}

func TestRegisterToolSetOverwrite(t *testing.T) {
	s, clock := newTestStore()

	first := s.RegisterToolSet([]ToolSchema{{Name: "a"}, {Name: "b"}}, "shared")
	if first.ID != "shared" {
		t.Fatalf("expected caller-supplied id, got %s", first.ID)
	}

	clock.Advance(10 * time.Minute)
	second := s.RegisterToolSet([]ToolSchema{{Name: "c"}}, "shared")

	if len(second.Tools) != 1 || second.Tools[0].Name != "c" {
		t.Errorf("overwrite did not replace tools: %+v", second.Tools)
	}
	if !second.CreatedAt.After(first.CreatedAt) {
		t.Error("overwrite did not reset timestamps")
	}
	if s.ToolSetCount() != 1 {
		t.Errorf("expected a single entry after overwrite, got %d", s.ToolSetCount())
	}
}

func TestGetToolSetRefreshAndExpiry(t *testing.T) {
	s, clock := newTestStore()

	ts := s.RegisterToolSet([]ToolSchema{{Name: "a"}}, "")
	if ts.ID == "" {
		t.Fatal("expected a generated tool-set id")
	}

	clock.Advance(SessionTTL)
	if _, ok := s.GetToolSet(ts.ID); !ok {
		t.Fatal("tool set expired at exactly TTL")
	}

	clock.Advance(SessionTTL + time.Second)
	if _, ok := s.GetToolSet(ts.ID); ok {
		t.Fatal("expected tool set to be expired")
	}
}

func TestReset(t *testing.T) {
	s, _ := newTestStore()

	s.CreateSession("m", nil, "")
	s.RegisterToolSet([]ToolSchema{{Name: "t"}}, "")
	s.Reset()

	if s.SessionCount() != 0 || s.ToolSetCount() != 0 {
		t.Error("Reset left records behind")
	}
}
