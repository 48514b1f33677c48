package storage

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"leafchat/internal/domain"
)

func TestTranscriptReplaceAndAppend(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	history := []domain.Message{
		{Message: "first", Username: "ana", Timestamp: ts},
		{Message: "second", Username: "bo", FileURL: "http://h/x.png", IsImage: true, Timestamp: ts.Add(time.Minute)},
	}
	if err := store.AppendMessage(ctx, "leaf", domain.Message{Message: "stale", Username: "x"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := store.ReplaceTranscript(ctx, "leaf", history); err != nil {
		t.Fatalf("ReplaceTranscript: %v", err)
	}
	if err := store.AppendMessage(ctx, "leaf", domain.SystemNotice("note", ts.Add(2*time.Minute))); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := store.AppendMessage(ctx, "other", domain.Message{Message: "elsewhere", Username: "z"}); err != nil {
		t.Fatalf("AppendMessage other: %v", err)
	}

	msgs, err := store.Recent(ctx, "leaf", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].Message != "first" || msgs[2].Message != "note" || !msgs[2].IsSystem {
		t.Fatalf("unexpected order: %+v", msgs)
	}
	if !msgs[1].IsImage || msgs[1].FileURL != "http://h/x.png" {
		t.Fatalf("attachment flags lost: %+v", msgs[1])
	}
	if !msgs[0].Timestamp.Equal(ts) {
		t.Fatalf("timestamp mismatch: %v", msgs[0].Timestamp)
	}

	tail, err := store.Recent(ctx, "leaf", 2)
	if err != nil {
		t.Fatalf("Recent tail: %v", err)
	}
	if len(tail) != 2 || tail[0].Message != "second" || tail[1].Message != "note" {
		t.Fatalf("unexpected tail: %+v", tail)
	}
}

func TestCookieJarSurvivesReopen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	server, _ := url.Parse("http://127.0.0.1:3001/api/v1/login")

	jar, err := NewCookieJar(ctx, store)
	if err != nil {
		t.Fatalf("NewCookieJar: %v", err)
	}
	jar.SetCookies(server, []*http.Cookie{
		{Name: "leafchat", Value: "session-1", Path: "/", MaxAge: 3600, HttpOnly: true},
		{Name: "gone", Value: "x", Path: "/", Expires: time.Now().Add(-time.Hour)},
	})

	reopened, err := NewCookieJar(ctx, store)
	if err != nil {
		t.Fatalf("NewCookieJar reopen: %v", err)
	}
	root, _ := url.Parse("http://127.0.0.1:3001/api/v1/users/session")
	cookies := reopened.Cookies(root)
	if len(cookies) != 1 || cookies[0].Name != "leafchat" || cookies[0].Value != "session-1" {
		t.Fatalf("unexpected cookies after reopen: %+v", cookies)
	}

	// server-side logout expires the cookie
	reopened.SetCookies(server, []*http.Cookie{{Name: "leafchat", Value: "", Path: "/", MaxAge: -1}})
	if got := reopened.Cookies(root); len(got) != 0 {
		t.Fatalf("expected no cookies after expiry, got %+v", got)
	}
	again, err := NewCookieJar(ctx, store)
	if err != nil {
		t.Fatalf("NewCookieJar again: %v", err)
	}
	if got := again.Cookies(root); len(got) != 0 {
		t.Fatalf("expired cookie was persisted: %+v", got)
	}
}

func TestClearCookies(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	jar, err := NewCookieJar(ctx, store)
	if err != nil {
		t.Fatalf("NewCookieJar: %v", err)
	}
	u, _ := url.Parse("http://localhost:3001/")
	jar.SetCookies(u, []*http.Cookie{{Name: "leafchat", Value: "v", Path: "/"}})
	if err := jar.ClearCookies(ctx); err != nil {
		t.Fatalf("ClearCookies: %v", err)
	}
	if got := jar.Cookies(u); len(got) != 0 {
		t.Fatalf("expected empty jar, got %+v", got)
	}
	reopened, _ := NewCookieJar(ctx, store)
	if got := reopened.Cookies(u); len(got) != 0 {
		t.Fatalf("expected empty table, got %+v", got)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := "sqlite://file:" + t.Name() + "?mode=memory&cache=shared"
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
