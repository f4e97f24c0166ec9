package commands

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTable_MatchExact(t *testing.T) {
	table := NewTable([]Command{
		{Key: "天气", Description: "今日天气"},
		{Key: "help me", Description: "something"},
	})

	key, args, ok := table.Match("天气")
	if !ok || key != "天气" || args != "" {
		t.Errorf("Match(天气) = (%q,%q,%v)", key, args, ok)
	}

	if _, _, ok := table.Match("天气预报"); ok {
		t.Error("exact key must not prefix-match longer text")
	}
}

func TestTable_MatchPrefixWithArgs(t *testing.T) {
	table := NewTable([]Command{{Key: "weather ", Description: "city weather"}})

	key, args, ok := table.Match("weather tokyo")
	if !ok || key != "weather" || args != "tokyo" {
		t.Errorf("got (%q,%q,%v), want (weather,tokyo,true)", key, args, ok)
	}

	// No separating space needed after the prefix.
	key, args, ok = table.Match("weathertokyo")
	if !ok || key != "weather" || args != "tokyo" {
		t.Errorf("got (%q,%q,%v), want (weather,tokyo,true)", key, args, ok)
	}

	// Prefix commands need non-empty args.
	if _, _, ok := table.Match("weather"); ok {
		t.Error("prefix command without args must not match")
	}
	if _, _, ok := table.Match("weather   "); ok {
		t.Error("whitespace-only args must not match")
	}
}

func TestTable_LongestKeyWins(t *testing.T) {
	table := NewTable([]Command{
		{Key: "s", Description: "short"},
		{Key: "ss", Description: "long"},
	})

	key, _, ok := table.Match("ss")
	if !ok || key != "ss" {
		t.Errorf("Match(ss) resolved to %q, want ss", key)
	}
}

func TestTable_CaseInsensitiveKeepsArgCase(t *testing.T) {
	table := NewTable([]Command{{Key: "Echo ", Description: "repeat"}})

	key, args, ok := table.Match("ECHO Hello World")
	if !ok || key != "echo" || args != "Hello World" {
		t.Errorf("got (%q,%q,%v)", key, args, ok)
	}
}

func TestNewTable_FiltersHelpCommand(t *testing.T) {
	table := NewTable([]Command{
		{Key: "hp", Description: "help"},
		{Key: " HP ", Description: "help again"},
		{Key: "real", Description: "kept"},
	})
	if table.Len() != 1 {
		t.Errorf("table has %d commands, want 1", table.Len())
	}
	if _, _, ok := table.Match("hp"); ok {
		t.Error("hp must never resolve through the table")
	}
}

func TestTable_HelpTextAligned(t *testing.T) {
	table := NewTable([]Command{
		{Key: "s", Description: "status"},
		{Key: "weather ", Description: "city weather"},
	})
	text := table.HelpText()
	if !strings.Contains(text, "status") || !strings.Contains(text, "city weather") {
		t.Errorf("help text missing descriptions: %q", text)
	}
}

func TestService_RefreshSwapsWholesale(t *testing.T) {
	payload := []Command{{Key: "one", Description: "first"}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/command/hp" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(payload)
	}))
	defer srv.Close()

	svc := NewService(srv.URL)
	if svc.Table().Len() != 0 {
		t.Fatal("table must start empty")
	}

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	old := svc.Table()
	if old.Len() != 1 {
		t.Fatalf("table has %d commands, want 1", old.Len())
	}

	payload = []Command{{Key: "two", Description: "second"}, {Key: "three", Description: "third"}}
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The old snapshot is untouched; the new one is complete.
	if old.Len() != 1 {
		t.Error("refresh mutated a published snapshot")
	}
	if svc.Table().Len() != 2 {
		t.Errorf("new table has %d commands, want 2", svc.Table().Len())
	}
}

func TestService_RefreshFailureKeepsOldTable(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode([]Command{{Key: "keep", Description: "kept"}})
	}))
	defer srv.Close()

	svc := NewService(srv.URL)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := svc.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh failure")
	}
	if _, _, ok := svc.Table().Match("keep"); !ok {
		t.Error("failed refresh must keep serving the previous table")
	}
}

func TestService_Execute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("command"); got != "weather tokyo" {
			t.Errorf("command query = %q, want %q", got, "weather tokyo")
		}
		json.NewEncoder(w).Encode(map[string]string{"content": "sunny", "type": "text"})
	}))
	defer srv.Close()

	svc := NewService(srv.URL)
	out, err := svc.Execute(context.Background(), "weather", "tokyo")
	if err != nil {
		t.Fatal(err)
	}
	if out != "sunny" {
		t.Errorf("Execute = %q, want sunny", out)
	}
}
