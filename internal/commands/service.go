// Package commands loads and executes dynamically described commands from a
// remote command API. The table is refreshed wholesale; execution is a
// remote call returning the reply text.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// HelpKeyword is the reserved command that lists all others and forces a
// table refresh.
const HelpKeyword = "hp"

// Service fetches the command table from the remote source and executes
// matched commands against it. The active table is swapped atomically, so
// refresh may run concurrently with classification and execution.
type Service struct {
	baseURL string
	client  *http.Client
	table   atomic.Pointer[Table]
}

// NewService creates a command service against the given API base URL.
// The table starts empty; call Refresh on startup.
func NewService(baseURL string) *Service {
	s := &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	s.table.Store(NewTable(nil))
	return s
}

// Table returns the current snapshot. Never nil.
func (s *Service) Table() *Table {
	return s.table.Load()
}

// Refresh fetches the command list and installs it as one atomic
// replacement. On any failure the previous table keeps serving.
func (s *Service) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/command/"+HelpKeyword, nil)
	if err != nil {
		return fmt.Errorf("build command list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch command list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch command list: unexpected status %d", resp.StatusCode)
	}

	var cmds []Command
	if err := json.NewDecoder(resp.Body).Decode(&cmds); err != nil {
		return fmt.Errorf("decode command list: %w", err)
	}

	table := NewTable(cmds)
	s.table.Store(table)
	slog.Info("command table refreshed", "commands", table.Len())
	return nil
}

// Execute runs a matched command remotely and returns the reply text.
func (s *Service) Execute(ctx context.Context, key, args string) (string, error) {
	full := key
	if args != "" {
		full = key + " " + args
	}

	u := s.baseURL + "/api/command?command=" + url.QueryEscape(full)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build command request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute command %q: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("execute command %q: unexpected status %d", key, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read command response: %w", err)
	}

	var out struct {
		Content string `json:"content"`
		Type    string `json:"type"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode command response: %w", err)
	}
	return out.Content, nil
}

// HelpText renders the current table's listing.
func (s *Service) HelpText() string {
	return s.Table().HelpText()
}
