package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ArchiveMessage is one row from the message archive API.
type ArchiveMessage struct {
	Time       string `json:"time"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	IsSelf     bool   `json:"is_self"`
}

// ArchiveClient talks to the local message archive service that holds the
// decrypted chat history.
type ArchiveClient struct {
	apiBase string
	client  *http.Client
}

func NewArchiveClient(apiBase string) *ArchiveClient {
	return &ArchiveClient{
		apiBase: apiBase,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

// Decrypt asks the archive service to decrypt the client database into
// outputPath. Slow: the archive re-reads the whole database.
func (c *ArchiveClient) Decrypt(ctx context.Context, inputPath, key, outputPath string) error {
	payload, err := json.Marshal(map[string]string{
		"input_path":  inputPath,
		"key":         key,
		"output_path": outputPath,
	})
	if err != nil {
		return fmt.Errorf("archive: marshal decrypt request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiBase+"/api/chatlog/decrypt", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("archive: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("archive: decrypt: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("archive: decrypt: HTTP %d: %s", resp.StatusCode, body)
	}
	return nil
}

// FetchMessages returns group messages between start and end, capped at limit.
func (c *ArchiveClient) FetchMessages(ctx context.Context, dbPath, group string, start, end time.Time, limit int) ([]ArchiveMessage, error) {
	q := url.Values{}
	q.Set("db_path", dbPath)
	q.Set("group", group)
	q.Set("start", start.Format("2006-01-02 15:04:05"))
	q.Set("end", end.Format("2006-01-02 15:04:05"))
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, "GET", c.apiBase+"/api/chatlog/messages?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("archive: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("archive: fetch messages: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("archive: fetch messages: HTTP %d: %s", resp.StatusCode, body)
	}

	var msgs []ArchiveMessage
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("archive: decode messages: %w", err)
	}
	return msgs, nil
}
