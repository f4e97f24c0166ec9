//go:build darwin

package wechat

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// osaAdapter drives the desktop client through AppleScript and the
// accessibility tree. Reference adapter; the pipeline only sees the
// Source/Sender contracts.
type osaAdapter struct {
	process string
}

// NewAdapter locates the running chat client and returns an adapter bound
// to it.
func NewAdapter() (Adapter, error) {
	for _, name := range []string{"WeChat", "微信"} {
		if err := exec.Command("pgrep", name).Run(); err == nil {
			slog.Info("chat client detected", "process", name)
			return &osaAdapter{process: name}, nil
		}
	}
	return nil, fmt.Errorf("chat client is not running")
}

func (a *osaAdapter) runScript(ctx context.Context, script string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "osascript", "-e", script).Output()
	if err != nil {
		return "", fmt.Errorf("osascript: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (a *osaAdapter) activate(ctx context.Context) error {
	if err := exec.CommandContext(ctx, "open", "-a", a.process).Run(); err != nil {
		return fmt.Errorf("activate window: %w", err)
	}
	time.Sleep(300 * time.Millisecond)
	return nil
}

func (a *osaAdapter) FindChat(ctx context.Context, name string) error {
	if err := a.activate(ctx); err != nil {
		return err
	}
	script := fmt.Sprintf(`
		set the clipboard to %q
		tell application "System Events"
			tell process %q
				keystroke "f" using command down
				delay 0.3
				keystroke "v" using command down
				delay 1.0
				key code 36
				delay 0.5
				key code 53
			end tell
		end tell`, name, a.process)
	if _, err := a.runScript(ctx, script); err != nil {
		return fmt.Errorf("switch to chat %q: %w", name, err)
	}
	slog.Info("switched to chat", "chat", name)
	return nil
}

func (a *osaAdapter) FetchRecent(ctx context.Context) ([]string, error) {
	if err := a.activate(ctx); err != nil {
		return nil, err
	}
	// Static texts of the message list, one per line. The accessibility
	// tree flattens stickers and timestamps into the same list; the noise
	// filter upstream handles those.
	script := fmt.Sprintf(`
		tell application "System Events"
			tell process %q
				set msgs to value of static texts of entire contents of window 1
				set out to ""
				repeat with m in msgs
					set out to out & m & linefeed
				end repeat
				return out
			end tell
		end tell`, a.process)
	out, err := a.runScript(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("read message window: %w", err)
	}
	var msgs []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			msgs = append(msgs, line)
		}
	}
	return FilterNoise(msgs), nil
}

func (a *osaAdapter) SendText(ctx context.Context, text string) error {
	if err := a.activate(ctx); err != nil {
		return err
	}
	script := fmt.Sprintf(`
		set the clipboard to %q
		tell application "System Events"
			tell process %q
				keystroke "v" using command down
				delay 0.3
				key code 36
			end tell
		end tell`, text, a.process)
	if _, err := a.runScript(ctx, script); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

func (a *osaAdapter) SendImage(ctx context.Context, path string) error {
	// Stage the image on the clipboard, then paste into the input box.
	stage := fmt.Sprintf(`
		set theFile to POSIX file %q
		try
			set the clipboard to (read theFile as JPEG picture)
		on error
			set the clipboard to (read theFile as «class PNGf»)
		end try`, path)
	if _, err := a.runScript(ctx, stage); err != nil {
		return fmt.Errorf("stage image on clipboard: %w", err)
	}

	if err := a.activate(ctx); err != nil {
		return err
	}
	paste := fmt.Sprintf(`
		tell application "System Events"
			tell process %q
				keystroke "v" using command down
				delay 0.5
				key code 36
			end tell
		end tell`, a.process)
	if _, err := a.runScript(ctx, paste); err != nil {
		return fmt.Errorf("paste image: %w", err)
	}
	return nil
}

func (a *osaAdapter) ListGroups(ctx context.Context) ([]Group, error) {
	script := fmt.Sprintf(`
		tell application "System Events"
			tell process %q
				set out to ""
				repeat with w in windows
					set out to out & (name of w) & linefeed
				end repeat
				return out
			end tell
		end tell`, a.process)
	out, err := a.runScript(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	var groups []Group
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "WeChat" || line == "微信" {
			continue
		}
		groups = append(groups, Group{Name: line, Active: true})
	}
	return groups, nil
}

func (a *osaAdapter) SendTextTo(ctx context.Context, group, text string) error {
	if err := a.FindChat(ctx, group); err != nil {
		return err
	}
	return a.SendText(ctx, text)
}
