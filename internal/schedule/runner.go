// Package schedule fires stored tasks on their cron expressions.
package schedule

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/chatclaw/internal/bot"
	"github.com/nextlevelbuilder/chatclaw/internal/store"
)

// Messenger is the slice of the UI adapter the runner needs.
type Messenger interface {
	SendTextTo(ctx context.Context, group, text string) error
	FindChat(ctx context.Context, name string) error
	SendImage(ctx context.Context, path string) error
}

// Runner polls the task store once a minute and dispatches due tasks.
// Sends go through the shared gate like every other outward action.
type Runner struct {
	tasks     store.TaskStore
	messenger Messenger
	gate      *bot.Gate
	gron      *gronx.Gronx
}

func NewRunner(tasks store.TaskStore, messenger Messenger, gate *bot.Gate) *Runner {
	return &Runner{tasks: tasks, messenger: messenger, gate: gate, gron: gronx.New()}
}

// Validate reports whether expr is an acceptable cron expression.
func Validate(expr string) error {
	if !gronx.New().IsValid(expr) {
		return fmt.Errorf("invalid cron expression %q", expr)
	}
	return nil
}

// Run ticks on minute boundaries until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("task runner started")

	for {
		now := time.Now()
		next := now.Truncate(time.Minute).Add(time.Minute)
		select {
		case <-ctx.Done():
			slog.Info("task runner stopped")
			return nil
		case <-time.After(next.Sub(now)):
		}
		r.tick(ctx, next)
	}
}

func (r *Runner) tick(ctx context.Context, at time.Time) {
	tasks, err := r.tasks.ListEnabled(ctx)
	if err != nil {
		slog.Error("list scheduled tasks failed", "error", err)
		return
	}

	for _, task := range tasks {
		due, err := r.gron.IsDue(task.CronExpr, at)
		if err != nil {
			slog.Error("bad cron expression", "task", task.Name, "expr", task.CronExpr, "error", err)
			continue
		}
		if !due {
			continue
		}
		if err := r.dispatch(ctx, task); err != nil {
			slog.Error("scheduled task failed", "task", task.Name, "error", err)
			continue
		}
		slog.Info("scheduled task dispatched", "task", task.Name, "targets", len(task.Targets))
	}
}

// Dispatch runs one task immediately regardless of its schedule.
func (r *Runner) Dispatch(ctx context.Context, task *store.ScheduledTask) error {
	return r.dispatch(ctx, task)
}

func (r *Runner) dispatch(ctx context.Context, task *store.ScheduledTask) error {
	switch task.MessageType {
	case store.MessageTypeImage:
		return r.sendImage(ctx, task)
	default:
		return r.sendText(ctx, task)
	}
}

func (r *Runner) sendText(ctx context.Context, task *store.ScheduledTask) error {
	for _, target := range task.Targets {
		err := r.gate.Do(func() error {
			return r.messenger.SendTextTo(ctx, target, task.Message)
		})
		if err != nil {
			return fmt.Errorf("send to %s: %w", target, err)
		}
	}
	return nil
}

func (r *Runner) sendImage(ctx context.Context, task *store.ScheduledTask) error {
	data, err := base64.StdEncoding.DecodeString(task.ImageBase64)
	if err != nil {
		return fmt.Errorf("decode task image: %w", err)
	}
	f, err := os.CreateTemp("", "chatclaw-task-*.png")
	if err != nil {
		return fmt.Errorf("task image temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write task image: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close task image: %w", err)
	}

	for _, target := range task.Targets {
		err := r.gate.Do(func() error {
			if err := r.messenger.FindChat(ctx, target); err != nil {
				return err
			}
			return r.messenger.SendImage(ctx, f.Name())
		})
		if err != nil {
			return fmt.Errorf("send image to %s: %w", target, err)
		}
	}
	return nil
}
