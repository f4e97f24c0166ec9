package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/chatclaw/internal/bus"
	"github.com/nextlevelbuilder/chatclaw/internal/config"
	"github.com/nextlevelbuilder/chatclaw/internal/trigger"
	"github.com/nextlevelbuilder/chatclaw/internal/wechat"
)

// AnswerProvider answers free-form questions.
type AnswerProvider interface {
	Ask(ctx context.Context, question string) (string, error)
}

// ImageProvider fetches a random image to a temp file. cleanup removes it
// and is safe to call exactly once after the send.
type ImageProvider interface {
	FetchRandom(ctx context.Context) (path string, cleanup func(), err error)
}

// CommandRunner executes dynamic commands and serves the help listing.
type CommandRunner interface {
	Execute(ctx context.Context, key, args string) (string, error)
	Refresh(ctx context.Context) error
	HelpText() string
}

// Processor is the single consumer of the trigger queue. It enforces the
// cooldown, resolves dynamic commands, and serializes every outward send
// through the gate. Cooldown state is owned by this goroutine alone.
type Processor struct {
	queue  <-chan trigger.Event
	gate   *Gate
	sender wechat.Sender
	cfg    *config.Holder
	events *bus.Hub

	ai     AnswerProvider // nil when no API key is configured
	images ImageProvider  // nil when disabled
	cmds   CommandRunner  // nil when no command source is configured

	lastDispatch time.Time
	now          func() time.Time
}

// NewProcessor wires a processor. ai, images and cmds may each be nil;
// the corresponding kinds are then dropped with a log line.
func NewProcessor(queue <-chan trigger.Event, gate *Gate, sender wechat.Sender, cfg *config.Holder, events *bus.Hub, ai AnswerProvider, images ImageProvider, cmds CommandRunner) *Processor {
	return &Processor{
		queue:  queue,
		gate:   gate,
		sender: sender,
		cfg:    cfg,
		events: events,
		ai:     ai,
		images: images,
		cmds:   cmds,
		now:    time.Now,
	}
}

// Run drains the queue in FIFO order until ctx is done. An event already
// being handled completes before shutdown returns.
func (p *Processor) Run(ctx context.Context) error {
	slog.Info("processor started", "cooldown", p.cfg.Current().Trigger.Cooldown())

	for {
		select {
		case <-ctx.Done():
			slog.Info("processor stopped")
			return nil
		case ev := <-p.queue:
			p.handle(ctx, ev)
		}
	}
}

// handle dispatches one event. Cooldown drops are final: deferring a
// burst would fire stale replies later.
func (p *Processor) handle(ctx context.Context, ev trigger.Event) {
	ctx, span := otel.Tracer("chatclaw/bot").Start(ctx, "dispatch",
		trace.WithAttributes(attribute.String("trigger.kind", ev.Kind.String())))
	defer span.End()

	cooldown := p.cfg.Current().Trigger.Cooldown()
	if elapsed := p.now().Sub(p.lastDispatch); elapsed < cooldown {
		slog.Info("cooldown active, dropping trigger",
			"kind", ev.Kind.String(),
			"remaining", cooldown-elapsed,
		)
		span.SetAttributes(attribute.Bool("dropped", true))
		return
	}

	sent, err := p.dispatch(ctx, ev)
	if err != nil {
		// Cooldown stays put so a follow-up trigger can retry immediately.
		slog.Error("dispatch failed", "kind", ev.Kind.String(), "error", err)
		return
	}
	if !sent {
		return
	}

	p.lastDispatch = p.now()
	p.events.Broadcast(bus.Event{Name: "dispatch", Payload: map[string]string{
		"kind": ev.Kind.String(),
	}})
}

// dispatch performs the kind-specific action. sent reports whether a
// reply actually went out; only then does the cooldown advance.
func (p *Processor) dispatch(ctx context.Context, ev trigger.Event) (sent bool, err error) {
	switch ev.Kind {
	case trigger.KindImage:
		if p.images == nil {
			slog.Warn("image trigger with no provider configured, dropping")
			return false, nil
		}
		path, cleanup, err := p.images.FetchRandom(ctx)
		if err != nil {
			return false, fmt.Errorf("fetch random image: %w", err)
		}
		defer cleanup()
		return true, p.gate.Do(func() error {
			return p.sender.SendImage(ctx, path)
		})

	case trigger.KindAI:
		if p.ai == nil {
			slog.Warn("AI trigger with no provider configured, dropping")
			return false, nil
		}
		answer, err := p.ai.Ask(ctx, ev.Question)
		if err != nil {
			return false, fmt.Errorf("ask AI: %w", err)
		}
		return true, p.gate.Do(func() error {
			return p.sender.SendText(ctx, answer)
		})

	case trigger.KindHelp:
		if p.cmds == nil {
			slog.Warn("help trigger with no command source configured, dropping")
			return false, nil
		}
		// Refresh in the background; the listing reflects the table as of
		// now and the next help reply picks up the new one.
		go func() {
			if err := p.cmds.Refresh(context.WithoutCancel(ctx)); err != nil {
				slog.Error("command table refresh failed, keeping previous", "error", err)
			}
		}()
		help := p.cmds.HelpText()
		return true, p.gate.Do(func() error {
			return p.sender.SendText(ctx, help)
		})

	case trigger.KindCommand:
		if p.cmds == nil {
			slog.Warn("command trigger with no source configured, dropping")
			return false, nil
		}
		result, err := p.cmds.Execute(ctx, ev.Command, ev.Args)
		if err != nil {
			return false, fmt.Errorf("execute %q: %w", ev.Command, err)
		}
		if result == "" {
			result = "命令执行失败: " + ev.Command
		}
		return true, p.gate.Do(func() error {
			return p.sender.SendText(ctx, result)
		})
	}
	return false, nil
}
