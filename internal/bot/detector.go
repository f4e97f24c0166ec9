package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/chatclaw/internal/bus"
	"github.com/nextlevelbuilder/chatclaw/internal/commands"
	"github.com/nextlevelbuilder/chatclaw/internal/config"
	"github.com/nextlevelbuilder/chatclaw/internal/dedup"
	"github.com/nextlevelbuilder/chatclaw/internal/fingerprint"
	"github.com/nextlevelbuilder/chatclaw/internal/store"
	"github.com/nextlevelbuilder/chatclaw/internal/trigger"
	"github.com/nextlevelbuilder/chatclaw/internal/wechat"
)

// TableProvider exposes the live command table snapshot to the classifier.
type TableProvider interface {
	Table() *commands.Table
}

// Detector owns the polling cadence: each cycle it re-reads the visible
// window, resolves the genuinely new suffix, classifies it, and hands
// trigger events to the processor. It is the only writer of the processed
// set.
type Detector struct {
	source wechat.Source
	st     store.ProcessedStore
	cfg    *config.Holder
	cmds   TableProvider // nil when no command source is configured
	events *bus.Hub
	queue  chan<- trigger.Event
}

// NewDetector wires a detector. cmds may be nil.
func NewDetector(source wechat.Source, st store.ProcessedStore, cfg *config.Holder, cmds TableProvider, events *bus.Hub, queue chan<- trigger.Event) *Detector {
	return &Detector{source: source, st: st, cfg: cfg, cmds: cmds, events: events, queue: queue}
}

// SeedInitial marks the entire current window as processed without
// classifying anything, so startup against a fresh store never replies to
// history. Source errors are returned; the caller decides whether to
// proceed with an unseeded window.
func (d *Detector) SeedInitial(ctx context.Context) error {
	raw, err := d.source.FetchRecent(ctx)
	if err != nil {
		return fmt.Errorf("seed initial window: %w", err)
	}
	window := wechat.FilterNoise(raw)
	for i := range window {
		if err := d.st.Add(ctx, fingerprint.Compute(window, i).String()); err != nil {
			return fmt.Errorf("seed initial window: %w", err)
		}
	}
	slog.Info("seeded history", "messages", len(window))
	return nil
}

// Run polls until ctx is done. The interval is re-read from the config
// holder each cycle so hot reload takes effect without restart.
func (d *Detector) Run(ctx context.Context) error {
	slog.Info("detector started", "poll_interval", d.cfg.Current().Trigger.PollInterval())

	timer := time.NewTimer(d.cfg.Current().Trigger.PollInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("detector stopped")
			return nil
		case <-timer.C:
		}

		if err := d.cycle(ctx); err != nil {
			// Source errors retry next poll; store errors abort the
			// cycle with dedup state untouched.
			slog.Error("detection cycle failed", "error", err)
		}

		timer.Reset(d.cfg.Current().Trigger.PollInterval())
	}
}

func (d *Detector) cycle(ctx context.Context) error {
	ctx, span := otel.Tracer("chatclaw/bot").Start(ctx, "detect.cycle")
	defer span.End()

	cfg := d.cfg.Current()

	raw, err := d.source.FetchRecent(ctx)
	if err != nil {
		return fmt.Errorf("fetch window: %w", err)
	}
	window := wechat.FilterNoise(raw)
	span.SetAttributes(attribute.Int("window.size", len(window)))

	fresh, err := dedup.Resolve(ctx, window, d.st)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("window.new", len(fresh)))
	if len(fresh) == 0 {
		return d.st.Prune(ctx, cfg.Trigger.MaxProcessed)
	}

	slog.Info("new messages", "count", len(fresh))

	var table *commands.Table
	if d.cmds != nil {
		table = d.cmds.Table()
	}

	for _, msg := range fresh {
		ev := trigger.Classify(msg.Text, cfg.Trigger.Keyword, table, cfg.Images.Enabled)

		// Mark before enqueue: a crash in between drops the trigger,
		// never duplicates a reply.
		if err := d.st.Add(ctx, msg.Digest.String()); err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}
		if ev.Kind == trigger.KindNone {
			continue
		}

		slog.Info("trigger detected", "kind", ev.Kind.String(), "text", ev.Text)
		d.events.Broadcast(bus.Event{Name: "trigger", Payload: map[string]string{
			"kind": ev.Kind.String(),
			"text": ev.Text,
		}})

		select {
		case d.queue <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return d.st.Prune(ctx, cfg.Trigger.MaxProcessed)
}
