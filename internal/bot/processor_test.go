package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/chatclaw/internal/bus"
	"github.com/nextlevelbuilder/chatclaw/internal/trigger"
)

type fakeSender struct {
	texts  []string
	images []string
	err    error
}

func (f *fakeSender) SendText(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeSender) SendImage(_ context.Context, path string) error {
	if f.err != nil {
		return f.err
	}
	f.images = append(f.images, path)
	return nil
}

type fakeAI struct {
	answer string
	err    error
	asked  []string
}

func (f *fakeAI) Ask(_ context.Context, q string) (string, error) {
	f.asked = append(f.asked, q)
	return f.answer, f.err
}

type fakeImages struct {
	path    string
	err     error
	cleaned int
}

func (f *fakeImages) FetchRandom(_ context.Context) (string, func(), error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return f.path, func() { f.cleaned++ }, nil
}

type fakeCmds struct {
	result    string
	err       error
	refreshed chan struct{}
	executed  []string
}

func (f *fakeCmds) Execute(_ context.Context, key, args string) (string, error) {
	f.executed = append(f.executed, key+"|"+args)
	return f.result, f.err
}

func (f *fakeCmds) Refresh(_ context.Context) error {
	if f.refreshed != nil {
		f.refreshed <- struct{}{}
	}
	return nil
}

func (f *fakeCmds) HelpText() string { return "可用命令：" }

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestProcessor(sender *fakeSender, ai *fakeAI, images *fakeImages, cmds *fakeCmds) (*Processor, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	var aiP AnswerProvider
	if ai != nil {
		aiP = ai
	}
	var imgP ImageProvider
	if images != nil {
		imgP = images
	}
	var cmdP CommandRunner
	if cmds != nil {
		cmdP = cmds
	}
	p := NewProcessor(nil, &Gate{}, sender, testHolder(), bus.NewHub(), aiP, imgP, cmdP)
	p.now = clock.now
	return p, clock
}

func TestHandleImageTrigger(t *testing.T) {
	sender := &fakeSender{}
	images := &fakeImages{path: "/tmp/pic.jpg"}
	p, _ := newTestProcessor(sender, nil, images, nil)

	p.handle(context.Background(), trigger.Event{Kind: trigger.KindImage})

	if len(sender.images) != 1 || sender.images[0] != "/tmp/pic.jpg" {
		t.Fatalf("sent images = %v, want [/tmp/pic.jpg]", sender.images)
	}
	if images.cleaned != 1 {
		t.Fatalf("cleanup called %d times, want 1", images.cleaned)
	}
}

func TestHandleAITrigger(t *testing.T) {
	sender := &fakeSender{}
	ai := &fakeAI{answer: "42"}
	p, _ := newTestProcessor(sender, ai, nil, nil)

	p.handle(context.Background(), trigger.Event{Kind: trigger.KindAI, Question: "答案是什么"})

	if len(ai.asked) != 1 || ai.asked[0] != "答案是什么" {
		t.Fatalf("asked = %v", ai.asked)
	}
	if len(sender.texts) != 1 || sender.texts[0] != "42" {
		t.Fatalf("sent texts = %v, want [42]", sender.texts)
	}
}

func TestHandleCommandTrigger(t *testing.T) {
	sender := &fakeSender{}
	cmds := &fakeCmds{result: "done"}
	p, _ := newTestProcessor(sender, nil, nil, cmds)

	p.handle(context.Background(), trigger.Event{Kind: trigger.KindCommand, Command: "天气", Args: "上海"})

	if len(cmds.executed) != 1 || cmds.executed[0] != "天气|上海" {
		t.Fatalf("executed = %v", cmds.executed)
	}
	if len(sender.texts) != 1 || sender.texts[0] != "done" {
		t.Fatalf("sent texts = %v", sender.texts)
	}
}

func TestHandleHelpTrigger(t *testing.T) {
	sender := &fakeSender{}
	cmds := &fakeCmds{refreshed: make(chan struct{}, 1)}
	p, _ := newTestProcessor(sender, nil, nil, cmds)

	p.handle(context.Background(), trigger.Event{Kind: trigger.KindHelp})

	if len(sender.texts) != 1 || sender.texts[0] != "可用命令：" {
		t.Fatalf("sent texts = %v", sender.texts)
	}
	select {
	case <-cmds.refreshed:
	case <-time.After(time.Second):
		t.Fatal("help did not kick off a table refresh")
	}
}

func TestCooldownDropsBurst(t *testing.T) {
	sender := &fakeSender{}
	images := &fakeImages{path: "/tmp/a.jpg"}
	p, clock := newTestProcessor(sender, nil, images, nil)
	// Default cooldown is 10s; fire three events 2s apart.
	ev := trigger.Event{Kind: trigger.KindImage}

	p.handle(context.Background(), ev)
	clock.advance(2 * time.Second)
	p.handle(context.Background(), ev)
	clock.advance(2 * time.Second)
	p.handle(context.Background(), ev)

	if len(sender.images) != 1 {
		t.Fatalf("dispatched %d times inside cooldown, want 1", len(sender.images))
	}

	clock.advance(10 * time.Second)
	p.handle(context.Background(), ev)
	if len(sender.images) != 2 {
		t.Fatalf("dispatch after cooldown expiry: got %d sends, want 2", len(sender.images))
	}
}

func TestFailureDoesNotAdvanceCooldown(t *testing.T) {
	sender := &fakeSender{}
	ai := &fakeAI{err: errors.New("api down")}
	p, clock := newTestProcessor(sender, ai, nil, nil)

	p.handle(context.Background(), trigger.Event{Kind: trigger.KindAI, Question: "q"})
	if len(sender.texts) != 0 {
		t.Fatal("failed dispatch sent a reply")
	}

	// Provider recovers; the very next trigger must go through even though
	// the failed attempt was moments ago.
	ai.err = nil
	ai.answer = "ok"
	clock.advance(time.Second)
	p.handle(context.Background(), trigger.Event{Kind: trigger.KindAI, Question: "q"})
	if len(sender.texts) != 1 {
		t.Fatalf("recovered dispatch sends = %d, want 1", len(sender.texts))
	}
}

func TestUnconfiguredKindDoesNotAdvanceCooldown(t *testing.T) {
	sender := &fakeSender{}
	images := &fakeImages{path: "/tmp/a.jpg"}
	// No AI provider: AI triggers are dropped.
	p, clock := newTestProcessor(sender, nil, images, nil)

	p.handle(context.Background(), trigger.Event{Kind: trigger.KindAI, Question: "q"})
	clock.advance(time.Second)
	p.handle(context.Background(), trigger.Event{Kind: trigger.KindImage})

	if len(sender.images) != 1 {
		t.Fatalf("image sends = %d, want 1 (dropped AI event must not start the cooldown)", len(sender.images))
	}
}

func TestEmptyCommandResultFallback(t *testing.T) {
	sender := &fakeSender{}
	cmds := &fakeCmds{result: ""}
	p, _ := newTestProcessor(sender, nil, nil, cmds)

	p.handle(context.Background(), trigger.Event{Kind: trigger.KindCommand, Command: "x"})

	if len(sender.texts) != 1 || sender.texts[0] != "命令执行失败: x" {
		t.Fatalf("sent texts = %v", sender.texts)
	}
}
