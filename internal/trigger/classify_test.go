package trigger

import (
	"testing"

	"github.com/nextlevelbuilder/chatclaw/internal/commands"
)

const kw = "awsl"

func TestClassify_HelpBeatsCommandTable(t *testing.T) {
	// Even with a command literally named "hp" in the remote list, the
	// table filters it and "awsl hp" always classifies as help.
	table := commands.NewTable([]commands.Command{
		{Key: "hp", Description: "imposter"},
		{Key: "awsl hp", Description: "another imposter"},
	})

	ev := Classify("awsl hp", kw, table, true)
	if ev.Kind != KindHelp {
		t.Errorf("Classify(awsl hp) = %v, want help", ev.Kind)
	}
}

func TestClassify_AIQuestion(t *testing.T) {
	ev := Classify("awsl what is the weather", kw, nil, true)
	if ev.Kind != KindAI {
		t.Fatalf("kind = %v, want ai", ev.Kind)
	}
	if ev.Question != "what is the weather" {
		t.Errorf("question = %q", ev.Question)
	}
}

func TestClassify_BareKeyword(t *testing.T) {
	// With the image provider enabled the bare keyword sends an image.
	if ev := Classify("awsl", kw, nil, true); ev.Kind != KindImage {
		t.Errorf("images on: kind = %v, want image", ev.Kind)
	}

	// Disabled, it must never trigger a reply.
	if ev := Classify("awsl", kw, nil, false); ev.Kind != KindNone {
		t.Errorf("images off: kind = %v, want none", ev.Kind)
	}
	if ev := Classify("awsl   ", kw, nil, false); ev.Kind != KindNone {
		t.Errorf("trailing whitespace: kind = %v, want none", ev.Kind)
	}
}

func TestClassify_CaseInsensitiveKeyword(t *testing.T) {
	ev := Classify("AWSL tell me a joke", kw, nil, true)
	if ev.Kind != KindAI || ev.Question != "tell me a joke" {
		t.Errorf("got %+v", ev)
	}
}

func TestClassify_DynamicCommandWithoutPrefix(t *testing.T) {
	table := commands.NewTable([]commands.Command{
		{Key: "weather ", Description: "city weather"},
		{Key: "菜谱", Description: "random recipe"},
	})

	ev := Classify("weather tokyo", kw, table, true)
	if ev.Kind != KindCommand || ev.Command != "weather" || ev.Args != "tokyo" {
		t.Errorf("got %+v", ev)
	}

	ev = Classify("菜谱", kw, table, true)
	if ev.Kind != KindCommand || ev.Command != "菜谱" {
		t.Errorf("got %+v", ev)
	}
}

func TestClassify_None(t *testing.T) {
	table := commands.NewTable([]commands.Command{{Key: "real", Description: "d"}})
	for _, text := range []string{"hello there", "totally unrelated", "awslish"} {
		ev := Classify(text, kw, table, true)
		if text == "awslish" {
			// "awslish" starts with the keyword; trailing "ish" becomes an
			// AI question, matching the reference prefix behavior.
			if ev.Kind != KindAI {
				t.Errorf("Classify(%q) = %v, want ai", text, ev.Kind)
			}
			continue
		}
		if ev.Kind != KindNone {
			t.Errorf("Classify(%q) = %v, want none", text, ev.Kind)
		}
	}
}

func TestClassify_SenderPrefixStripped(t *testing.T) {
	tests := []struct {
		text string
		kind Kind
	}{
		{"张三: awsl", KindImage},
		{"李四：awsl 讲个笑话", KindAI},
		{"bob: weather tokyo", KindCommand},
	}
	table := commands.NewTable([]commands.Command{{Key: "weather ", Description: "d"}})

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			ev := Classify(tt.text, kw, table, true)
			if ev.Kind != tt.kind {
				t.Errorf("Classify(%q) = %v, want %v", tt.text, ev.Kind, tt.kind)
			}
		})
	}
}

func TestClassify_NilTable(t *testing.T) {
	if ev := Classify("weather tokyo", kw, nil, true); ev.Kind != KindNone {
		t.Errorf("nil table: kind = %v, want none", ev.Kind)
	}
}
