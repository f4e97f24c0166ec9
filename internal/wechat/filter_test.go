package wechat

import "testing"

func TestFilterNoise(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "keeps real messages in order",
			in:   []string{"hello there", "awsl", "再来一张"},
			want: []string{"hello there", "awsl", "再来一张"},
		},
		{
			name: "drops placeholders",
			in:   []string{"[图片]", "keep me", "[表情]", "Animated Stickers", "[视频]", "[文件]"},
			want: []string{"keep me"},
		},
		{
			name: "drops timestamps",
			in:   []string{"10:23", "23:59:01", "awsl 问个问题"},
			want: []string{"awsl 问个问题"},
		},
		{
			name: "drops short and empty",
			in:   []string{"", "S", "<", ">", "ok"},
			want: []string{"ok"},
		},
		{
			name: "single CJK rune dropped, two kept",
			in:   []string{"好", "好的"},
			want: []string{"好的"},
		},
		{
			name: "empty window",
			in:   nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterNoise(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}
