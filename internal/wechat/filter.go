package wechat

import (
	"regexp"
	"unicode/utf8"
)

// timestampRe matches bare time markers the UI interleaves with messages.
var timestampRe = regexp.MustCompile(`^[\d:]+$`)

// placeholders are UI artifacts and media markers that carry no text.
var placeholders = map[string]struct{}{
	"[图片]":              {},
	"[表情]":              {},
	"[视频]":              {},
	"[文件]":              {},
	"Image":             {},
	"Animated Stickers": {},
	"<":                 {},
	">":                 {},
	"...":               {},
}

// FilterNoise drops UI artifacts from a raw window: empty or one-rune
// strings, media placeholders, and bare timestamps. Order is preserved.
// Filtering happens before fingerprinting so a placeholder appearing or
// vanishing between polls cannot shift every digest in the window.
func FilterNoise(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, text := range raw {
		if utf8.RuneCountInString(text) < 2 {
			continue
		}
		if _, ok := placeholders[text]; ok {
			continue
		}
		if timestampRe.MatchString(text) {
			continue
		}
		out = append(out, text)
	}
	return out
}
