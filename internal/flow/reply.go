package flow

import (
	"strings"
	"unicode/utf8"
)

// Callback endpoint keys carried by inline buttons the machine emits.
const (
	CallbackConfirmAddress = "addr"
	CallbackTaskPick       = "task"
	CallbackTaskPage       = "page"
)

// Button is one inline keyboard button, transport-free. Unique is the
// callback endpoint key, Data its payload.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Document is a file attachment to deliver to the user.
type Document struct {
	Path     string
	FileName string
	Caption  string
}

// Reply is one outbound message produced by a transition. Edit asks the
// transport to edit the triggering callback message instead of sending a new
// one; it is ignored for plain messages.
type Reply struct {
	Text     string
	Keyboard [][]string
	Inline   [][]Button
	Document *Document
	Edit     bool
}

func text(s string) Reply {
	return Reply{Text: s}
}

// chunked splits an oversized message at the transport's rune limit and
// returns one Reply per chunk.
func chunked(s string, limit int) []Reply {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return []Reply{text(s)}
	}
	var replies []Reply
	runes := []rune(s)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		replies = append(replies, text(string(runes[start:end])))
	}
	return replies
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
