package bot

import (
	"testing"

	"github.com/m3rciful/bookmarket/internal/messaging"

	tele "gopkg.in/telebot.v4"
)

func TestRenderText(t *testing.T) {
	what, opts := render(messaging.Message{Text: "<b>hi</b>"})
	if s, ok := what.(string); !ok || s != "<b>hi</b>" {
		t.Fatalf("what=%#v", what)
	}
	if opts.ParseMode != tele.ModeHTML || opts.ReplyMarkup != nil {
		t.Fatalf("opts=%+v", opts)
	}
}

func TestRenderPhoto(t *testing.T) {
	what, _ := render(messaging.Message{Text: "caption", PhotoRef: "file-1"})
	photo, ok := what.(*tele.Photo)
	if !ok || photo.FileID != "file-1" || photo.Caption != "caption" {
		t.Fatalf("what=%#v", what)
	}
	if endpointFor(messaging.Message{PhotoRef: "x"}) != "sendPhoto" || endpointFor(messaging.Message{}) != "sendMessage" {
		t.Fatal("endpointFor mismatch")
	}
}

func TestMarkup(t *testing.T) {
	inline := markup(messaging.Message{Buttons: [][]messaging.Button{{
		{Text: "Approve", Key: "approve", Payload: "7"},
		{Text: "Channel", URL: "https://t.me/books"},
	}}})
	if len(inline.InlineKeyboard) != 1 || len(inline.InlineKeyboard[0]) != 2 {
		t.Fatalf("inline=%+v", inline.InlineKeyboard)
	}
	if btn := inline.InlineKeyboard[0][0]; btn.Unique != "approve" || btn.Data != "7" {
		t.Fatalf("data button=%+v", btn)
	}
	if btn := inline.InlineKeyboard[0][1]; btn.URL != "https://t.me/books" {
		t.Fatalf("url button=%+v", btn)
	}

	reply := markup(messaging.Message{Keyboard: [][]string{{"a", "b"}}, OneTimeKeyboard: true})
	if !reply.OneTimeKeyboard || len(reply.ReplyKeyboard) != 1 || len(reply.ReplyKeyboard[0]) != 2 {
		t.Fatalf("reply=%+v", reply)
	}

	if rm := markup(messaging.Message{RemoveKeyboard: true}); rm == nil || !rm.RemoveKeyboard {
		t.Fatalf("remove=%+v", rm)
	}
	if markup(messaging.Message{Text: "plain"}) != nil {
		t.Fatal("plain message must have no markup")
	}
}
