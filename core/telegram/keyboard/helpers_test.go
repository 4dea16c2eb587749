package keyboard

import "testing"

func TestInlineButtonsRowsLayout(t *testing.T) {
	m := InlineButtonsRows([]InlineBtn{
		{Text: "Approve", Unique: "approve", Data: "42"},
		{Text: "Reject", Unique: "reject", Data: "42"},
	}, []InlineBtn{{Text: "Channel", URL: "https://t.me/books"}})

	if len(m.InlineKeyboard) != 2 || len(m.InlineKeyboard[0]) != 2 {
		t.Fatalf("unexpected layout: %+v", m.InlineKeyboard)
	}
	approve := m.InlineKeyboard[0][0]
	if approve.Unique != "approve" || approve.Data != "42" {
		t.Fatalf("approve button = %+v", approve)
	}
	link := m.InlineKeyboard[1][0]
	if link.URL != "https://t.me/books" || link.Data != "" {
		t.Fatalf("link button = %+v", link)
	}
}

func TestReplyButtons(t *testing.T) {
	m := OneTimeReplyButtons([]string{"Yes", "No"}, []string{"Back"})
	if !m.OneTimeKeyboard || !m.ResizeKeyboard {
		t.Fatalf("flags = %+v", m)
	}
	if len(m.ReplyKeyboard) != 2 || m.ReplyKeyboard[0][1].Text != "No" {
		t.Fatalf("keyboard = %+v", m.ReplyKeyboard)
	}
}
