package views

import "github.com/m3rciful/bookmarket/internal/messaging"

// Main menu phrases. They are reserved: sending one always leaves the submission flow.
const (
	MenuAdd    = "➕ Add listing"
	MenuBrowse = "🔎 Browse listings"
	MenuMine   = "📁 My listings"
	MenuHelp   = "❓ Help"
)

const HelpText = "I help buy and sell used textbooks and study notes.\n\n" +
	"• <b>Add listing</b>: describe your book step by step, a moderator reviews it before it goes public.\n" +
	"• <b>Browse listings</b>: open the public channel and the latest offers.\n" +
	"• <b>My listings</b>: see your submissions and their status.\n\n" +
	"Commands: /new, /browse, /my, /cancel, /help"

const WelcomeText = "Hi! This is the book market bot.\n\n" + HelpText

// MainKeyboard is the persistent reply keyboard with the menu phrases.
func MainKeyboard() [][]string {
	return [][]string{
		{MenuAdd, MenuBrowse},
		{MenuMine, MenuHelp},
	}
}

// WithMenu returns a plain text message that restores the main keyboard.
func WithMenu(text string) messaging.Message {
	return messaging.Message{Text: text, Keyboard: MainKeyboard()}
}
