package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command describes a slash command as registered with the bot.
// AdminOnly commands are routed through the access gate and hidden from the menu.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
}
