package telegram

import (
	"testing"

	"github.com/m3rciful/bookmarket/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start"})
	reg.RegisterCommand("/pending", commands.Command{Handler: noop, Description: "Pending", AdminOnly: true})
	reg.RegisterCommand("/new", commands.Command{Handler: noop, Description: "New"})
	reg.RegisterCommand("help", commands.Command{Handler: noop, Description: "no slash"})
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "dup"})

	if got := len(reg.Commands()); got != 3 {
		t.Fatalf("commands = %d, want 3", got)
	}
	visible := reg.ListCommands(true)
	if len(visible) != 2 || visible[0].Text != "/new" || visible[1].Text != "/start" {
		t.Fatalf("visible = %+v", visible)
	}
	if cmd := reg.Commands()["/start"]; cmd.Description != "Start" {
		t.Fatalf("duplicate must not replace the first registration: %q", cmd.Description)
	}
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCallback("approve", noop); err != nil {
		t.Fatalf("RegisterCallback: %v", err)
	}
	if err := reg.RegisterCallback("approve", noop); err == nil {
		t.Fatal("duplicate callback must fail")
	}
	if err := reg.RegisterCallback("", noop); err == nil {
		t.Fatal("empty key must fail")
	}
	if _, ok := reg.GetCallback("approve"); !ok {
		t.Fatal("approve not found")
	}
	if reg.CallbackNotFound() == nil {
		t.Fatal("default not-found handler missing")
	}
	if got := reg.ListCallbacks(); len(got) != 1 || got[0] != "approve" {
		t.Fatalf("ListCallbacks = %v", got)
	}
}

func TestBuildPoller(t *testing.T) {
	p := BuildPoller(PollerOptions{RunMode: "webhook", Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://x"}})
	wh, ok := p.(*tele.Webhook)
	if !ok || wh.Listen != "0.0.0.0:8443" {
		t.Fatalf("webhook poller = %#v", p)
	}
	lp, ok := BuildPoller(PollerOptions{}).(*tele.LongPoller)
	if !ok || lp.Timeout.Seconds() != 10 {
		t.Fatalf("long poller = %#v", lp)
	}
}
