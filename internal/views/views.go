// Package views renders listings into HTML message bodies and markups.
package views

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/bookmarket/core/telegram/format"
	"github.com/m3rciful/bookmarket/internal/listing"
	"github.com/m3rciful/bookmarket/internal/messaging"
)

// Callback keys carried by inline buttons.
const (
	KeyApprove = "approve"
	KeyReject  = "reject"
	KeyView    = "view"
	KeyFeed    = "feed"
)

// Contact fallback when the seller has no public username.
const noUsernameContact = "reply to the post or write through the bot"

const briefExcerptLen = 120

// summary is the block shared by every listing rendering.
func summary(f listing.Fields) string {
	return format.Lines(
		format.Bold(f.Title),
		format.EscapeHTML(f.Author),
		"Price: "+format.EscapeHTML(f.Price),
		"Condition: "+format.EscapeHTML(f.Condition),
	)
}

func sellerLine(f listing.Fields) string {
	if f.Username != "" {
		return "@" + format.EscapeHTML(f.Username)
	}
	return strconv.FormatInt(f.UserID, 10)
}

func publicContact(f listing.Fields) string {
	if f.Username != "" {
		return "@" + format.EscapeHTML(f.Username)
	}
	return noUsernameContact
}

// Preview is the confirmation shown before a draft is submitted.
func Preview(f listing.Fields) messaging.Message {
	text := "Check your listing:\n\n" +
		summary(f) + "\n\n" +
		format.EscapeHTML(f.Description) + "\n\n" +
		"Submit it for moderation?"
	return withPhoto(text, f.PhotoRef)
}

// Brief is the one-card summary used in "My listings" and the feed.
func Brief(l listing.Listing) messaging.Message {
	text := format.Lines(
		summary(l.Fields()),
		format.EscapeHTML(format.Truncate(l.Description, briefExcerptLen)),
		"Status: "+string(l.Status),
		fmt.Sprintf("ID: %d", l.ID),
	)
	return messaging.Message{
		Text:    text,
		Buttons: [][]messaging.Button{{{Text: "Details", Key: KeyView, Payload: strconv.FormatInt(l.ID, 10)}}},
	}
}

// Detail is the full card with seller contact and status.
func Detail(l listing.Listing) messaging.Message {
	f := l.Fields()
	text := summary(f) + "\n\n" +
		format.EscapeHTML(f.Description) + "\n\n" +
		format.Lines(
			"Seller: "+sellerLine(f),
			"Status: "+string(l.Status),
			fmt.Sprintf("ID: %d", l.ID),
		)
	return withPhoto(text, f.PhotoRef)
}

// ModerationCard is posted to the moderation chat with approve/reject actions.
func ModerationCard(l listing.Listing) messaging.Message {
	f := l.Fields()
	id := strconv.FormatInt(l.ID, 10)
	text := fmt.Sprintf("📝 <b>New listing (ID %d)</b>\n", l.ID) +
		summary(f) + "\n\n" +
		format.EscapeHTML(f.Description) + "\n\n" +
		"Seller: " + sellerLine(f)
	msg := withPhoto(text, f.PhotoRef)
	msg.Buttons = [][]messaging.Button{{
		{Text: "✅ Approve and publish", Key: KeyApprove, Payload: id},
		{Text: "❌ Reject", Key: KeyReject, Payload: id},
	}}
	return msg
}

// PublicPost is what subscribers of the public channel see.
func PublicPost(l listing.Listing) messaging.Message {
	f := l.Fields()
	text := "📚 " + summary(f) + "\n\n" +
		format.EscapeHTML(f.Description) + "\n\n" +
		format.Lines(
			"Contact the seller: "+publicContact(f),
			fmt.Sprintf("Listing ID: %d", l.ID),
		)
	return withPhoto(text, f.PhotoRef)
}

// StatusReport is posted into the moderation chat after a decision.
func StatusReport(id int64, status listing.Status) string {
	return fmt.Sprintf("Listing ID %d status: %s", id, status)
}

// withPhoto attaches the photo and keeps the body within the caption limit.
func withPhoto(text, photoRef string) messaging.Message {
	if photoRef == "" {
		return messaging.Message{Text: text}
	}
	if len([]rune(text)) > format.MaxCaptionLen {
		text = truncateHTML(text, format.MaxCaptionLen)
	}
	return messaging.Message{Text: text, PhotoRef: photoRef}
}

// truncateHTML cuts at a line boundary so no tag or entity is split.
func truncateHTML(text string, limit int) string {
	lines := strings.Split(text, "\n")
	var b strings.Builder
	for _, line := range lines {
		if len([]rune(b.String()))+len([]rune(line))+2 > limit {
			b.WriteString("…")
			break
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}
