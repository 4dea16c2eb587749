package submission

import (
	"github.com/m3rciful/bookmarket/core/telegram/state"
	"github.com/m3rciful/bookmarket/internal/listing"
	"github.com/m3rciful/bookmarket/internal/messaging"
)

// Steps of the submission form, in order.
const (
	StepTitle        state.State = "title"
	StepAuthor       state.State = "author"
	StepPrice        state.State = "price"
	StepCondition    state.State = "condition"
	StepDescription  state.State = "description"
	StepPhotoChoice  state.State = "photo_choice"
	StepWaitingPhoto state.State = "waiting_photo"
	StepConfirm      state.State = "confirm"
)

// Reply keyboard labels used inside the form.
const (
	BtnAddPhoto = "📷 Add photo"
	BtnSkip     = "⛔ Skip"
	BtnConfirm  = "✅ Confirm"
	BtnCancel   = "✏️ Cancel"
)

// Conditions are offered as shortcuts; any non-empty text is accepted.
var Conditions = []string{"New", "Good", "Used, visible wear"}

// Session is one user's draft listing.
type Session = state.Session[listing.Fields]

const (
	promptTitle        = "Let's create a listing. Send the title of the book or notes:"
	promptAuthor       = "Author / course / subject (for example: J. Smith / 2nd year):"
	promptPrice        = "Price (for example: 200 or negotiable):"
	promptCondition    = "Condition:"
	promptDescription  = "Short description (pages, notes, defects):"
	promptPhotoChoice  = "You can add a photo: tap «Add photo» or «Skip»."
	repromptPhoto      = "Choose «Add photo» or «Skip»."
	promptWaitingPhoto = "Send one photo as an image."
	repromptDocument   = "Please send the photo as an image, not as a file."
	repromptConfirm    = "Tap «Confirm» to submit the listing or «Cancel» to discard it."
	replyCancelled     = "Cancelled. You can start again from the menu."
	replyCommitFailed  = "Could not save the listing right now. Tap «Confirm» to try again."
	replyCommitBroken  = "Something is missing in this listing. Please start again from the menu."
	replyCreated       = "Listing created (ID %d) and sent for moderation. ✅"
)

// textStep describes one free-text field of the form.
type textStep struct {
	prompt messaging.Message
	next   state.State
	set    func(f *listing.Fields, v string)
}

var textSteps = map[state.State]textStep{
	StepTitle: {
		prompt: messaging.Message{Text: promptTitle, RemoveKeyboard: true},
		next:   StepAuthor,
		set:    func(f *listing.Fields, v string) { f.Title = v },
	},
	StepAuthor: {
		prompt: messaging.Message{Text: promptAuthor},
		next:   StepPrice,
		set:    func(f *listing.Fields, v string) { f.Author = v },
	},
	StepPrice: {
		prompt: messaging.Message{Text: promptPrice},
		next:   StepCondition,
		set:    func(f *listing.Fields, v string) { f.Price = v },
	},
	StepCondition: {
		prompt: messaging.Message{Text: promptCondition, Keyboard: [][]string{Conditions}, OneTimeKeyboard: true},
		next:   StepDescription,
		set:    func(f *listing.Fields, v string) { f.Condition = v },
	},
	StepDescription: {
		prompt: messaging.Message{Text: promptDescription, RemoveKeyboard: true},
		next:   StepPhotoChoice,
		set:    func(f *listing.Fields, v string) { f.Description = v },
	},
}

func photoChoicePrompt(text string) messaging.Message {
	return messaging.Message{Text: text, Keyboard: [][]string{{BtnAddPhoto, BtnSkip}}, OneTimeKeyboard: true}
}

func confirmPrompt(text string) messaging.Message {
	return messaging.Message{Text: text, Keyboard: [][]string{{BtnConfirm, BtnCancel}}}
}

// promptFor returns what the user sees when a session enters st.
func promptFor(st state.State, f listing.Fields) messaging.Message {
	if ts, ok := textSteps[st]; ok {
		return ts.prompt
	}
	switch st {
	case StepPhotoChoice:
		return photoChoicePrompt(promptPhotoChoice)
	case StepWaitingPhoto:
		return messaging.Message{Text: promptWaitingPhoto, RemoveKeyboard: true}
	case StepConfirm:
		return previewPrompt(f)
	}
	return messaging.Message{}
}
