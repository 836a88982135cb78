package voice

import (
	"cabgo/models"
	"cabgo/services/dialogue"
	"cabgo/services/synthesis"
)

// PrewarmSet lists every fixed phrase under the style the bridge speaks it
// with, so startup prewarming fills the exact cache keys the first call
// hits. PhraseBookingOK and PhraseGoodbye are omitted: they are only ever
// spoken inside the composed completion utterance, which carries the
// booking id and cannot be rendered ahead of time.
func PrewarmSet(lang models.Language) []synthesis.PrewarmPhrase {
	styled := []struct {
		id    dialogue.PhraseID
		style synthesis.Style
	}{
		{dialogue.PhraseGreeting, synthesis.StyleUpbeat},
		{dialogue.PhraseAskPickup, synthesis.StyleNeutral},
		{dialogue.PhraseAskDropoff, synthesis.StyleNeutral},
		{dialogue.PhraseAskVehicle, synthesis.StyleNeutral},
		{dialogue.PhraseConfirm, synthesis.StyleNeutral},
		{dialogue.PhraseProcessing, synthesis.StyleNeutral},
		{dialogue.PhraseRetry, synthesis.StyleNeutral},
		{dialogue.PhraseApology, synthesis.StyleApologetic},
		{dialogue.PhraseBookingFailed, synthesis.StyleApologetic},
		{dialogue.PhraseNoPlacesFound, synthesis.StyleNeutral},
	}
	out := make([]synthesis.PrewarmPhrase, 0, len(styled))
	for _, s := range styled {
		out = append(out, synthesis.PrewarmPhrase{
			Text:  dialogue.Phrase(lang, s.id),
			Style: s.style,
		})
	}
	return out
}
