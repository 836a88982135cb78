package dialogue

import "cabgo/models"

// PhraseID names one of the fixed system utterances. These are the phrases
// pre-warmed into the synthesis cache at startup.
type PhraseID string

const (
	PhraseGreeting      PhraseID = "greeting"
	PhraseAskPickup     PhraseID = "ask_pickup"
	PhraseAskDropoff    PhraseID = "ask_dropoff"
	PhraseAskVehicle    PhraseID = "ask_vehicle"
	PhraseConfirm       PhraseID = "confirm"
	PhraseProcessing    PhraseID = "processing"
	PhraseRetry         PhraseID = "retry"
	PhraseApology       PhraseID = "apology"
	PhraseBookingOK     PhraseID = "booking_ok"
	PhraseBookingFailed PhraseID = "booking_failed"
	PhraseGoodbye       PhraseID = "goodbye"
	PhraseNoPlacesFound PhraseID = "no_places_found"
	PhraseLinesBusy     PhraseID = "lines_busy"
)

var phrases = map[models.Language]map[PhraseID]string{
	models.LangEnglish: {
		PhraseGreeting:      "Hi, welcome to CabGo. Where should we pick you up?",
		PhraseAskPickup:     "Where should we pick you up?",
		PhraseAskDropoff:    "Got it. Where are you headed?",
		PhraseAskVehicle:    "Would you like an auto, a sedan, or an SUV?",
		PhraseConfirm:       "Shall I confirm this booking?",
		PhraseProcessing:    "Booking your ride now, one moment.",
		PhraseRetry:         "Sorry, I didn't catch that. Could you please repeat?",
		PhraseApology:       "I'm sorry, we're having trouble hearing you. Please call again.",
		PhraseBookingOK:     "Your cab is booked.",
		PhraseBookingFailed: "Sorry, the booking failed. Shall we try again?",
		PhraseGoodbye:       "Thank you for calling CabGo. Goodbye.",
		PhraseNoPlacesFound: "I couldn't find that place. Could you say it again?",
		PhraseLinesBusy:     "All our lines are busy right now. Please call again shortly.",
	},
	models.LangMalayalam: {
		PhraseGreeting:      "നമസ്കാരം, CabGo-യിലേക്ക് സ്വാഗതം. എവിടെ നിന്നാണ് കയറേണ്ടത്?",
		PhraseAskPickup:     "എവിടെ നിന്നാണ് കയറേണ്ടത്?",
		PhraseAskDropoff:    "ശരി. എവിടേക്കാണ് പോകേണ്ടത്?",
		PhraseAskVehicle:    "ഓട്ടോ, സെഡാൻ, അതോ എസ്‌യുവി വേണോ?",
		PhraseConfirm:       "ഈ ബുക്കിംഗ് ഉറപ്പിക്കട്ടെ?",
		PhraseProcessing:    "നിങ്ങളുടെ യാത്ര ബുക്ക് ചെയ്യുന്നു, ഒരു നിമിഷം.",
		PhraseRetry:         "ക്ഷമിക്കണം, മനസ്സിലായില്ല. ഒന്നുകൂടി പറയാമോ?",
		PhraseApology:       "ക്ഷമിക്കണം, ശബ്ദം വ്യക്തമല്ല. ദയവായി വീണ്ടും വിളിക്കുക.",
		PhraseBookingOK:     "നിങ്ങളുടെ ടാക്സി ബുക്ക് ചെയ്തു.",
		PhraseBookingFailed: "ക്ഷമിക്കണം, ബുക്കിംഗ് പരാജയപ്പെട്ടു. വീണ്ടും ശ്രമിക്കട്ടെ?",
		PhraseGoodbye:       "CabGo വിളിച്ചതിന് നന്ദി. വീണ്ടും കാണാം.",
		PhraseNoPlacesFound: "ആ സ്ഥലം കണ്ടെത്താനായില്ല. ഒന്നുകൂടി പറയാമോ?",
		PhraseLinesBusy:     "ലൈനുകൾ തിരക്കിലാണ്. അല്പസമയം കഴിഞ്ഞ് വിളിക്കുക.",
	},
	models.LangHindi: {
		PhraseGreeting:      "नमस्ते, CabGo में आपका स्वागत है। आपको कहाँ से लेना है?",
		PhraseAskPickup:     "आपको कहाँ से लेना है?",
		PhraseAskDropoff:    "ठीक है। आपको कहाँ जाना है?",
		PhraseAskVehicle:    "आपको ऑटो, सेडान या एसयूवी चाहिए?",
		PhraseConfirm:       "क्या मैं यह बुकिंग पक्की कर दूँ?",
		PhraseProcessing:    "आपकी राइड बुक की जा रही है, एक पल।",
		PhraseRetry:         "माफ़ कीजिए, समझ नहीं आया। कृपया दोबारा बोलिए।",
		PhraseApology:       "माफ़ कीजिए, आवाज़ साफ़ नहीं आ रही। कृपया फिर से कॉल करें।",
		PhraseBookingOK:     "आपकी कैब बुक हो गई है।",
		PhraseBookingFailed: "माफ़ कीजिए, बुकिंग नहीं हो पाई। फिर से कोशिश करें?",
		PhraseGoodbye:       "CabGo को कॉल करने के लिए धन्यवाद। नमस्ते।",
		PhraseNoPlacesFound: "वह जगह नहीं मिली। कृपया दोबारा बताइए।",
		PhraseLinesBusy:     "सभी लाइनें व्यस्त हैं। कृपया थोड़ी देर बाद कॉल करें।",
	},
}

// Phrase returns the fixed utterance for id in lang, falling back to
// English for languages without a translated set.
func Phrase(lang models.Language, id PhraseID) string {
	if set, ok := phrases[lang]; ok {
		if p, ok := set[id]; ok {
			return p
		}
	}
	return phrases[models.LangEnglish][id]
}
