package core

// Intent is the closed classification of a user turn's apparent purpose.
type Intent string

const (
	IntentGreeting          Intent = "greeting"
	IntentThanks            Intent = "thanks"
	IntentFarewell          Intent = "farewell"
	IntentQuestion          Intent = "question"
	IntentSearchRequest     Intent = "search_request"
	IntentDirectionsRequest Intent = "directions_request"
	IntentItineraryRequest  Intent = "itinerary_request"
	IntentSaveRequest       Intent = "save_request"
	IntentModification      Intent = "modification"
	IntentGeneral           Intent = "general"
)

// Valid reports whether i is one of the recognized intents.
func (i Intent) Valid() bool {
	switch i {
	case IntentGreeting, IntentThanks, IntentFarewell, IntentQuestion,
		IntentSearchRequest, IntentDirectionsRequest, IntentItineraryRequest,
		IntentSaveRequest, IntentModification, IntentGeneral:
		return true
	}
	return false
}

// TurnMetadata records the observable facts about one completed turn.
type TurnMetadata struct {
	TurnOrdinal       int    `json:"turn_ordinal"`
	Timestamp         int64  `json:"timestamp"`
	Intent            Intent `json:"intent"`
	ObservedLatencyMS int64  `json:"observed_latency_ms"`
	ObservedTokens    uint   `json:"observed_tokens"`
}
