package core

import "strings"

// intentKeywords is the ordered keyword-match ladder from
// original_source's MetadataMiddleware._classify_intent: the first bucket
// whose keywords appear anywhere in the lowercased message wins.
var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentGreeting, []string{"hello", "hi", "hey", "안녕", "你好", "こんにちは"}},
	{IntentThanks, []string{"thank", "thanks", "감사", "谢谢", "ありがとう"}},
	{IntentFarewell, []string{"bye", "goodbye", "see you", "안녕히", "再见", "さようなら"}},
	{IntentSearchRequest, []string{"find", "search", "look for", "recommend", "suggest"}},
	{IntentDirectionsRequest, []string{"direction", "route", "how to get", "way to"}},
	{IntentItineraryRequest, []string{"itinerary", "schedule", "plan", "day trip"}},
	{IntentSaveRequest, []string{"save", "remember", "note"}},
	{IntentModification, []string{"change", "modify", "update", "instead"}},
}

var questionKeywords = []string{"what", "where", "when", "how", "why", "which", "can you"}

// ClassifyIntent buckets a user message into the closed Intent set using
// the same keyword-ladder order as the reference implementation: greeting,
// thanks, and farewell are checked first (they often co-occur with a
// question mark, e.g. "hi, how are you?", and should still read as a
// greeting), then question, then the task-oriented buckets, falling back to
// IntentGeneral.
func ClassifyIntent(message string) Intent {
	lower := strings.ToLower(message)

	for _, bucket := range intentKeywords[:3] {
		if containsAny(lower, bucket.keywords) {
			return bucket.intent
		}
	}

	if strings.Contains(message, "?") || containsAny(lower, questionKeywords) {
		return IntentQuestion
	}

	for _, bucket := range intentKeywords[3:] {
		if containsAny(lower, bucket.keywords) {
			return bucket.intent
		}
	}

	return IntentGeneral
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
