// Package tools defines the call contracts for the domain tools the agent
// invokes as leaf effect handlers (spec §1 "Out of scope... domain tools
// (place search, directions, translation, itinerary construction) — these
// are leaf effect handlers invoked by the agent with well-defined call
// signatures"). Implementing these against the Naver/Papago APIs is a
// named non-goal ("domain-specific tool implementations"); this package
// exists only so engine/agent can depend on a stable Go interface per
// tool, each grounded on the request/response shape of its
// original_source counterpart (src/tools/naver/place_search.py,
// src/tools/naver/directions.py, src/tools/i18n/translation.py,
// src/tools/travel/itinerary.py).
package tools

import "context"

// Name is the closed set of domain tools core.ToolCall.Name may reference.
type Name string

const (
	NamePlaceSearch Name = "place_search"
	NameDirections  Name = "directions"
	NameTranslation Name = "translation"
	NameItinerary   Name = "itinerary"
)

// Coordinates is a geographic point, grounded on directions.py's
// Coordinates model.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// PlaceSearchInput mirrors place_search.py's PlaceSearchInput.
type PlaceSearchInput struct {
	Query   string
	Display int // 1-5, caller should clamp
}

// Place mirrors place_search.py's PlaceResult.
type Place struct {
	Name        string
	NameKorean  string
	Address     string
	RoadAddress string
	Category    string
	Telephone   string
	Coordinates *Coordinates
	Link        string
	Description string
}

// PlaceSearcher finds places matching a query (e.g. "Gangnam restaurant").
type PlaceSearcher interface {
	SearchPlaces(ctx context.Context, input PlaceSearchInput) ([]Place, error)
}

// DirectionsInput mirrors directions.py's request shape: named origin and
// destination resolved to coordinates by the implementation.
type DirectionsInput struct {
	Origin      string
	Destination string
}

// RouteSegment mirrors directions.py's RouteSegment.
type RouteSegment struct {
	Instruction     string
	DistanceMeters  int
	DurationSeconds int
}

// Directions mirrors directions.py's DirectionsResult.
type Directions struct {
	Origin               string
	Destination          string
	TotalDistanceKM      float64
	TotalDurationMinutes int
	TollFareKRW          int
	EstimatedFuelCostKRW int
	EstimatedTaxiFareKRW int
	Summary              string
	Segments             []RouteSegment
}

// DirectionsFinder computes a route between two named locations.
type DirectionsFinder interface {
	GetDirections(ctx context.Context, input DirectionsInput) (*Directions, error)
}

// SupportedLanguages mirrors translation.py's SUPPORTED_LANGUAGES key set
// (Papago's supported targets).
var SupportedLanguages = []string{"ko", "en", "ja", "zh-CN", "zh-TW", "vi", "id", "th", "de", "ru", "es", "it", "fr"}

// Translation mirrors translation.py's TranslationResult.
type Translation struct {
	OriginalText   string
	TranslatedText string
	SourceLanguage string
	TargetLanguage string
}

// Translator translates text between two of SupportedLanguages, detecting
// the source language when sourceLanguage is empty.
type Translator interface {
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (*Translation, error)
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// ItineraryRequest describes the trip itinerary.py builds a plan for.
type ItineraryRequest struct {
	DestinationArea string
	DurationDays    int
	StartDate       string // YYYY-MM-DD, optional
	Interests       []string
	BudgetTier      string
}

// ItineraryItem mirrors itinerary.py's ItineraryItem.
type ItineraryItem struct {
	TimeStart        string
	TimeEnd          string
	Activity         string
	Location         string
	LocationKorean   string
	Category         string
	DurationMinutes  int
	Notes            string
	EstimatedCostKRW int
}

// DayItinerary mirrors itinerary.py's DayItinerary.
type DayItinerary struct {
	DayNumber          int
	Date               string
	Theme              string
	Items              []ItineraryItem
	TotalEstimatedCost int
}

// Itinerary mirrors itinerary.py's TravelItinerary.
type Itinerary struct {
	Title              string
	DurationDays       int
	StartDate          string
	Days               []DayItinerary
	TotalEstimatedCost int
	Tips               []string
}

// ItineraryBuilder composes a multi-day travel plan, typically by calling
// a PlaceSearcher and DirectionsFinder internally.
type ItineraryBuilder interface {
	BuildItinerary(ctx context.Context, req ItineraryRequest) (*Itinerary, error)
}

// Registry looks up a tool implementation by name for dispatching a
// core.ToolCall. Implementations register the subset of tools they
// support; a missing tool is a caller error, not a panic.
type Registry struct {
	placeSearch PlaceSearcher
	directions  DirectionsFinder
	translation Translator
	itinerary   ItineraryBuilder
}

// NewRegistry builds a Registry from whichever tool implementations the
// caller has wired; any argument may be nil.
func NewRegistry(placeSearch PlaceSearcher, directions DirectionsFinder, translation Translator, itinerary ItineraryBuilder) *Registry {
	return &Registry{placeSearch: placeSearch, directions: directions, translation: translation, itinerary: itinerary}
}

// PlaceSearcher returns the registered implementation, or nil if none.
func (r *Registry) PlaceSearcher() PlaceSearcher { return r.placeSearch }

// DirectionsFinder returns the registered implementation, or nil if none.
func (r *Registry) DirectionsFinder() DirectionsFinder { return r.directions }

// Translator returns the registered implementation, or nil if none.
func (r *Registry) Translator() Translator { return r.translation }

// ItineraryBuilder returns the registered implementation, or nil if none.
func (r *Registry) ItineraryBuilder() ItineraryBuilder { return r.itinerary }
