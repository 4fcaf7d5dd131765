package services

import "context"

// Intent values the classifier is allowed to produce. Anything else is
// treated as a vague query.
const (
	IntentFilterFood    = "filter_food"
	IntentGetFoodByName = "get_food_by_name"
	IntentGeneralQuery  = "general_query"
	IntentVagueQuery    = "vague_query"
)

// Filters is the structured intent record extracted from the model's
// reply. Pointer fields distinguish "not mentioned" from false/zero.
type Filters struct {
	Intent      string   `json:"intent"`
	Name        string   `json:"name,omitempty"`
	Spicy       *bool    `json:"spicy,omitempty"`
	Vegetarian  *bool    `json:"vegetarian,omitempty"`
	Type        string   `json:"type,omitempty"`
	MaxCalories int      `json:"maxCalories,omitempty"`
	MaxPrice    float64  `json:"maxPrice,omitempty"`
}

// Reply is one classified turn: the extracted filters, the composed
// summary the agent should speak, and the menu items that backed it.
type Reply struct {
	Filters Filters
	Summary string
	Items   []Item
}

// Responder turns the recent conversation context into a classified
// reply. contextBlock is the numbered history block; message is the
// user's latest utterance verbatim.
type Responder interface {
	Respond(ctx context.Context, contextBlock, message string) (Reply, error)
}
