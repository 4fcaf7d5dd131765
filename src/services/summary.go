package services

import (
	"fmt"
	"strings"
)

const noDataSummary = "No Data Available"

const voiceListLimit = 10

// ComposeSummary builds the text the agent speaks for one classified
// turn, plus the menu items that backed it. Unknown intents fall
// through to the vague-query wording.
func ComposeSummary(menu *Menu, f Filters, message string) (string, []Item) {
	switch f.Intent {
	case IntentFilterFood:
		items := menu.Filter(f)
		listed := noDataSummary
		if len(items) > 0 {
			listed = strings.Join(VoiceSummaries(items, voiceListLimit), ", ")
		}
		return fmt.Sprintf("User asked : %q .\nSystem :- Foods that aligned with the user's preferences : %s.", message, listed), items

	case IntentGetFoodByName:
		items := menu.ByName(f.Name)
		detailed := noDataSummary
		if len(items) > 0 {
			detailed = DetailedSummary(items[0])
		}
		return fmt.Sprintf("User asked: %q.\nSystem :- Details for %q: %s", message, f.Name, detailed), items

	case IntentGeneralQuery:
		return fmt.Sprintf("User asked: %q System :- This is a general query about food. Mimi responds accordingly.", message), nil

	default:
		return fmt.Sprintf("User asked: %q System : It seems like the question is mispronounced or unclear.", message), nil
	}
}
