package services

import (
	"strings"
	"testing"
)

func boolp(b bool) *bool { return &b }

func testMenu() *Menu {
	return NewMenu([]Item{
		{Name: "Paneer Tikka", Type: "starter", Vegetarian: true, Spicy: true, Calories: 320, Price: 8.5, PreparationTime: 15, Description: "Char-grilled cottage cheese."},
		{Name: "Butter Chicken", Type: "main", Vegetarian: false, Spicy: false, Calories: 650, Price: 14, PreparationTime: 25, Description: "Creamy tomato gravy."},
		{Name: "Chicken Vindaloo", Type: "main", Vegetarian: false, Spicy: true, Calories: 540, Price: 13, PreparationTime: 30, Description: "Fiery Goan curry."},
		{Name: "Mango Lassi", Type: "drink", Vegetarian: true, Spicy: false, Calories: 210, Price: 4, PreparationTime: 5, Description: "Yogurt and mango."},
	})
}

func TestMenu_FilterCombinesAllSetFields(t *testing.T) {
	m := testMenu()

	got := m.Filter(Filters{Vegetarian: boolp(true), MaxPrice: 5})
	if len(got) != 1 || got[0].Name != "Mango Lassi" {
		t.Fatalf("got %v", got)
	}

	got = m.Filter(Filters{Spicy: boolp(true)})
	if len(got) != 2 {
		t.Errorf("spicy filter matched %d items, want 2", len(got))
	}

	got = m.Filter(Filters{Type: "MAIN", MaxCalories: 600})
	if len(got) != 1 || got[0].Name != "Chicken Vindaloo" {
		t.Errorf("got %v", got)
	}
}

func TestMenu_FilterEmptyMatchesEverything(t *testing.T) {
	m := testMenu()
	if got := m.Filter(Filters{}); len(got) != m.Len() {
		t.Errorf("empty filter matched %d of %d", len(got), m.Len())
	}
}

func TestMenu_ByNameRanksClosestFirst(t *testing.T) {
	m := testMenu()

	// Both chicken dishes are candidates; the higher-similarity name
	// ranks first.
	got := m.ByName("chicken")
	if len(got) != 2 {
		t.Fatalf("matched %d items, want 2", len(got))
	}
	if got[0].Name != "Butter Chicken" {
		t.Errorf("ranked %q first, want Butter Chicken", got[0].Name)
	}
}

func TestMenu_ByNameRequiresEveryWordAsSubstring(t *testing.T) {
	// The candidate gate matches the spoken words literally in order;
	// a misspelled word yields no candidates, so Levenshtein ranking
	// never gets a say.
	m := testMenu()
	if got := m.ByName("butter chiken"); len(got) != 0 {
		t.Errorf("misspelled word matched %v", got)
	}
}

func TestMenu_ByNameEmptyOrUnknown(t *testing.T) {
	m := testMenu()
	if got := m.ByName("   "); got != nil {
		t.Errorf("blank name matched %v", got)
	}
	if got := m.ByName("sushi platter"); len(got) != 0 {
		t.Errorf("unknown name matched %v", got)
	}
}

func TestComposeSummary_FilterFood(t *testing.T) {
	m := testMenu()
	summary, items := ComposeSummary(m, Filters{Intent: IntentFilterFood, Spicy: boolp(true)}, "something spicy please")
	if len(items) != 2 {
		t.Fatalf("items = %v", items)
	}
	if !strings.Contains(summary, "Paneer Tikka") || !strings.Contains(summary, "Chicken Vindaloo") {
		t.Errorf("summary missing item names: %q", summary)
	}
	if !strings.Contains(summary, `"something spicy please"`) {
		t.Errorf("summary missing user message: %q", summary)
	}
}

func TestComposeSummary_FilterFoodNoMatches(t *testing.T) {
	m := testMenu()
	summary, items := ComposeSummary(m, Filters{Intent: IntentFilterFood, MaxPrice: 0.5}, "anything under fifty cents")
	if len(items) != 0 {
		t.Fatalf("items = %v", items)
	}
	if !strings.Contains(summary, noDataSummary) {
		t.Errorf("summary = %q", summary)
	}
}

func TestComposeSummary_ByNameDetails(t *testing.T) {
	m := testMenu()
	summary, items := ComposeSummary(m, Filters{Intent: IntentGetFoodByName, Name: "mango lassi"}, "tell me about the mango lassi")
	if len(items) == 0 || items[0].Name != "Mango Lassi" {
		t.Fatalf("items = %v", items)
	}
	if !strings.Contains(summary, "210 calories") || !strings.Contains(summary, "$4.00") {
		t.Errorf("summary = %q", summary)
	}
}

func TestComposeSummary_GeneralAndVague(t *testing.T) {
	m := testMenu()

	summary, items := ComposeSummary(m, Filters{Intent: IntentGeneralQuery}, "is indian food healthy")
	if items != nil || !strings.Contains(summary, "general query") {
		t.Errorf("general: %q, %v", summary, items)
	}

	summary, _ = ComposeSummary(m, Filters{Intent: "order_66"}, "mumble")
	if !strings.Contains(summary, "mispronounced or unclear") {
		t.Errorf("unknown intent summary = %q", summary)
	}
}
