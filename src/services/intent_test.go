package services

import (
	"errors"
	"testing"
)

func TestParseIntent_PlainJSON(t *testing.T) {
	f, err := ParseIntent(`{"intent": "filter_food", "vegetarian": true, "maxPrice": 12.5}`)
	if err != nil {
		t.Fatal(err)
	}
	if f.Intent != IntentFilterFood {
		t.Errorf("intent = %q", f.Intent)
	}
	if f.Vegetarian == nil || !*f.Vegetarian {
		t.Error("vegetarian not set true")
	}
	if f.Spicy != nil {
		t.Error("spicy should stay unset")
	}
	if f.MaxPrice != 12.5 {
		t.Errorf("maxPrice = %v", f.MaxPrice)
	}
}

func TestParseIntent_MarkdownFenced(t *testing.T) {
	raw := "Here is the classification:\n```json\n{\"intent\": \"get_food_by_name\", \"name\": \"pad thai\"}\n```\n"
	f, err := ParseIntent(raw)
	if err != nil {
		t.Fatal(err)
	}
	if f.Intent != IntentGetFoodByName || f.Name != "pad thai" {
		t.Errorf("got %+v", f)
	}
}

func TestParseIntent_LeadingBackticks(t *testing.T) {
	raw := "``\n{\"intent\": \"general_query\"}"
	f, err := ParseIntent(raw)
	if err != nil {
		t.Fatal(err)
	}
	if f.Intent != IntentGeneralQuery {
		t.Errorf("intent = %q", f.Intent)
	}
}

func TestParseIntent_NoJSONBlock(t *testing.T) {
	if _, err := ParseIntent("sorry, I could not understand that"); !errors.Is(err, ErrNoIntent) {
		t.Errorf("err = %v, want ErrNoIntent", err)
	}
	if _, err := ParseIntent(""); !errors.Is(err, ErrNoIntent) {
		t.Errorf("empty input err = %v, want ErrNoIntent", err)
	}
}
