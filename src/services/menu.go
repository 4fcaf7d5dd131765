package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Item is one entry of the in-memory menu catalog.
type Item struct {
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	Vegetarian      bool    `json:"vegetarian"`
	Spicy           bool    `json:"spicy"`
	Calories        int     `json:"calories"`
	Price           float64 `json:"price"`
	PreparationTime int     `json:"preparationTime"`
	Description     string  `json:"description"`
}

// Menu is a read-only catalog queried per turn. Items never change
// after construction, so lookups need no locking.
type Menu struct {
	items []Item
}

func NewMenu(items []Item) *Menu {
	return &Menu{items: items}
}

func (m *Menu) Len() int { return len(m.items) }

// Filter returns items matching every set field of f. Unset pointer
// fields and zero-valued bounds are ignored.
func (m *Menu) Filter(f Filters) []Item {
	var out []Item
	for _, it := range m.items {
		if f.Spicy != nil && it.Spicy != *f.Spicy {
			continue
		}
		if f.Vegetarian != nil && it.Vegetarian != *f.Vegetarian {
			continue
		}
		if f.Type != "" && !strings.EqualFold(it.Type, f.Type) {
			continue
		}
		if f.MaxCalories > 0 && it.Calories > f.MaxCalories {
			continue
		}
		if f.MaxPrice > 0 && it.Price > f.MaxPrice {
			continue
		}
		out = append(out, it)
	}
	return out
}

// ByName finds items whose names loosely match the spoken name: a
// broad in-order word match selects candidates, then Levenshtein
// similarity against the normalized query ranks them best-first.
func (m *Menu) ByName(name string) []Item {
	normalized := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), " ")
	if normalized == "" {
		return nil
	}

	pattern := "(?i)" + strings.Join(strings.Split(regexp.QuoteMeta(normalized), " "), ".*")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}

	type scored struct {
		item  Item
		score float64
	}
	var candidates []scored
	for _, it := range m.items {
		if !re.MatchString(it.Name) {
			continue
		}
		itemName := strings.ToLower(it.Name)
		dist := levenshtein.ComputeDistance(normalized, itemName)
		denom := len(normalized)
		if len(itemName) > denom {
			denom = len(itemName)
		}
		candidates = append(candidates, scored{it, 1 - float64(dist)/float64(denom)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	out := make([]Item, len(candidates))
	for i, c := range candidates {
		out[i] = c.item
	}
	return out
}

// VoiceSummaries returns up to limit item names for a spoken list.
func VoiceSummaries(items []Item, limit int) []string {
	if len(items) > limit {
		items = items[:limit]
	}
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}
	return names
}

// DetailedSummary describes one item in full for a spoken reply.
func DetailedSummary(it Item) string {
	diet := "non-vegetarian"
	if it.Vegetarian {
		diet = "vegetarian"
	}
	heat := "mild"
	if it.Spicy {
		heat = "spicy"
	}
	return fmt.Sprintf("%s: A %s %s that is %s. It has %d calories, costs $%.2f, and takes %d minutes to prepare. Description: %s",
		it.Name, diet, it.Type, heat, it.Calories, it.Price, it.PreparationTime, it.Description)
}
