package agent

import "sort"

// MealSuggestion is one suggested dish with its nutrition summary.
type MealSuggestion struct {
	Name     string `json:"name"`
	Calories int    `json:"calories"`
	ProteinG int    `json:"protein_g"`
}

// MealSuggester produces meal suggestions for a meal type. The static
// implementation below ships a curated table; a generative or
// database-backed source can be swapped in without touching the
// orchestrator contract.
type MealSuggester interface {
	Suggest(mealType string, proteinFocus bool) []MealSuggestion
}

// StaticMealSuggester serves a fixed curated set of three suggestions per
// meal type. Unknown meal types fall back to lunch.
type StaticMealSuggester struct{}

var mealTable = map[string][]MealSuggestion{
	"breakfast": {
		{Name: "Greek yogurt with berries and granola", Calories: 350, ProteinG: 20},
		{Name: "Scrambled eggs with whole wheat toast and avocado", Calories: 400, ProteinG: 25},
		{Name: "Protein smoothie with banana and almond butter", Calories: 380, ProteinG: 30},
	},
	"lunch": {
		{Name: "Grilled chicken salad with quinoa", Calories: 450, ProteinG: 35},
		{Name: "Turkey and avocado wrap with vegetables", Calories: 420, ProteinG: 30},
		{Name: "Salmon bowl with brown rice and vegetables", Calories: 480, ProteinG: 38},
	},
	"dinner": {
		{Name: "Lean steak with sweet potato and broccoli", Calories: 550, ProteinG: 45},
		{Name: "Baked chicken with roasted vegetables", Calories: 500, ProteinG: 42},
		{Name: "Grilled fish with quinoa and asparagus", Calories: 480, ProteinG: 40},
	},
	"snack": {
		{Name: "Apple with almond butter", Calories: 200, ProteinG: 8},
		{Name: "Protein bar and handful of nuts", Calories: 220, ProteinG: 15},
		{Name: "Cottage cheese with fruit", Calories: 180, ProteinG: 18},
	},
}

// Suggest returns a copy of the curated set. With proteinFocus the set is
// reordered by protein content descending so high-protein options lead.
func (StaticMealSuggester) Suggest(mealType string, proteinFocus bool) []MealSuggestion {
	options, ok := mealTable[mealType]
	if !ok {
		options = mealTable["lunch"]
	}

	out := make([]MealSuggestion, len(options))
	copy(out, options)

	if proteinFocus {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ProteinG > out[j].ProteinG
		})
	}
	return out
}
