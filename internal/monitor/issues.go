package monitor

import (
	"fmt"
	"math"
)

// Intervention types. These double as the issue taxonomy: only the top
// issue of a cycle becomes a persisted intervention of the same type.
const (
	TypeAlert              = "alert"
	TypeMealRecommendation = "meal_recommendation"
	TypeHabitChange        = "habit_change"
	TypeGoalSuggestion     = "goal_suggestion"
)

// Issue is a transient candidate problem. Issues are recomputed fresh every
// cycle and never persisted directly.
type Issue struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

// Default goals applied when the profile leaves them unset. Conservative
// wellness defaults, not clinical thresholds.
const (
	DefaultCalorieGoal = 2000
	DefaultProteinGoal = 120
)

// Fixed thresholds for the non-goal-relative rules.
const (
	lowWaterGlasses = 6
	lowStepCount    = 5000
)

// DetectIssues evaluates the four threshold rules independently against the
// aggregated signals. A user may trigger zero to four issues in one cycle.
// The returned order is the detection order, which breaks priority ties
// downstream.
func DetectIssues(sig Signals, calorieGoal, proteinGoal float64) []Issue {
	if calorieGoal <= 0 {
		calorieGoal = DefaultCalorieGoal
	}
	if proteinGoal <= 0 {
		proteinGoal = DefaultProteinGoal
	}

	var issues []Issue

	if sig.AvgCalories < calorieGoal*0.7 {
		issues = append(issues, Issue{
			Type:     TypeAlert,
			Message:  fmt.Sprintf("Your average calorie intake (%d cal) is significantly below your goal. This might affect your energy levels.", round(sig.AvgCalories)),
			Priority: 8,
		})
	}

	if sig.AvgProtein < proteinGoal*0.6 {
		issues = append(issues, Issue{
			Type:     TypeMealRecommendation,
			Message:  fmt.Sprintf("Your protein intake is low (avg %dg). Consider adding protein-rich foods like chicken, fish, or legumes to your meals.", round(sig.AvgProtein)),
			Priority: 7,
		})
	}

	if sig.AvgWater < lowWaterGlasses {
		issues = append(issues, Issue{
			Type:     TypeHabitChange,
			Message:  fmt.Sprintf("You're averaging %d glasses of water per day. Try to increase to 8 glasses for better hydration.", round(sig.AvgWater)),
			Priority: 6,
		})
	}

	if sig.AvgSteps < lowStepCount {
		issues = append(issues, Issue{
			Type:     TypeGoalSuggestion,
			Message:  fmt.Sprintf("Your step count is low (avg %d steps). Let's set a goal to gradually increase your daily activity.", round(sig.AvgSteps)),
			Priority: 7,
		})
	}

	return issues
}

func round(v float64) int {
	return int(math.Round(v))
}
