package monitor

import (
	"strings"
	"testing"

	"github.com/kalambet/vita/internal/storage"
)

// healthySignals trips none of the four rules.
func healthySignals() Signals {
	return Signals{AvgCalories: 2100, AvgProtein: 130, AvgSteps: 9000, AvgWater: 8}
}

func TestAggregateEmpty(t *testing.T) {
	_, ok := Aggregate(nil)
	if ok {
		t.Error("Aggregate(nil) ok = true, want false")
	}
}

func TestAggregateAverages(t *testing.T) {
	logs := []storage.DailyLog{
		{TotalCalories: 1000, TotalProteinG: 50, Steps: 4000, WaterGlasses: 4},
		{TotalCalories: 2000, TotalProteinG: 100, Steps: 8000, WaterGlasses: 8},
	}

	sig, ok := Aggregate(logs)
	if !ok {
		t.Fatal("Aggregate ok = false, want true")
	}
	if sig.AvgCalories != 1500 {
		t.Errorf("avg calories = %v, want 1500", sig.AvgCalories)
	}
	if sig.AvgProtein != 75 {
		t.Errorf("avg protein = %v, want 75", sig.AvgProtein)
	}
	if sig.AvgSteps != 6000 {
		t.Errorf("avg steps = %v, want 6000", sig.AvgSteps)
	}
	if sig.AvgWater != 6 {
		t.Errorf("avg water = %v, want 6", sig.AvgWater)
	}
}

func TestDetectIssuesHealthy(t *testing.T) {
	issues := DetectIssues(healthySignals(), 2000, 120)
	if len(issues) != 0 {
		t.Errorf("healthy signals produced %d issues: %+v", len(issues), issues)
	}
}

func TestDetectIssuesLowCalories(t *testing.T) {
	sig := healthySignals()
	sig.AvgCalories = 1200 // below 0.7 * 2000

	issues := DetectIssues(sig, 2000, 120)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if issues[0].Type != TypeAlert {
		t.Errorf("type = %q, want %q", issues[0].Type, TypeAlert)
	}
	if issues[0].Priority != 8 {
		t.Errorf("priority = %d, want 8", issues[0].Priority)
	}
	if !strings.Contains(issues[0].Message, "1200 cal") {
		t.Errorf("message should contain rounded average, got %q", issues[0].Message)
	}
}

func TestDetectIssuesLowProtein(t *testing.T) {
	sig := healthySignals()
	sig.AvgProtein = 70 // below 0.6 * 120

	issues := DetectIssues(sig, 2000, 120)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if issues[0].Type != TypeMealRecommendation {
		t.Errorf("type = %q, want %q", issues[0].Type, TypeMealRecommendation)
	}
	if issues[0].Priority != 7 {
		t.Errorf("priority = %d, want 7", issues[0].Priority)
	}
	if !strings.Contains(issues[0].Message, "70g") {
		t.Errorf("message should contain rounded average, got %q", issues[0].Message)
	}
}

func TestDetectIssuesLowWater(t *testing.T) {
	sig := healthySignals()
	sig.AvgWater = 3.4

	issues := DetectIssues(sig, 2000, 120)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if issues[0].Type != TypeHabitChange {
		t.Errorf("type = %q, want %q", issues[0].Type, TypeHabitChange)
	}
	if issues[0].Priority != 6 {
		t.Errorf("priority = %d, want 6", issues[0].Priority)
	}
	if !strings.Contains(issues[0].Message, "3 glasses") {
		t.Errorf("message should contain rounded average, got %q", issues[0].Message)
	}
}

func TestDetectIssuesLowSteps(t *testing.T) {
	sig := healthySignals()
	sig.AvgSteps = 3000

	issues := DetectIssues(sig, 2000, 120)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if issues[0].Type != TypeGoalSuggestion {
		t.Errorf("type = %q, want %q", issues[0].Type, TypeGoalSuggestion)
	}
	if issues[0].Priority != 7 {
		t.Errorf("priority = %d, want 7", issues[0].Priority)
	}
}

// TestDetectIssuesBoundaries verifies the comparisons are strict: values
// exactly at the threshold trigger nothing.
func TestDetectIssuesBoundaries(t *testing.T) {
	sig := Signals{AvgCalories: 1400, AvgProtein: 72, AvgSteps: 5000, AvgWater: 6}

	issues := DetectIssues(sig, 2000, 120)
	if len(issues) != 0 {
		t.Errorf("boundary values produced %d issues: %+v", len(issues), issues)
	}
}

// TestDetectIssuesDefaults verifies that unset profile goals fall back to
// 2000 cal and 120 g.
func TestDetectIssuesDefaults(t *testing.T) {
	sig := healthySignals()
	sig.AvgCalories = 1300 // below 0.7 * 2000 default
	sig.AvgProtein = 60    // below 0.6 * 120 default

	issues := DetectIssues(sig, 0, 0)
	if len(issues) != 2 {
		t.Fatalf("got %d issues, want 2", len(issues))
	}
	if issues[0].Type != TypeAlert || issues[1].Type != TypeMealRecommendation {
		t.Errorf("types = %q, %q", issues[0].Type, issues[1].Type)
	}
}

func TestDetectIssuesAllFour(t *testing.T) {
	sig := Signals{AvgCalories: 800, AvgProtein: 20, AvgSteps: 1000, AvgWater: 1}

	issues := DetectIssues(sig, 2000, 120)
	if len(issues) != 4 {
		t.Fatalf("got %d issues, want 4", len(issues))
	}
	// Detection order is fixed: calories, protein, water, steps.
	wantTypes := []string{TypeAlert, TypeMealRecommendation, TypeHabitChange, TypeGoalSuggestion}
	for i, want := range wantTypes {
		if issues[i].Type != want {
			t.Errorf("issue %d type = %q, want %q", i, issues[i].Type, want)
		}
	}
}
