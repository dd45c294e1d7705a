package agent

import (
	"strings"

	"github.com/kalambet/vita/internal/storage"
)

// Memory type and importance assignments for keyword-extracted preferences.
const (
	memoryDietaryPreference  = "dietary_preference"
	memoryMealTiming         = "meal_timing"
	memoryExercisePreference = "exercise_preference"
)

// ExtractPreferences scans the user's messages for durable preferences
// worth remembering across sessions. Keyword-based for now; richer
// extraction can replace this without changing the upsert contract.
func ExtractPreferences(messages []ChatMessage) []storage.AgentMemory {
	var prefs []storage.AgentMemory

	for _, msg := range messages {
		if msg.Role != "user" {
			continue
		}
		content := strings.ToLower(msg.Content)

		if strings.Contains(content, "vegetarian") || strings.Contains(content, "vegan") {
			diet := "vegetarian"
			if strings.Contains(content, "vegan") {
				diet = "vegan"
			}
			prefs = append(prefs, storage.AgentMemory{
				MemoryType: memoryDietaryPreference,
				Key:        "diet_type",
				Value:      `"` + diet + `"`,
				Importance: 9,
			})
		}

		if strings.Contains(content, "breakfast") &&
			(strings.Contains(content, "early") || strings.Contains(content, "morning")) {
			prefs = append(prefs, storage.AgentMemory{
				MemoryType: memoryMealTiming,
				Key:        "breakfast_preference",
				Value:      `"early_morning"`,
				Importance: 6,
			})
		}

		if strings.Contains(content, "gym") || strings.Contains(content, "workout") {
			prefs = append(prefs, storage.AgentMemory{
				MemoryType: memoryExercisePreference,
				Key:        "workout_location",
				Value:      `"gym"`,
				Importance: 7,
			})
		}
	}

	return prefs
}
