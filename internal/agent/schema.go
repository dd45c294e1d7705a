package agent

import "github.com/kalambet/vita/internal/gateway"

// Tool names. The orchestrator dispatches on these and records them
// verbatim in agent_actions.action_type.
const (
	ToolAnalyzeHealthTrends = "analyze_health_trends"
	ToolCreateHealthGoal    = "create_health_goal"
	ToolCreateMealPlan      = "create_meal_plan"
	ToolLogIntervention     = "log_intervention"
	ToolGetUserContext      = "get_user_context"
)

// agentTools returns the fixed tool catalogue offered to the model on the
// first call of every turn.
func agentTools() []gateway.Tool {
	return []gateway.Tool{
		{
			Type: "function",
			Function: gateway.FunctionDef{
				Name:        ToolAnalyzeHealthTrends,
				Description: "Analyze user's recent health data to identify trends, patterns, and areas for improvement",
				Parameters: gateway.Schema{
					Type: "object",
					Properties: map[string]gateway.Property{
						"days": {Type: "number", Description: "Number of days to analyze (default: 7)"},
					},
				},
			},
		},
		{
			Type: "function",
			Function: gateway.FunctionDef{
				Name:        ToolCreateHealthGoal,
				Description: "Create a new health goal for the user based on their profile and current progress",
				Parameters: gateway.Schema{
					Type: "object",
					Properties: map[string]gateway.Property{
						"goal_type": {
							Type:        "string",
							Enum:        []string{"weight", "calories", "protein", "steps", "water", "streak"},
							Description: "Type of health goal",
						},
						"title":         {Type: "string", Description: "Clear, motivating title for the goal"},
						"description":   {Type: "string", Description: "Detailed description of the goal"},
						"target_value":  {Type: "number", Description: "Target value to achieve"},
						"unit":          {Type: "string", Description: "Unit of measurement (kg, calories, g, steps, glasses, days)"},
						"deadline_days": {Type: "number", Description: "Number of days from now to achieve the goal"},
						"priority":      {Type: "number", Description: "Priority level 1-10, where 10 is highest"},
					},
					Required: []string{"goal_type", "title", "target_value", "unit"},
				},
			},
		},
		{
			Type: "function",
			Function: gateway.FunctionDef{
				Name:        ToolCreateMealPlan,
				Description: "Generate personalized meal suggestions based on user's goals, preferences, and dietary restrictions",
				Parameters: gateway.Schema{
					Type: "object",
					Properties: map[string]gateway.Property{
						"meal_type": {
							Type:        "string",
							Enum:        []string{"breakfast", "lunch", "dinner", "snack"},
							Description: "Type of meal to suggest",
						},
						"calorie_target": {Type: "number", Description: "Target calories for the meal"},
						"protein_focus":  {Type: "boolean", Description: "Whether to prioritize high-protein options"},
					},
					Required: []string{"meal_type"},
				},
			},
		},
		{
			Type: "function",
			Function: gateway.FunctionDef{
				Name:        ToolLogIntervention,
				Description: "Log a health intervention/recommendation made by the agent",
				Parameters: gateway.Schema{
					Type: "object",
					Properties: map[string]gateway.Property{
						"intervention_type": {
							Type:        "string",
							Enum:        []string{"goal_suggestion", "meal_recommendation", "habit_change", "alert"},
							Description: "Type of intervention",
						},
						"recommendation": {Type: "string", Description: "The recommendation made to the user"},
						"trigger_data":   {Type: "object", Description: "Data that triggered this intervention"},
					},
					Required: []string{"intervention_type", "recommendation"},
				},
			},
		},
		{
			Type: "function",
			Function: gateway.FunctionDef{
				Name:        ToolGetUserContext,
				Description: "Get comprehensive user context including profile, goals, recent activity, and preferences",
				Parameters: gateway.Schema{
					Type:       "object",
					Properties: map[string]gateway.Property{},
				},
			},
		},
	}
}
