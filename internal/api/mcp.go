package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/vita/internal/agent"
	"github.com/kalambet/vita/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store *storage.Store
	Tools *agent.Toolset
}

// NewMCPServer creates an MCP server exposing the agent's tool catalogue as
// a local operator surface over stdio. Unlike the HTTP surface, callers
// name the user explicitly — there is no per-user credential on stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"vita",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("vita — autonomous health intervention engine: trends, goals, meal plans, and intervention logging per user."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool(agent.ToolGetUserContext,
			mcp.WithDescription("Get comprehensive user context: profile, active goals, metrics, learned preferences, recent interventions."),
			mcp.WithString("user_id", mcp.Description("User to operate on"), mcp.Required()),
		),
		mcpToolHandler(deps, agent.ToolGetUserContext, nil),
	)

	s.AddTool(
		mcp.NewTool(agent.ToolAnalyzeHealthTrends,
			mcp.WithDescription("Analyze a user's recent health data over a trailing window."),
			mcp.WithString("user_id", mcp.Description("User to operate on"), mcp.Required()),
			mcp.WithNumber("days", mcp.Description("Number of days to analyze (default 7)")),
		),
		mcpToolHandler(deps, agent.ToolAnalyzeHealthTrends, func(req mcp.CallToolRequest) (map[string]any, error) {
			return map[string]any{"days": req.GetInt("days", 7)}, nil
		}),
	)

	s.AddTool(
		mcp.NewTool(agent.ToolCreateHealthGoal,
			mcp.WithDescription("Create a new health goal for a user."),
			mcp.WithString("user_id", mcp.Description("User to operate on"), mcp.Required()),
			mcp.WithString("goal_type", mcp.Description("One of: weight, calories, protein, steps, water, streak"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Clear, motivating title"), mcp.Required()),
			mcp.WithString("description", mcp.Description("Detailed description")),
			mcp.WithNumber("target_value", mcp.Description("Target value to achieve"), mcp.Required()),
			mcp.WithString("unit", mcp.Description("Unit of measurement"), mcp.Required()),
			mcp.WithNumber("deadline_days", mcp.Description("Days from now to achieve the goal")),
			mcp.WithNumber("priority", mcp.Description("Priority 1-10 (default 5)")),
		),
		mcpToolHandler(deps, agent.ToolCreateHealthGoal, func(req mcp.CallToolRequest) (map[string]any, error) {
			return map[string]any{
				"goal_type":     req.GetString("goal_type", ""),
				"title":         req.GetString("title", ""),
				"description":   req.GetString("description", ""),
				"target_value":  req.GetFloat("target_value", 0),
				"unit":          req.GetString("unit", ""),
				"deadline_days": req.GetInt("deadline_days", 0),
				"priority":      req.GetInt("priority", 0),
			}, nil
		}),
	)

	s.AddTool(
		mcp.NewTool(agent.ToolCreateMealPlan,
			mcp.WithDescription("Generate meal suggestions for a user."),
			mcp.WithString("user_id", mcp.Description("User to operate on"), mcp.Required()),
			mcp.WithString("meal_type", mcp.Description("One of: breakfast, lunch, dinner, snack"), mcp.Required()),
			mcp.WithNumber("calorie_target", mcp.Description("Target calories for the meal")),
			mcp.WithBoolean("protein_focus", mcp.Description("Whether to prioritize high-protein options")),
		),
		mcpToolHandler(deps, agent.ToolCreateMealPlan, func(req mcp.CallToolRequest) (map[string]any, error) {
			return map[string]any{
				"meal_type":      req.GetString("meal_type", ""),
				"calorie_target": req.GetFloat("calorie_target", 0),
				"protein_focus":  req.GetBool("protein_focus", false),
			}, nil
		}),
	)

	s.AddTool(
		mcp.NewTool(agent.ToolLogIntervention,
			mcp.WithDescription("Log a health intervention/recommendation for a user."),
			mcp.WithString("user_id", mcp.Description("User to operate on"), mcp.Required()),
			mcp.WithString("intervention_type", mcp.Description("One of: goal_suggestion, meal_recommendation, habit_change, alert"), mcp.Required()),
			mcp.WithString("recommendation", mcp.Description("The recommendation made to the user"), mcp.Required()),
			mcp.WithString("trigger_data", mcp.Description("JSON object describing what triggered this intervention")),
		),
		mcpToolHandler(deps, agent.ToolLogIntervention, func(req mcp.CallToolRequest) (map[string]any, error) {
			args := map[string]any{
				"intervention_type": req.GetString("intervention_type", ""),
				"recommendation":    req.GetString("recommendation", ""),
			}
			if raw := req.GetString("trigger_data", ""); raw != "" {
				var trigger map[string]any
				if err := json.Unmarshal([]byte(raw), &trigger); err != nil {
					return nil, fmt.Errorf("invalid trigger_data JSON: %w", err)
				}
				args["trigger_data"] = trigger
			}
			return args, nil
		}),
	)

	s.AddResource(
		mcp.NewResource(
			"vita://interventions/recent",
			"Recent Interventions",
			mcp.WithResourceDescription("Last 10 interventions across all monitored users"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceInterventions(deps),
	)

	return s
}

// mcpToolHandler adapts one agent tool into an MCP handler. buildArgs
// assembles the tool's argument object from the request; nil means the tool
// takes no arguments beyond user_id.
func mcpToolHandler(deps MCPDeps, toolName string, buildArgs func(mcp.CallToolRequest) (map[string]any, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		args := map[string]any{}
		if buildArgs != nil {
			if args, err = buildArgs(req); err != nil {
				return mcpError(err.Error()), nil
			}
		}

		raw, err := json.Marshal(args)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal arguments: %v", err)), nil
		}

		result, err := deps.Tools.Execute(ctx, toolName, raw, userID)
		if err != nil {
			return mcpError(fmt.Sprintf("%s failed: %v", toolName, err)), nil
		}

		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceInterventions(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		profiles, err := deps.Store.ListMonitoredProfiles()
		if err != nil {
			return nil, fmt.Errorf("failed to list profiles: %w", err)
		}

		type entry struct {
			UserID           string `json:"user_id"`
			InterventionType string `json:"intervention_type"`
			Recommendation   string `json:"recommendation"`
			CreatedAt        string `json:"created_at"`
		}

		var entries []entry
		for _, p := range profiles {
			ivs, err := deps.Store.RecentInterventions(p.ID, 10)
			if err != nil {
				return nil, fmt.Errorf("failed to list interventions for %s: %w", p.ID, err)
			}
			for _, iv := range ivs {
				entries = append(entries, entry{
					UserID:           iv.UserID,
					InterventionType: iv.InterventionType,
					Recommendation:   iv.Recommendation,
					CreatedAt:        iv.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
				})
			}
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal interventions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return mcp.NewToolResultText(text)
}

func mcpError(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}
