package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kalambet/vita/internal/config"
)

// --- monitor ---

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the batch health monitor over all monitored users",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAdminClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/monitor/run", nil)
		if err != nil {
			return err
		}

		var result struct {
			Success              bool `json:"success"`
			InterventionsCreated int  `json:"interventionsCreated"`
			Interventions        []struct {
				UserID       string `json:"userId"`
				UserName     string `json:"userName"`
				Intervention string `json:"intervention"`
			} `json:"interventions"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.InterventionsCreated == 0 {
			fmt.Println("No interventions created.")
			return nil
		}

		printSuccess("Created %d intervention(s)", result.InterventionsCreated)
		for _, iv := range result.Interventions {
			fmt.Printf("%s  %s\n", colorize(colorCyan, iv.UserName), iv.Intervention)
		}
		return nil
	},
}

// --- user ---

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <full-name>",
	Short: "Create a user profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		calories, _ := cmd.Flags().GetFloat64("calories")
		protein, _ := cmd.Flags().GetFloat64("protein")
		notify, _ := cmd.Flags().GetBool("notify")

		client, err := newAdminClient()
		if err != nil {
			return err
		}

		body := map[string]any{
			"full_name":                        args[0],
			"daily_calorie_goal":               calories,
			"daily_protein_goal":               protein,
			"autonomous_notifications_enabled": notify,
		}
		resp, err := client.post(cmd.Context(), "/v1/users", body)
		if err != nil {
			return err
		}

		var created struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &created); err != nil {
			return err
		}

		printSuccess("Created user %s", created.ID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAdminClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/users")
		if err != nil {
			return err
		}

		var users []struct {
			ID       string `json:"id"`
			FullName string `json:"full_name"`
		}
		if err := decodeJSON(resp, &users); err != nil {
			return err
		}

		if len(users) == 0 {
			fmt.Println("No users found.")
			return nil
		}

		for _, u := range users {
			fmt.Printf("%s  %s\n", colorize(colorCyan, u.ID), u.FullName)
		}
		return nil
	},
}

func init() {
	userAddCmd.Flags().Float64("calories", 0, "daily calorie goal")
	userAddCmd.Flags().Float64("protein", 0, "daily protein goal (grams)")
	userAddCmd.Flags().Bool("notify", true, "enable autonomous notifications")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
}

// --- token ---

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <user-id>",
	Short: "Issue an API token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")

		client, err := newAdminClient()
		if err != nil {
			return err
		}

		body := map[string]any{"label": label}
		resp, err := client.post(cmd.Context(), "/v1/users/"+args[0]+"/tokens", body)
		if err != nil {
			return err
		}

		var issued struct {
			Token  string `json:"token"`
			UserID string `json:"user_id"`
		}
		if err := decodeJSON(resp, &issued); err != nil {
			return err
		}

		printSuccess("Issued token for user %s", issued.UserID)
		fmt.Println(issued.Token)
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().String("label", "", "label for the token")

	tokenCmd.AddCommand(tokenIssueCmd)
}

// --- interventions ---

var interventionsCmd = &cobra.Command{
	Use:   "interventions",
	Short: "View and rate interventions",
}

var interventionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent interventions",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newUserClient(token)
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/v1/interventions?limit=%d", limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var interventions []struct {
			ID                 string `json:"id"`
			InterventionType   string `json:"intervention_type"`
			Recommendation     string `json:"recommendation"`
			EffectivenessScore *int   `json:"effectiveness_score"`
			CreatedAt          string `json:"created_at"`
		}
		if err := decodeJSON(resp, &interventions); err != nil {
			return err
		}

		if len(interventions) == 0 {
			fmt.Println("No interventions found.")
			return nil
		}

		for _, iv := range interventions {
			score := "unrated"
			if iv.EffectivenessScore != nil {
				score = fmt.Sprintf("score %d", *iv.EffectivenessScore)
			}
			rec := iv.Recommendation
			if len(rec) > 80 {
				rec = rec[:80] + "..."
			}
			fmt.Printf("%s  %s  [%s, %s]  %s\n",
				colorize(colorCyan, iv.ID[:8]),
				iv.CreatedAt,
				iv.InterventionType,
				score,
				rec,
			)
		}
		return nil
	},
}

var interventionsRateCmd = &cobra.Command{
	Use:   "rate <id> <score>",
	Short: "Rate an intervention's effectiveness (1-5)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		response, _ := cmd.Flags().GetString("response")

		score, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid score %q: %w", args[1], err)
		}

		client, err := newUserClient(token)
		if err != nil {
			return err
		}

		body := map[string]any{"score": score}
		if response != "" {
			body["response"] = response
		}
		resp, err := client.post(cmd.Context(), "/v1/interventions/"+args[0]+"/feedback", body)
		if err != nil {
			return err
		}

		var result struct {
			Success bool `json:"success"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Rated intervention %s with score %d", args[0], score)
		return nil
	},
}

func init() {
	interventionsListCmd.Flags().String("token", "", "user API token")
	interventionsListCmd.Flags().Int("limit", 20, "maximum number of interventions")
	interventionsRateCmd.Flags().String("token", "", "user API token")
	interventionsRateCmd.Flags().String("response", "", "free-form response to record")

	interventionsCmd.AddCommand(interventionsListCmd)
	interventionsCmd.AddCommand(interventionsRateCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show a single configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		val, err := config.GetKey(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Println(val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}
