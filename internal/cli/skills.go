package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FlowDeck/FlowDeck/internal/skills"
)

var (
	skillName        string
	skillDescription string
	skillCategory    string
	skillTriggers    []string
	skillTemplate    string
	skillParamsJSON  string
	skillReadVersion int
	skillsListJSON   bool
	skillRunParams   string
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Manage the reusable query library",
}

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored skills",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := skillManager()
		if err != nil {
			return err
		}
		list, err := mgr.List(context.Background())
		if err != nil {
			return err
		}
		if skillsListJSON {
			data, err := json.MarshalIndent(list, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No skills stored yet.")
			return nil
		}
		for _, s := range list {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s (v%d, used %d times)\n", s.ID, s.Name, s.Version, s.UsageCount)
			fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", s.Description)
			fmt.Fprintf(cmd.OutOrStdout(), "    triggers: %s\n", strings.Join(s.Triggers, ", "))
		}
		return nil
	},
}

var skillsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Store a new skill",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := skillManager()
		if err != nil {
			return err
		}
		s := &skills.Skill{
			Name:           skillName,
			Description:    skillDescription,
			Category:       skillCategory,
			Triggers:       skillTriggers,
			CypherTemplate: skillTemplate,
		}
		if skillParamsJSON != "" {
			if err := json.Unmarshal([]byte(skillParamsJSON), &s.Parameters); err != nil {
				return fmt.Errorf("parse --params: %w", err)
			}
		}
		if err := mgr.Create(context.Background(), s); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created skill %s (%s).\n", s.Name, s.ID)
		return nil
	},
}

var skillsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Rewrite a skill (the version counter always advances)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := skillManager()
		if err != nil {
			return err
		}
		ctx := context.Background()
		s, err := mgr.Get(ctx, args[0])
		if err != nil {
			return err
		}
		readVersion := s.Version
		if skillReadVersion > 0 {
			readVersion = skillReadVersion
		}
		if cmd.Flags().Changed("name") {
			s.Name = skillName
		}
		if cmd.Flags().Changed("description") {
			s.Description = skillDescription
		}
		if cmd.Flags().Changed("category") {
			s.Category = skillCategory
		}
		if cmd.Flags().Changed("trigger") {
			s.Triggers = skillTriggers
		}
		if cmd.Flags().Changed("template") {
			s.CypherTemplate = skillTemplate
		}
		if cmd.Flags().Changed("params") {
			s.Parameters = nil
			if skillParamsJSON != "" {
				if err := json.Unmarshal([]byte(skillParamsJSON), &s.Parameters); err != nil {
					return fmt.Errorf("parse --params: %w", err)
				}
			}
		}
		if err := mgr.Update(ctx, s, readVersion); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s to v%d.\n", s.Name, s.Version)
		return nil
	},
}

var skillsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := skillManager()
		if err != nil {
			return err
		}
		if err := mgr.Delete(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
		return nil
	},
}

var skillsRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Execute a skill's query template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := skillManager()
		if err != nil {
			return err
		}
		client, err := graphClient()
		if err != nil {
			return err
		}
		ctx := context.Background()
		s, err := mgr.Get(ctx, args[0])
		if err != nil {
			return err
		}
		var params map[string]any
		if skillRunParams != "" {
			if err := json.Unmarshal([]byte(skillRunParams), &params); err != nil {
				return fmt.Errorf("parse --params: %w", err)
			}
		}
		resp, err := mgr.Run(ctx, s, params)
		if err != nil {
			return err
		}
		printGraph(client.ParseGraphData(resp))
		return nil
	},
}

func skillManager() (*skills.Manager, error) {
	client, err := graphClient()
	if err != nil {
		return nil, err
	}
	return skills.NewManager(client), nil
}

func init() {
	for _, cmd := range []*cobra.Command{skillsCreateCmd, skillsUpdateCmd} {
		cmd.Flags().StringVar(&skillName, "name", "", "Skill name")
		cmd.Flags().StringVar(&skillDescription, "description", "", "What the skill does")
		cmd.Flags().StringVar(&skillCategory, "category", "", "Grouping category")
		cmd.Flags().StringSliceVar(&skillTriggers, "trigger", nil, "Trigger phrase (repeatable)")
		cmd.Flags().StringVar(&skillTemplate, "template", "", "Query template with $param placeholders")
		cmd.Flags().StringVar(&skillParamsJSON, "params", "", "Default parameters as JSON")
	}
	skillsUpdateCmd.Flags().IntVar(&skillReadVersion, "read-version", 0, "Version last seen; stale edits are logged")
	skillsListCmd.Flags().BoolVar(&skillsListJSON, "json", false, "Print as JSON")
	skillsRunCmd.Flags().StringVar(&skillRunParams, "params", "", "Run parameters as JSON")

	skillsCmd.AddCommand(skillsListCmd)
	skillsCmd.AddCommand(skillsCreateCmd)
	skillsCmd.AddCommand(skillsUpdateCmd)
	skillsCmd.AddCommand(skillsDeleteCmd)
	skillsCmd.AddCommand(skillsRunCmd)
}
