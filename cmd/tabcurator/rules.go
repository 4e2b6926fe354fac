package main

import (
	"fmt"
	"os"

	"github.com/tabcurator/tabcurator/internal/channel"
	"github.com/tabcurator/tabcurator/internal/settings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type rulesFile struct {
	Rules []settings.Rule `yaml:"rules"`
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage automatic tagging rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active tagging rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Rules []settings.Rule `json:"rules"`
		}
		if err := mustResult(channel.ActionGetRules, nil, &result); err != nil {
			return err
		}
		if len(result.Rules) == 0 {
			fmt.Println("No rules configured")
			return nil
		}

		rows := make([][]string, 0, len(result.Rules))
		for i, rule := range result.Rules {
			rows = append(rows, []string{fmt.Sprintf("%d", i+1), rule.Condition, rule.Action})
		}
		fmt.Println(newTableFormatter().render([]string{"#", "Condition", "Action"}, rows))
		return nil
	},
}

var rulesExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export the active rules to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Rules []settings.Rule `json:"rules"`
		}
		if err := mustResult(channel.ActionGetRules, nil, &result); err != nil {
			return err
		}

		data, err := yaml.Marshal(rulesFile{Rules: result.Rules})
		if err != nil {
			return fmt.Errorf("encode rules: %w", err)
		}
		if err := os.WriteFile(args[0], data, 0o644); err != nil {
			return fmt.Errorf("write rules file: %w", err)
		}
		fmt.Printf("Exported %d rules to %s\n", len(result.Rules), args[0])
		return nil
	},
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the active rules from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read rules file: %w", err)
		}

		var parsed rulesFile
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("parse rules file: %w", err)
		}
		for i, rule := range parsed.Rules {
			if rule.Condition == "" {
				return fmt.Errorf("rule %d has no condition", i+1)
			}
		}

		var result struct {
			Count int `json:"count"`
		}
		if err := mustResult(channel.ActionUpdateRules, map[string]interface{}{"rules": parsed.Rules}, &result); err != nil {
			return err
		}
		fmt.Printf("Imported %d rules\n", result.Count)
		return nil
	},
	Args: cobra.ExactArgs(1),
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesExportCmd)
	rulesCmd.AddCommand(rulesImportCmd)
}
