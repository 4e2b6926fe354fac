package main

import (
	"fmt"
	"sort"

	"github.com/tabcurator/tabcurator/internal/channel"
	"github.com/tabcurator/tabcurator/internal/state"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved tab sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Sessions map[string][]state.SessionTab `json:"sessions"`
		}
		if err := mustResult(channel.ActionGetSessions, nil, &result); err != nil {
			return err
		}
		if len(result.Sessions) == 0 {
			fmt.Println("No saved sessions")
			return nil
		}

		names := make([]string, 0, len(result.Sessions))
		for name := range result.Sessions {
			names = append(names, name)
		}
		sort.Strings(names)

		rows := make([][]string, 0, len(names))
		for _, name := range names {
			tabs := result.Sessions[name]
			first := ""
			if len(tabs) > 0 {
				first = truncateString(tabs[0].URL, 50)
			}
			rows = append(rows, []string{name, fmt.Sprintf("%d", len(tabs)), first})
		}

		fmt.Println(newTableFormatter().render([]string{"Name", "Tabs", "First URL"}, rows))
		return nil
	},
}

var sessionsSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save all open tabs as a named session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			SavedTabs int `json:"savedTabs"`
		}
		if err := mustResult(channel.ActionSaveSession, map[string]string{"name": args[0]}, &result); err != nil {
			return err
		}
		fmt.Printf("Saved session %q with %d tabs\n", args[0], result.SavedTabs)
		return nil
	},
}

var sessionsRestoreCmd = &cobra.Command{
	Use:   "restore <name>",
	Short: "Reopen every tab of a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			RestoredTabs int `json:"restoredTabs"`
		}
		if err := mustResult(channel.ActionRestoreSession, map[string]string{"name": args[0]}, &result); err != nil {
			return err
		}
		fmt.Printf("Restored %d tabs from session %q\n", result.RestoredTabs, args[0])
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mustResult(channel.ActionDeleteSession, map[string]string{"name": args[0]}, nil); err != nil {
			return err
		}
		fmt.Printf("Deleted session %q\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsSaveCmd)
	sessionsCmd.AddCommand(sessionsRestoreCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
