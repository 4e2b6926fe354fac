package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/tabcurator/tabcurator/internal/channel"
	"github.com/tabcurator/tabcurator/internal/state"

	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect and undo archived tabs",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived tabs grouped by tag",
	RunE: func(cmd *cobra.Command, args []string) error {
		var snap state.Snapshot
		if err := mustResult(channel.ActionGetState, nil, &snap); err != nil {
			return err
		}
		if len(snap.ArchivedTabs) == 0 {
			fmt.Println("No archived tabs")
			return nil
		}

		tags := make([]string, 0, len(snap.ArchivedTabs))
		for tag := range snap.ArchivedTabs {
			tags = append(tags, tag)
		}
		sort.Strings(tags)

		var rows [][]string
		for _, tag := range tags {
			for _, entry := range snap.ArchivedTabs[tag] {
				archivedAt := time.UnixMilli(entry.Timestamp).Format("2006-01-02 15:04")
				rows = append(rows, []string{
					tag,
					truncateString(entry.Title, 40),
					truncateString(entry.URL, 50),
					archivedAt,
				})
			}
		}

		fmt.Println(newTableFormatter().render([]string{"Tag", "Title", "URL", "Archived"}, rows))
		return nil
	},
}

var archiveUndoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Undo the most recent archive and reopen the tab",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := map[string]string{"type": "UNDO_LAST_ACTION"}
		var result struct {
			Undone bool   `json:"undone"`
			Tag    string `json:"tag"`
		}
		if err := mustResult(channel.ActionDispatch, payload, &result); err != nil {
			return err
		}
		if !result.Undone {
			fmt.Println("Nothing to undo")
			return nil
		}
		fmt.Printf("Undid archive under tag %q\n", result.Tag)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveUndoCmd)
}
