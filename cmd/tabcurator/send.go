package main

import (
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/tabcurator/tabcurator/internal/channel"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <action> [payload-json]",
	Short: "Send a raw message action to the running daemon",
	Long:  `Sends one inbound message action (e.g. getState, suspendInactiveTabs) with an optional JSON payload and prints the response.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg := channel.Message{ID: ulid.Make().String(), Action: args[0]}
		if len(args) == 2 {
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("payload is not valid JSON")
			}
			msg.Payload = json.RawMessage(args[1])
		}

		resp, err := postRaw(msg)
		if err != nil {
			return err
		}
		if resp.Error != "" {
			return fmt.Errorf("%s", resp.Error)
		}
		if len(resp.Result) == 0 {
			fmt.Println("ok")
			return nil
		}

		var pretty any
		if err := json.Unmarshal(resp.Result, &pretty); err != nil {
			fmt.Println(string(resp.Result))
			return nil
		}
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
