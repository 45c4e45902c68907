package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Inspect events",
}

var eventListCmd = &cobra.Command{
	Use:   "list SUBJECT_ID",
	Short: "List events for a cluster or node id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		events, err := store.ListEvents(args[0])
		if err != nil {
			return err
		}
		for _, e := range events {
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n", e.Timestamp.Format("2006-01-02T15:04:05Z"), e.ObjType, e.Action, e.Status, e.Reason)
		}
		return nil
	},
}

func init() {
	eventCmd.AddCommand(eventListCmd)
}
