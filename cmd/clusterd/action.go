package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/clusterd/pkg/types"
)

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Inspect actions",
}

var actionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		target, _ := cmd.Flags().GetString("target")

		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		var actions []*types.Action
		switch {
		case target != "":
			actions, err = store.ListActionsByTarget(target)
		case status != "":
			actions, err = store.ListActionsByStatus(types.ActionStatus(status))
		default:
			actions, err = store.ListActions()
		}
		if err != nil {
			return err
		}
		for _, a := range actions {
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n", a.ID, a.Action, a.Target, a.Status, a.Reason)
		}
		return nil
	},
}

var actionGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		a, err := store.GetAction(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("ID:         %s\nVerb:       %s\nTarget:     %s\nCause:      %s\nStatus:     %s\nReason:     %s\nDependsOn:  %v\n",
			a.ID, a.Action, a.Target, a.Cause, a.Status, a.Reason, a.DependsOn)
		return nil
	},
}

func init() {
	actionListCmd.Flags().String("status", "", "Filter by status")
	actionListCmd.Flags().String("target", "", "Filter by target cluster/node id")
	actionCmd.AddCommand(actionListCmd, actionGetCmd)
}
