package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Inspect nodes",
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		showDeleted, _ := cmd.Flags().GetBool("show-deleted")
		clusterID, _ := cmd.Flags().GetString("cluster")

		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		if clusterID != "" {
			c, err := resolveCluster(store, clusterID)
			if err != nil {
				return err
			}
			ns, err := store.ListNodesByCluster(c.ID, showDeleted)
			if err != nil {
				return err
			}
			for _, n := range ns {
				fmt.Printf("%s\t%s\t%d\t%s\t%s\n", n.ID, n.Name, n.Index, n.Status, n.ClusterID)
			}
			return nil
		}
		ns, err := store.ListNodes(showDeleted)
		if err != nil {
			return err
		}
		for _, n := range ns {
			fmt.Printf("%s\t%s\t%d\t%s\t%s\n", n.ID, n.Name, n.Index, n.Status, n.ClusterID)
		}
		return nil
	},
}

var nodeGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		n, err := store.GetNode(args[0], true)
		if err != nil {
			return err
		}
		fmt.Printf("ID:         %s\nName:       %s\nIndex:      %d\nCluster:    %s\nStatus:     %s\nReason:     %s\nProfile:    %s\nPhysicalID: %s\n",
			n.ID, n.Name, n.Index, n.ClusterID, n.Status, n.Reason, n.ProfileID, n.PhysicalID)
		return nil
	},
}

func init() {
	nodeListCmd.Flags().Bool("show-deleted", false, "Include soft-deleted nodes")
	nodeListCmd.Flags().String("cluster", "", "Restrict to one cluster's nodes (name or id)")
	nodeCmd.AddCommand(nodeListCmd, nodeGetCmd)
}
