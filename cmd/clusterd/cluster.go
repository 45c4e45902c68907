package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuemby/clusterd/pkg/types"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage clusters",
}

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clusters",
	RunE: func(cmd *cobra.Command, args []string) error {
		showDeleted, _ := cmd.Flags().GetBool("show-deleted")
		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		clusters, err := store.ListClusters(showDeleted)
		if err != nil {
			return err
		}
		for _, c := range clusters {
			fmt.Printf("%s\t%s\t%s\t%d\n", c.ID, c.Name, c.Status, c.Size)
		}
		return nil
	},
}

var clusterGetCmd = &cobra.Command{
	Use:   "get NAME_OR_ID",
	Short: "Show one cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		c, err := resolveCluster(store, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("ID:       %s\nName:     %s\nStatus:   %s\nReason:   %s\nSize:     %d\nProfile:  %s\nCreated:  %s\n",
			c.ID, c.Name, c.Status, c.Reason, c.Size, c.ProfileID, c.CreatedAt.Format(time.RFC3339))
		return nil
	},
}

var clusterCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a cluster of the given profile and size",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profileID, _ := cmd.Flags().GetString("profile")
		size, _ := cmd.Flags().GetInt("size")
		timeout, _ := cmd.Flags().GetInt("timeout")
		project, _ := cmd.Flags().GetString("project")

		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		if _, err := store.GetProfile(profileID); err != nil {
			return fmt.Errorf("profile %s: %w", profileID, err)
		}

		cluster := &types.Cluster{
			ID:        uuid.NewString(),
			Name:      args[0],
			ProjectID: project,
			ProfileID: profileID,
			Size:      size,
			Timeout:   timeout,
			Status:    types.ClusterInit,
			Tags:      map[string]string{},
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := store.CreateCluster(cluster); err != nil {
			return err
		}

		action, err := eng.CreateCluster(cluster.ID)
		if err != nil {
			return err
		}
		return reportAction(store, action, cluster.ID)
	},
}

var clusterUpdateCmd = &cobra.Command{
	Use:   "update NAME_OR_ID",
	Short: "Move a cluster onto a new profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		newProfile, _ := cmd.Flags().GetString("profile")
		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		c, err := resolveCluster(store, args[0])
		if err != nil {
			return err
		}
		action, err := eng.UpdateCluster(c.ID, newProfile)
		if err != nil {
			return err
		}
		return reportAction(store, action, c.ID)
	},
}

var clusterDeleteCmd = &cobra.Command{
	Use:   "delete NAME_OR_ID",
	Short: "Delete a cluster and all of its nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		c, err := resolveCluster(store, args[0])
		if err != nil {
			return err
		}
		action, err := eng.DeleteCluster(c.ID)
		if err != nil {
			return err
		}
		return reportAction(store, action, c.ID)
	},
}

var clusterScaleOutCmd = &cobra.Command{
	Use:   "scale-out NAME_OR_ID",
	Short: "Add nodes to a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		c, err := resolveCluster(store, args[0])
		if err != nil {
			return err
		}
		action, err := eng.ScaleOut(c.ID, count)
		if err != nil {
			return err
		}
		return reportAction(store, action, c.ID)
	},
}

var clusterScaleInCmd = &cobra.Command{
	Use:   "scale-in NAME_OR_ID",
	Short: "Remove nodes from a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		c, err := resolveCluster(store, args[0])
		if err != nil {
			return err
		}
		action, err := eng.ScaleIn(c.ID, count)
		if err != nil {
			return err
		}
		return reportAction(store, action, c.ID)
	},
}

var clusterAddNodesCmd = &cobra.Command{
	Use:   "add-nodes NAME_OR_ID NODE_ID...",
	Short: "Join existing, unattached nodes into a cluster",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		c, err := resolveCluster(store, args[0])
		if err != nil {
			return err
		}
		action, err := eng.AddNodes(c.ID, args[1:])
		if err != nil {
			return err
		}
		return reportAction(store, action, c.ID)
	},
}

var clusterDelNodesCmd = &cobra.Command{
	Use:   "del-nodes NAME_OR_ID NODE_ID...",
	Short: "Remove nodes from a cluster without destroying them",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		c, err := resolveCluster(store, args[0])
		if err != nil {
			return err
		}
		action, err := eng.DelNodes(c.ID, args[1:])
		if err != nil {
			return err
		}
		return reportAction(store, action, c.ID)
	},
}

var clusterPolicyAttachCmd = &cobra.Command{
	Use:   "policy-attach NAME_OR_ID POLICY_ID",
	Short: "Attach a policy to a cluster",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		priority, _ := cmd.Flags().GetInt("priority")
		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		c, err := resolveCluster(store, args[0])
		if err != nil {
			return err
		}
		action, err := eng.AttachPolicy(c.ID, args[1], priority)
		if err != nil {
			return err
		}
		return reportAction(store, action, c.ID)
	},
}

var clusterPolicyDetachCmd = &cobra.Command{
	Use:   "policy-detach NAME_OR_ID POLICY_ID",
	Short: "Detach a policy from a cluster",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		c, err := resolveCluster(store, args[0])
		if err != nil {
			return err
		}
		action, err := eng.DetachPolicy(c.ID, args[1])
		if err != nil {
			return err
		}
		return reportAction(store, action, c.ID)
	},
}

var clusterPolicyListCmd = &cobra.Command{
	Use:   "policy-list NAME_OR_ID",
	Short: "List a cluster's attached policy bindings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		c, err := resolveCluster(store, args[0])
		if err != nil {
			return err
		}
		bindings, err := store.ListClusterPolicies(c.ID)
		if err != nil {
			return err
		}
		for _, b := range bindings {
			fmt.Printf("%s\tpriority=%d\tenabled=%v\n", b.PolicyID, b.Priority, b.Enabled)
		}
		return nil
	},
}

func init() {
	clusterListCmd.Flags().Bool("show-deleted", false, "Include soft-deleted clusters")

	clusterCreateCmd.Flags().String("profile", "", "Profile id to realize nodes from (required)")
	clusterCreateCmd.Flags().Int("size", 1, "Desired node count")
	clusterCreateCmd.Flags().Int("timeout", 300, "Action timeout in seconds")
	clusterCreateCmd.Flags().String("project", "default", "Owning project id")
	_ = clusterCreateCmd.MarkFlagRequired("profile")

	clusterUpdateCmd.Flags().String("profile", "", "New profile id (required)")
	_ = clusterUpdateCmd.MarkFlagRequired("profile")

	clusterScaleOutCmd.Flags().Int("count", 0, "Nodes to add (0 defers to an attached creation policy, else 1)")
	clusterScaleInCmd.Flags().Int("count", 0, "Nodes to remove (0 defers to an attached deletion policy, else 1)")
	clusterPolicyAttachCmd.Flags().Int("priority", 50, "Binding priority")

	clusterCmd.AddCommand(
		clusterListCmd, clusterGetCmd, clusterCreateCmd, clusterUpdateCmd, clusterDeleteCmd,
		clusterScaleOutCmd, clusterScaleInCmd, clusterAddNodesCmd, clusterDelNodesCmd,
		clusterPolicyAttachCmd, clusterPolicyDetachCmd, clusterPolicyListCmd,
	)
}
