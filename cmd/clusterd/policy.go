package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuemby/clusterd/pkg/types"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage policies",
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		showDeleted, _ := cmd.Flags().GetBool("show-deleted")
		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		policies, err := store.ListPolicies(showDeleted)
		if err != nil {
			return err
		}
		for _, p := range policies {
			fmt.Printf("%s\t%s\t%s\n", p.ID, p.Name, p.Type)
		}
		return nil
	},
}

var policyCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		polType, _ := cmd.Flags().GetString("type")
		project, _ := cmd.Flags().GetString("project")
		level, _ := cmd.Flags().GetInt("level")
		cooldown, _ := cmd.Flags().GetInt("cooldown")
		specPairs, _ := cmd.Flags().GetStringSlice("spec")

		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		spec := map[string]interface{}{}
		for _, kv := range specPairs {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("--spec value %q must be key=value", kv)
			}
			spec[parts[0]] = parts[1]
		}

		p := &types.Policy{
			ID:        uuid.NewString(),
			Name:      args[0],
			ProjectID: project,
			Type:      polType,
			Level:     level,
			Cooldown:  cooldown,
			Spec:      spec,
			CreatedAt: time.Now(),
		}
		if err := store.CreatePolicy(p); err != nil {
			return err
		}
		fmt.Println(p.ID)
		return nil
	},
}

func init() {
	policyListCmd.Flags().Bool("show-deleted", false, "Include soft-deleted policies")
	policyCreateCmd.Flags().String("type", "deletion", "Policy type")
	policyCreateCmd.Flags().String("project", "default", "Owning project id")
	policyCreateCmd.Flags().Int("level", 0, "Severity/ordering hint bindings fall back to when unset")
	policyCreateCmd.Flags().Int("cooldown", 0, "Minimum seconds between two triggers of this policy")
	policyCreateCmd.Flags().StringSlice("spec", nil, "key=value pairs folded into the policy spec")
	policyCmd.AddCommand(policyListCmd, policyCreateCmd)
}
