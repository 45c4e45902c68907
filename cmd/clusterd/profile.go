package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuemby/clusterd/pkg/types"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage provisioning profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		showDeleted, _ := cmd.Flags().GetBool("show-deleted")
		eng, store, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(eng, store)

		profiles, err := store.ListProfiles(showDeleted)
		if err != nil {
			return err
		}
		for _, p := range profiles {
			fmt.Printf("%s\t%s\t%s\n", p.ID, p.Name, p.Type)
		}
		return nil
	},
}

var profileCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profType, _ := cmd.Flags().GetString("type")
		project, _ := cmd.Flags().GetString("project")
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

		p := &types.Profile{
			ID:        uuid.NewString(),
			Name:      args[0],
			ProjectID: project,
			Type:      profType,
			Spec:      spec,
			CreatedAt: time.Now(),
		}
		if err := store.CreateProfile(p); err != nil {
			return err
		}
		fmt.Println(p.ID)
		return nil
	},
}

func init() {
	profileListCmd.Flags().Bool("show-deleted", false, "Include soft-deleted profiles")
	profileCreateCmd.Flags().String("type", "memory", "Profile driver type")
	profileCreateCmd.Flags().String("project", "default", "Owning project id")
	profileCreateCmd.Flags().StringSlice("spec", nil, "key=value pairs folded into the profile spec")
	profileCmd.AddCommand(profileListCmd, profileCreateCmd)
}
