package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/clusterd/pkg/storage"
	"github.com/cuemby/clusterd/pkg/types"
)

// resource is a generic clusterd manifest, the same apiVersion/kind/
// metadata/spec envelope warren's apply.go reads, adapted to this
// domain's three declarable kinds.
type resource struct {
	APIVersion string                 `yaml:"apiVersion"`
	Kind       string                 `yaml:"kind"`
	Metadata   resourceMetadata       `yaml:"metadata"`
	Spec       map[string]interface{} `yaml:"spec"`
}

type resourceMetadata struct {
	Name string            `yaml:"name"`
	Tags map[string]string `yaml:"tags,omitempty"`
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a Profile, Policy, or Cluster manifest",
	Long: `Apply a declarative clusterd manifest from a YAML file.

Examples:
  clusterd apply -f profile.yaml
  clusterd apply -f cluster.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read %s: %w", filename, err)
	}
	var r resource
	if err := yaml.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}

	eng, store, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine(eng, store)

	switch r.Kind {
	case "Profile":
		return applyProfile(store, &r)
	case "Policy":
		return applyPolicy(store, &r)
	case "Cluster":
		return applyCluster(eng, store, &r)
	default:
		return fmt.Errorf("unsupported resource kind: %s", r.Kind)
	}
}

func applyProfile(store storage.Store, r *resource) error {
	if existing, err := findProfileByName(store, r.Metadata.Name); err == nil {
		fmt.Printf("profile %s already exists (%s), profiles are immutable once created\n", r.Metadata.Name, existing.ID)
		return nil
	}
	p := &types.Profile{
		ID:        uuid.NewString(),
		Name:      r.Metadata.Name,
		Type:      getString(r.Spec, "type", "memory"),
		Spec:      r.Spec,
		CreatedAt: time.Now(),
	}
	if err := store.CreateProfile(p); err != nil {
		return err
	}
	fmt.Printf("profile.clusterd/%s created (%s)\n", p.Name, p.ID)
	return nil
}

func applyPolicy(store storage.Store, r *resource) error {
	p := &types.Policy{
		ID:        uuid.NewString(),
		Name:      r.Metadata.Name,
		Type:      getString(r.Spec, "type", "deletion"),
		Spec:      r.Spec,
		CreatedAt: time.Now(),
	}
	if err := store.CreatePolicy(p); err != nil {
		return err
	}
	fmt.Printf("policy.clusterd/%s created (%s)\n", p.Name, p.ID)
	return nil
}

func applyCluster(eng interface {
	CreateCluster(string) (*types.Action, error)
	ScaleOut(string, int) (*types.Action, error)
	ScaleIn(string, int) (*types.Action, error)
}, store storage.Store, r *resource) error {
	profileName := getString(r.Spec, "profile", "")
	if profileName == "" {
		return fmt.Errorf("cluster manifest requires spec.profile")
	}
	prof, err := findProfileByName(store, profileName)
	if err != nil {
		return fmt.Errorf("profile %q: %w", profileName, err)
	}
	size := getInt(r.Spec, "size", 1)

	existing, err := store.GetClusterByName(r.Metadata.Name, false)
	if err == nil {
		if size > existing.Size {
			action, err := eng.ScaleOut(existing.ID, size-existing.Size)
			if err != nil {
				return err
			}
			return reportAction(store, action, existing.ID)
		}
		if size < existing.Size {
			action, err := eng.ScaleIn(existing.ID, existing.Size-size)
			if err != nil {
				return err
			}
			return reportAction(store, action, existing.ID)
		}
		fmt.Printf("cluster.clusterd/%s unchanged (size %d)\n", existing.Name, existing.Size)
		return nil
	}

	cluster := &types.Cluster{
		ID:        uuid.NewString(),
		Name:      r.Metadata.Name,
		ProfileID: prof.ID,
		Size:      size,
		Timeout:   getInt(r.Spec, "timeout", 300),
		Status:    types.ClusterInit,
		Tags:      r.Metadata.Tags,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if cluster.Tags == nil {
		cluster.Tags = map[string]string{}
	}
	if err := store.CreateCluster(cluster); err != nil {
		return err
	}
	action, err := eng.CreateCluster(cluster.ID)
	if err != nil {
		return err
	}
	return reportAction(store, action, cluster.ID)
}

func findProfileByName(store storage.Store, name string) (*types.Profile, error) {
	profiles, err := store.ListProfiles(false)
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no profile named %q", name)
}

func getString(spec map[string]interface{}, key, def string) string {
	if v, ok := spec[key].(string); ok {
		return v
	}
	return def
}

func getInt(spec map[string]interface{}, key string, def int) int {
	switch v := spec[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}
