package main

import (
	"fmt"
	"time"

	"github.com/cuemby/clusterd/pkg/storage"
	"github.com/cuemby/clusterd/pkg/types"
)

const defaultWaitTimeout = 2 * time.Minute

// resolveCluster accepts either a cluster id or a cluster name, trying the
// id lookup first since ids are opaque UUIDs that never collide with a
// human-chosen name.
func resolveCluster(store storage.Store, nameOrID string) (*types.Cluster, error) {
	if c, err := store.GetCluster(nameOrID, false); err == nil {
		return c, nil
	}
	return store.GetClusterByName(nameOrID, false)
}

// reportAction blocks until action reaches a terminal status and prints a
// one-line summary, exiting non-zero (via the returned error) on anything
// but SUCCEEDED.
func reportAction(store storage.Store, action *types.Action, subject string) error {
	final, err := waitAction(store, action.ID, defaultWaitTimeout)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\t%s\n", final.ID, final.Status, final.Reason)
	if final.Status != types.ActionSucceeded {
		return fmt.Errorf("action %s for %s ended %s: %s", final.ID, subject, final.Status, final.Reason)
	}
	return nil
}
