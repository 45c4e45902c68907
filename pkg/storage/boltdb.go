package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketClusters       = []byte("clusters")
	bucketNodes          = []byte("nodes")
	bucketProfiles       = []byte("profiles")
	bucketPolicies       = []byte("policies")
	bucketClusterPolicy  = []byte("cluster_policies")
	bucketActions        = []byte("actions")
	bucketActionDeps     = []byte("action_dependencies") // key: actionID -> []string depends-on ids
	bucketActionDependBy = []byte("action_depended_by")  // key: actionID -> []string dependent ids
	bucketEvents         = []byte("events")
)

// BoltStore implements Store using a single BoltDB file, one bucket per
// entity, JSON-encoded values, following the same bucket-per-entity
// CRUD shape used throughout clusterd's storage layer.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) the clusterd database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "clusterd.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	buckets := [][]byte{
		bucketClusters, bucketNodes, bucketProfiles, bucketPolicies,
		bucketClusterPolicy, bucketActions, bucketActionDeps,
		bucketActionDependBy, bucketEvents,
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

func clusterPolicyKey(clusterID, policyID string) []byte {
	return []byte(clusterID + "/" + policyID)
}

// --- Clusters ---

func (s *BoltStore) CreateCluster(c *types.Cluster) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClusters)
		if existing, err := getClusterLocked(b, "", c.Name); err == nil && existing != nil && existing.ID != c.ID {
			return clustererr.Conflict(c.Name, "cluster name already in use")
		}
		return putJSON(b, c.ID, c)
	})
}

func (s *BoltStore) GetCluster(id string, showDeleted bool) (*types.Cluster, error) {
	var c types.Cluster
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClusters)
		if !getJSON(b, id, &c) {
			return clustererr.NotFound(id, "cluster not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if c.DeletedAt != nil && !showDeleted {
		return nil, clustererr.NotFound(id, "cluster not found")
	}
	return &c, nil
}

func (s *BoltStore) GetClusterByName(name string, showDeleted bool) (*types.Cluster, error) {
	var found *types.Cluster
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClusters)
		var err error
		found, err = getClusterLocked(b, "", name)
		return err
	})
	if err != nil {
		return nil, err
	}
	if found == nil || (found.DeletedAt != nil && !showDeleted) {
		return nil, clustererr.NotFound(name, "cluster not found")
	}
	return found, nil
}

func getClusterLocked(b *bolt.Bucket, id, name string) (*types.Cluster, error) {
	var found *types.Cluster
	err := b.ForEach(func(k, v []byte) error {
		var c types.Cluster
		if err := json.Unmarshal(v, &c); err != nil {
			return err
		}
		if (id != "" && c.ID == id) || (name != "" && c.Name == name) {
			found = &c
		}
		return nil
	})
	return found, err
}

func (s *BoltStore) ListClusters(showDeleted bool) ([]*types.Cluster, error) {
	var out []*types.Cluster
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClusters)
		return b.ForEach(func(k, v []byte) error {
			var c types.Cluster
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			if c.DeletedAt == nil || showDeleted {
				out = append(out, &c)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdateCluster(c *types.Cluster) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketClusters), c.ID, c)
	})
}

func (s *BoltStore) SoftDeleteCluster(id string, at int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClusters)
		var c types.Cluster
		if !getJSON(b, id, &c) {
			return clustererr.NotFound(id, "cluster not found")
		}
		t := time.Unix(at, 0).UTC()
		c.DeletedAt = &t
		c.Status = types.ClusterDeleted
		return putJSON(b, id, &c)
	})
}

// --- Nodes ---

func (s *BoltStore) CreateNode(n *types.Node) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketNodes), n.ID, n)
	})
}

func (s *BoltStore) GetNode(id string, showDeleted bool) (*types.Node, error) {
	var n types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		if !getJSON(tx.Bucket(bucketNodes), id, &n) {
			return clustererr.NotFound(id, "node not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if n.DeletedAt != nil && !showDeleted {
		return nil, clustererr.NotFound(id, "node not found")
	}
	return &n, nil
}

func (s *BoltStore) ListNodes(showDeleted bool) ([]*types.Node, error) {
	var out []*types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, v []byte) error {
			var n types.Node
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			if n.DeletedAt == nil || showDeleted {
				out = append(out, &n)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) ListNodesByCluster(clusterID string, showDeleted bool) ([]*types.Node, error) {
	all, err := s.ListNodes(showDeleted)
	if err != nil {
		return nil, err
	}
	var out []*types.Node
	for _, n := range all {
		if n.ClusterID == clusterID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *BoltStore) UpdateNode(n *types.Node) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketNodes), n.ID, n)
	})
}

func (s *BoltStore) SoftDeleteNode(id string, at int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		var n types.Node
		if !getJSON(b, id, &n) {
			return clustererr.NotFound(id, "node not found")
		}
		t := time.Unix(at, 0).UTC()
		n.DeletedAt = &t
		n.Status = types.NodeDeleted
		return putJSON(b, id, &n)
	})
}

// --- Profiles ---

func (s *BoltStore) CreateProfile(p *types.Profile) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketProfiles), p.ID, p)
	})
}

func (s *BoltStore) GetProfile(id string) (*types.Profile, error) {
	var p types.Profile
	err := s.db.View(func(tx *bolt.Tx) error {
		if !getJSON(tx.Bucket(bucketProfiles), id, &p) {
			return clustererr.NotFound(id, "profile not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltStore) ListProfiles(showDeleted bool) ([]*types.Profile, error) {
	var out []*types.Profile
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProfiles).ForEach(func(k, v []byte) error {
			var p types.Profile
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			if p.DeletedAt == nil || showDeleted {
				out = append(out, &p)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) SoftDeleteProfile(id string, at int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		var p types.Profile
		if !getJSON(b, id, &p) {
			return clustererr.NotFound(id, "profile not found")
		}
		t := time.Unix(at, 0).UTC()
		p.DeletedAt = &t
		return putJSON(b, id, &p)
	})
}

// --- Policies ---

func (s *BoltStore) CreatePolicy(p *types.Policy) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketPolicies), p.ID, p)
	})
}

func (s *BoltStore) GetPolicy(id string) (*types.Policy, error) {
	var p types.Policy
	err := s.db.View(func(tx *bolt.Tx) error {
		if !getJSON(tx.Bucket(bucketPolicies), id, &p) {
			return clustererr.NotFound(id, "policy not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltStore) ListPolicies(showDeleted bool) ([]*types.Policy, error) {
	var out []*types.Policy
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPolicies).ForEach(func(k, v []byte) error {
			var p types.Policy
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			if p.DeletedAt == nil || showDeleted {
				out = append(out, &p)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) SoftDeletePolicy(id string, at int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPolicies)
		var p types.Policy
		if !getJSON(b, id, &p) {
			return clustererr.NotFound(id, "policy not found")
		}
		t := time.Unix(at, 0).UTC()
		p.DeletedAt = &t
		return putJSON(b, id, &p)
	})
}

// --- ClusterPolicy bindings ---

func (s *BoltStore) AttachPolicy(cp *types.ClusterPolicy) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketClusterPolicy), string(clusterPolicyKey(cp.ClusterID, cp.PolicyID)), cp)
	})
}

func (s *BoltStore) DetachPolicy(clusterID, policyID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClusterPolicy).Delete(clusterPolicyKey(clusterID, policyID))
	})
}

func (s *BoltStore) GetClusterPolicy(clusterID, policyID string) (*types.ClusterPolicy, error) {
	var cp types.ClusterPolicy
	err := s.db.View(func(tx *bolt.Tx) error {
		if !getJSON(tx.Bucket(bucketClusterPolicy), string(clusterPolicyKey(clusterID, policyID)), &cp) {
			return clustererr.NotFound(policyID, "policy not attached to cluster")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *BoltStore) ListClusterPolicies(clusterID string) ([]*types.ClusterPolicy, error) {
	var out []*types.ClusterPolicy
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClusterPolicy).ForEach(func(k, v []byte) error {
			var cp types.ClusterPolicy
			if err := json.Unmarshal(v, &cp); err != nil {
				return err
			}
			if cp.ClusterID == clusterID {
				out = append(out, &cp)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdateClusterPolicy(cp *types.ClusterPolicy) error {
	return s.AttachPolicy(cp)
}

// --- Events ---

func (s *BoltStore) AppendEvent(e *types.Event) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		key := fmt.Sprintf("%020d/%s", e.Timestamp.UnixNano(), e.ID)
		return putJSON(tx.Bucket(bucketEvents), key, e)
	})
}

func (s *BoltStore) ListEvents(objID string) ([]*types.Event, error) {
	var out []*types.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(k, v []byte) error {
			var e types.Event
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if objID == "" || e.ObjID == objID {
				out = append(out, &e)
			}
			return nil
		})
	})
	return out, err
}

// --- Actions ---

func (s *BoltStore) CreateAction(a *types.Action) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketActions), a.ID, a)
	})
}

func (s *BoltStore) GetAction(id string) (*types.Action, error) {
	var a types.Action
	err := s.db.View(func(tx *bolt.Tx) error {
		if !getJSON(tx.Bucket(bucketActions), id, &a) {
			return clustererr.NotFound(id, "action not found")
		}
		return populateDeps(tx, &a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func populateDeps(tx *bolt.Tx, a *types.Action) error {
	var deps, dependents []string
	getJSON(tx.Bucket(bucketActionDeps), a.ID, &deps)
	getJSON(tx.Bucket(bucketActionDependBy), a.ID, &dependents)
	a.DependsOn = deps
	a.DependedBy = dependents
	return nil
}

func (s *BoltStore) ListActions() ([]*types.Action, error) {
	var out []*types.Action
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketActions).ForEach(func(k, v []byte) error {
			var a types.Action
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			populateDeps(tx, &a)
			out = append(out, &a)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) ListActionsByTarget(target string) ([]*types.Action, error) {
	all, err := s.ListActions()
	if err != nil {
		return nil, err
	}
	var out []*types.Action
	for _, a := range all {
		if a.Target == target {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *BoltStore) ListActionsByStatus(status types.ActionStatus) ([]*types.Action, error) {
	all, err := s.ListActions()
	if err != nil {
		return nil, err
	}
	var out []*types.Action
	for _, a := range all {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *BoltStore) UpdateAction(a *types.Action) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketActions), a.ID, a)
	})
}

// AddDependency records that actionID depends on dependsOnID. It rejects the
// direct cycle actionID == dependsOnID and the one-level cycle where
// dependsOnID already depends on actionID; deeper cycles are not expected
// to arise from clusterd's own action graph construction and are not
// walked for.
func (s *BoltStore) AddDependency(actionID, dependsOnID string) error {
	if actionID == dependsOnID {
		return clustererr.ValidationFailed("action cannot depend on itself")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		var reverse []string
		getJSON(tx.Bucket(bucketActionDeps), dependsOnID, &reverse)
		for _, id := range reverse {
			if id == actionID {
				return clustererr.ValidationFailed("dependency cycle between " + actionID + " and " + dependsOnID)
			}
		}

		var deps []string
		getJSON(tx.Bucket(bucketActionDeps), actionID, &deps)
		deps = append(deps, dependsOnID)
		if err := putJSON(tx.Bucket(bucketActionDeps), actionID, deps); err != nil {
			return err
		}

		var dependents []string
		getJSON(tx.Bucket(bucketActionDependBy), dependsOnID, &dependents)
		dependents = append(dependents, actionID)
		return putJSON(tx.Bucket(bucketActionDependBy), dependsOnID, dependents)
	})
}

func (s *BoltStore) ResolveDependents(actionID string) ([]string, error) {
	var dependents []string
	err := s.db.View(func(tx *bolt.Tx) error {
		getJSON(tx.Bucket(bucketActionDependBy), actionID, &dependents)
		return nil
	})
	return dependents, err
}

// --- helpers ---

func putJSON(b *bolt.Bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

// getJSON reports whether key was present, unmarshalling into v if so.
func getJSON(b *bolt.Bucket, key string, v interface{}) bool {
	data := b.Get([]byte(key))
	if data == nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false
	}
	return true
}
