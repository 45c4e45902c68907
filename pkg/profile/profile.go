// Package profile defines the provisioning-profile driver interface and a
// static registry of driver constructors, keyed by profile type.
package profile

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/types"
)

// Verb identifies which profile-driver operation produced a Status.
type Verb string

const (
	VerbCreate Verb = "CREATE"
	VerbDelete Verb = "DELETE"
	VerbUpdate Verb = "UPDATE"
	VerbCheck  Verb = "CHECK"
)

// Stage is the progress of a driver operation.
type Stage string

const (
	StageInProgress Stage = "IN_PROGRESS"
	StageComplete   Stage = "COMPLETE"
	StageFailed     Stage = "FAILED"
)

// Status is a driver-reported status word of the form "<VERB>_<STAGE>",
// e.g. "CREATE_IN_PROGRESS", "DELETE_COMPLETE".
type Status string

// Parse splits a Status into its verb and stage. It returns an error if the
// word does not have the "<VERB>_<STAGE>" shape this package recognizes.
func (s Status) Parse() (Verb, Stage, error) {
	str := string(s)
	for _, stage := range []Stage{StageInProgress, StageComplete, StageFailed} {
		suffix := "_" + string(stage)
		if strings.HasSuffix(str, suffix) {
			verb := Verb(strings.TrimSuffix(str, suffix))
			return verb, stage, nil
		}
	}
	return "", "", clustererr.ValidationFailed(fmt.Sprintf("unparseable profile driver status %q", str))
}

// ExpectVerb parses s and errors if the parsed verb differs from want. A
// driver reporting a CREATE status from an operation that invoked delete is
// a hard error, not a transient mismatch to retry past.
func (s Status) ExpectVerb(want Verb) (Stage, error) {
	verb, stage, err := s.Parse()
	if err != nil {
		return "", err
	}
	if verb != want {
		return "", clustererr.Internal(fmt.Sprintf("profile driver returned verb %s, expected %s (status %q)", verb, want, s), nil)
	}
	return stage, nil
}

// Driver realizes a Node against a concrete provisioning backend. Every
// operation is idempotent from the caller's point of view: do_check may be
// polled repeatedly until it reports a terminal stage.
type Driver interface {
	// DoCreate provisions the physical resource backing node and returns its
	// opaque physical id.
	DoCreate(ctx context.Context, node *types.Node) (physicalID string, err error)
	// DoDelete destroys the physical resource backing node.
	DoDelete(ctx context.Context, node *types.Node) error
	// DoUpdate migrates node onto newProfile.
	DoUpdate(ctx context.Context, node *types.Node, newProfile *types.Profile) error
	// DoCheck polls the current status of the in-flight operation on node.
	DoCheck(ctx context.Context, node *types.Node) (Status, error)
	// DoValidate confirms profile's spec is well-formed for this driver type.
	DoValidate(ctx context.Context, profile *types.Profile) error
}

// Constructor builds a Driver for one profile, e.g. to bind connection
// parameters out of profile.Spec.
type Constructor func(p *types.Profile) (Driver, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register adds a driver constructor under profileType. It is normally
// called from an init() in the package implementing that driver type.
func Register(profileType string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[profileType] = ctor
}

// Build resolves profile.Type in the registry and constructs a Driver.
func Build(p *types.Profile) (Driver, error) {
	registryMu.RLock()
	ctor, ok := registry[p.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, clustererr.ValidationFailed(fmt.Sprintf("no profile driver registered for type %q", p.Type))
	}
	return ctor(p)
}

// Types lists the currently registered profile types.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	return out
}
