package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/clusterd/pkg/types"
)

func TestStatusParse(t *testing.T) {
	tests := []struct {
		name      string
		status    Status
		wantVerb  Verb
		wantStage Stage
		wantErr   bool
	}{
		{name: "create complete", status: "CREATE_COMPLETE", wantVerb: VerbCreate, wantStage: StageComplete},
		{name: "delete in progress", status: "DELETE_IN_PROGRESS", wantVerb: VerbDelete, wantStage: StageInProgress},
		{name: "update failed", status: "UPDATE_FAILED", wantVerb: VerbUpdate, wantStage: StageFailed},
		{name: "unparseable", status: "BOGUS", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verb, stage, err := tt.status.Parse()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVerb, verb)
			assert.Equal(t, tt.wantStage, stage)
		})
	}
}

func TestStatusExpectVerb_Mismatch(t *testing.T) {
	_, err := Status("DELETE_COMPLETE").ExpectVerb(VerbCreate)
	assert.Error(t, err)
}

func TestStatusExpectVerb_Match(t *testing.T) {
	stage, err := Status("CREATE_COMPLETE").ExpectVerb(VerbCreate)
	require.NoError(t, err)
	assert.Equal(t, StageComplete, stage)
}

func TestBuild_UnknownType(t *testing.T) {
	_, err := Build(&types.Profile{Type: "no-such-type"})
	assert.Error(t, err)
}

func TestMemDriver_CreateDeleteCycle(t *testing.T) {
	drv, err := Build(&types.Profile{Type: "memory"})
	require.NoError(t, err)

	node := &types.Node{ID: "n1", Status: types.NodeCreating}
	physID, err := drv.DoCreate(context.Background(), node)
	require.NoError(t, err)
	assert.NotEmpty(t, physID)

	node.PhysicalID = physID
	status, err := drv.DoCheck(context.Background(), node)
	require.NoError(t, err)
	stage, err := status.ExpectVerb(VerbCreate)
	require.NoError(t, err)
	assert.Equal(t, StageComplete, stage)

	node.Status = types.NodeDeleting
	require.NoError(t, drv.DoDelete(context.Background(), node))
}
