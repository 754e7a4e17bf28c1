package fitselect

import (
	"testing"

	"github.com/cuemby/warren/internal/jobspec"
	"github.com/cuemby/warren/internal/placement"
	"github.com/stretchr/testify/assert"
)

func fullBitmap(n int) *jobspec.NodeBitmap {
	b := jobspec.NewNodeBitmap(n)
	for i := 0; i < n; i++ {
		b.Set(i)
	}
	return b
}

func TestTestClaimsFirstFitNodes(t *testing.T) {
	s := New(4)
	partition := &jobspec.Partition{Nodes: fullBitmap(4)}
	avail := fullBitmap(4)

	outcome, chosen, _, err := s.Test(&jobspec.Job{}, partition, avail, 1, 2, 2, placement.ModeRun)
	assert.NoError(t, err)
	assert.Equal(t, placement.SelectorOK, outcome)
	assert.Equal(t, 2, chosen.Count())
	assert.True(t, chosen.IsSet(0))
	assert.True(t, chosen.IsSet(1))
}

func TestTestReturnsBusyWhenNotEnoughFreeNodes(t *testing.T) {
	s := New(4)
	partition := &jobspec.Partition{Nodes: fullBitmap(4)}
	avail := jobspec.NewNodeBitmap(4)
	avail.Set(0)

	outcome, chosen, _, err := s.Test(&jobspec.Job{}, partition, avail, 1, 2, 2, placement.ModeRun)
	assert.NoError(t, err)
	assert.Equal(t, placement.SelectorBusy, outcome)
	assert.Nil(t, chosen)
}

func TestTestHonorsJobRequiredNodes(t *testing.T) {
	s := New(4)
	partition := &jobspec.Partition{Nodes: fullBitmap(4)}
	avail := fullBitmap(4)

	required := jobspec.NewNodeBitmap(4)
	required.Set(3)

	outcome, chosen, _, err := s.Test(&jobspec.Job{RequiredNodes: required}, partition, avail, 1, 1, 1, placement.ModeRun)
	assert.NoError(t, err)
	assert.Equal(t, placement.SelectorOK, outcome)
	assert.True(t, chosen.IsSet(3))
}
