package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hprofdecode/internal/hprof"
)

// buildChain wires root -> a -> b -> c, with b also reachable only through a.
func buildChain(t *testing.T) *Consumer {
	t.Helper()
	c := New(nil)

	require.NoError(t, c.RootStickyClass(hprof.RootStickyClass{ObjectID: 1}))
	require.NoError(t, c.InstanceDump(hprof.InstanceDump{
		ObjectID: 1, ClassObjectID: 100,
		Fields: []hprof.InstanceField{
			{FieldDescriptor: hprof.FieldDescriptor{Type: hprof.TypeObject}, Value: hprof.Value{Type: hprof.TypeObject, Object: 2}},
		},
	}))
	require.NoError(t, c.InstanceDump(hprof.InstanceDump{
		ObjectID: 2, ClassObjectID: 100,
		Fields: []hprof.InstanceField{
			{FieldDescriptor: hprof.FieldDescriptor{Type: hprof.TypeObject}, Value: hprof.Value{Type: hprof.TypeObject, Object: 3}},
		},
	}))
	require.NoError(t, c.InstanceDump(hprof.InstanceDump{ObjectID: 3, ClassObjectID: 100}))
	return c
}

func TestFinish_LinearChainDominators(t *testing.T) {
	c := buildChain(t)
	result := c.Finish()

	assert.Equal(t, superRoot, result.Dominators[uint64(1)])
	assert.EqualValues(t, 1, result.Dominators[uint64(2)])
	assert.EqualValues(t, 2, result.Dominators[uint64(3)])
	assert.Empty(t, result.Unreachable)
}

func TestFinish_RetainedSizeSumsSubtree(t *testing.T) {
	c := buildChain(t)
	require.NoError(t, c.ClassDump(hprof.ClassDump{ClassObjectID: 100, InstanceSize: 16}))
	for _, id := range []uint64{1, 2, 3} {
		c.objectSize[id] = 16
	}

	result := c.Finish()
	assert.EqualValues(t, 48, result.Retained[uint64(1)])
	assert.EqualValues(t, 32, result.Retained[uint64(2)])
	assert.EqualValues(t, 16, result.Retained[uint64(3)])
}

func TestFinish_UnreachableObjectIsGarbage(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.InstanceDump(hprof.InstanceDump{ObjectID: 9, ClassObjectID: 100}))

	result := c.Finish()
	assert.Equal(t, []uint64{9}, result.Unreachable)
	assert.Equal(t, superRoot, result.Dominators[uint64(9)])
}

func TestFinish_DiamondSharedChildDominatedByRoot(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.RootStickyClass(hprof.RootStickyClass{ObjectID: 1}))
	require.NoError(t, c.InstanceDump(hprof.InstanceDump{
		ObjectID: 1, ClassObjectID: 100,
		Fields: []hprof.InstanceField{
			{FieldDescriptor: hprof.FieldDescriptor{Type: hprof.TypeObject}, Value: hprof.Value{Type: hprof.TypeObject, Object: 2}},
			{FieldDescriptor: hprof.FieldDescriptor{Type: hprof.TypeObject}, Value: hprof.Value{Type: hprof.TypeObject, Object: 3}},
		},
	}))
	require.NoError(t, c.InstanceDump(hprof.InstanceDump{
		ObjectID: 2, ClassObjectID: 100,
		Fields: []hprof.InstanceField{
			{FieldDescriptor: hprof.FieldDescriptor{Type: hprof.TypeObject}, Value: hprof.Value{Type: hprof.TypeObject, Object: 4}},
		},
	}))
	require.NoError(t, c.InstanceDump(hprof.InstanceDump{
		ObjectID: 3, ClassObjectID: 100,
		Fields: []hprof.InstanceField{
			{FieldDescriptor: hprof.FieldDescriptor{Type: hprof.TypeObject}, Value: hprof.Value{Type: hprof.TypeObject, Object: 4}},
		},
	}))
	require.NoError(t, c.InstanceDump(hprof.InstanceDump{ObjectID: 4, ClassObjectID: 100}))

	result := c.Finish()
	// 4 is reachable via both 2 and 3, so its immediate dominator is 1, not either branch.
	assert.EqualValues(t, 1, result.Dominators[uint64(4)])
}
