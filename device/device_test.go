package device

import (
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBadOrdinal(t *testing.T) {
	_, err := Open(17, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeviceInit))

	_, err = Open(-1, Options{})
	assert.True(t, errors.Is(err, ErrDeviceInit))
}

func TestBufferBudget(t *testing.T) {
	dev, err := Open(0, Options{TotalMem: 1024})
	require.NoError(t, err)
	defer dev.Close()

	free, total := dev.MemInfo()
	assert.EqualValues(t, 1024, free)
	assert.EqualValues(t, 1024, total)

	a, err := dev.NewBuffer("a", 600)
	require.NoError(t, err)
	free, _ = dev.MemInfo()
	assert.EqualValues(t, 424, free)

	_, err = dev.NewBuffer("b", 600)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllocationFailed))

	a.Release()
	free, _ = dev.MemInfo()
	assert.EqualValues(t, 1024, free)

	//releasing twice must not double-credit the budget
	a.Release()
	free, _ = dev.MemInfo()
	assert.EqualValues(t, 1024, free)
}

func TestCloseReleasesBuffers(t *testing.T) {
	dev, err := Open(0, Options{TotalMem: 1 << 20})
	require.NoError(t, err)

	_, err = dev.NewBuffer("a", 1<<18)
	require.NoError(t, err)
	_, err = dev.NewBuffer("b", 1<<18)
	require.NoError(t, err)

	dev.Close()
	free, total := dev.MemInfo()
	assert.Equal(t, total, free)

	_, err = dev.NewBuffer("late", 16)
	assert.True(t, errors.Is(err, ErrAllocationFailed))
	err = dev.Launch("late", 1, func(lane int) {})
	assert.True(t, errors.Is(err, ErrLaunchFailure))
}

func TestLaunchRunsEveryLane(t *testing.T) {
	dev, err := Open(0, Options{TotalMem: 1 << 20, Workers: 3})
	require.NoError(t, err)
	defer dev.Close()

	const lanes = 1000
	var seen [lanes]int32
	require.NoError(t, dev.Launch("count", lanes, func(lane int) {
		atomic.AddInt32(&seen[lane], 1)
	}))
	for lane := range seen {
		require.EqualValues(t, 1, seen[lane], "lane %d", lane)
	}
}

func TestLaunchRecoversPanic(t *testing.T) {
	dev, err := Open(0, Options{TotalMem: 1 << 20})
	require.NoError(t, err)
	defer dev.Close()

	err = dev.Launch("boom", 64, func(lane int) {
		if lane == 13 {
			panic("lane 13")
		}
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExecutionFailure))
	assert.Contains(t, err.Error(), "boom")
}

func TestLaunchGroups(t *testing.T) {
	dev, err := Open(0, Options{TotalMem: 1 << 20})
	require.NoError(t, err)
	defer dev.Close()

	const groups = 64
	var seen [groups]int32
	require.NoError(t, dev.LaunchGroups("groups", groups, func(g Group) {
		assert.Equal(t, GroupWidth, g.Width())
		atomic.AddInt32(&seen[g.Index()], 1)
	}))
	for g := range seen {
		require.EqualValues(t, 1, seen[g], "group %d", g)
	}
}

func TestLaunchEmpty(t *testing.T) {
	dev, err := Open(0, Options{TotalMem: 1 << 20})
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.Launch("empty", 0, func(lane int) {
		t.Error("kernel ran on an empty launch")
	}))
}
