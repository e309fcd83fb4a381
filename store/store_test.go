package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"nlmdof"
	"nlmdof/driver"
	"nlmdof/result"
	"nlmdof/types"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sub", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestInsertRun 批处理与地震动按顺序读回
func TestInsertRun(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	run := Run{
		StartedAt: start,
		EndedAt:   start.Add(time.Minute),
		Project:   "p.toml",
		Dir:       "/tmp/r",
		Stories:   3,
		Total:     2,
		Completed: 2,
		Diverged:  1,
	}
	motions := []Motion{
		{Index: 2, Name: "b", State: "failed", Time: 1.2, Duration: 2, Steps: 50, Failures: 12, T1: 0.4},
		{Index: 1, Name: "a", State: "converged", Time: 2, Duration: 2, Steps: 200, T1: 0.4, PeakDrift: 3.5, PeakAccel: 0.6},
	}
	id, err := s.InsertRun(ctx, run, motions)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	got, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.True(t, start.Equal(got.StartedAt))
	assert.Equal(t, 3, got.Stories)
	assert.Equal(t, 1, got.Diverged)
	assert.False(t, got.Cancelled)

	ms, err := s.ListMotions(ctx, id)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "a", ms[0].Name)
	assert.Equal(t, id, ms[0].RunID)
	assert.Equal(t, 3.5, ms[0].PeakDrift)
	assert.Equal(t, 12, ms[1].Failures)
}

// TestListRuns 最近的批处理在前
func TestListRuns(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.InsertRun(ctx, Run{
			ID:        string(rune('a' + i)),
			StartedAt: start,
			EndedAt:   start.Add(time.Duration(i) * time.Hour),
			Cancelled: i == 1,
			Err:       "",
		}, nil)
		require.NoError(t, err)
	}
	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.True(t, runs[1].Cancelled)

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// 重复 ID 失败且不留下地震动
	_, err = s.InsertRun(ctx, Run{ID: "a", StartedAt: start, EndedAt: start}, []Motion{{Index: 1, Name: "x"}})
	assert.Error(t, err)
	ms, err := s.ListMotions(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, ms)
}

// TestDeleteRun 删除后不可读取
func TestDeleteRun(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	now := time.Now().UTC()
	id, err := s.InsertRun(ctx, Run{StartedAt: now, EndedAt: now}, []Motion{{Index: 1, Name: "a"}})
	require.NoError(t, err)
	require.NoError(t, s.DeleteRun(ctx, id))

	_, err = s.GetRun(ctx, id)
	assert.True(t, errors.Is(err, ErrNotFound))
	ms, err := s.ListMotions(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, ms)
	assert.True(t, errors.Is(s.DeleteRun(ctx, id), ErrNotFound))
}

// TestNewMotion 峰值取包络最大值，加速度换算为 g
func TestNewMotion(t *testing.T) {
	gm, err := types.NewGroundMotion("gm", []float64{0, 1, 0}, 0.01, types.UnitG)
	require.NoError(t, err)
	rep := &nlmdof.Report{
		Motion:  gm,
		Outcome: driver.Outcome{State: driver.Converged, Time: 0.02, Duration: 0.02, Steps: 2},
		Periods: []float64{0.5, 0.2},
	}
	r := &result.Results{
		Name:      "gm",
		T:         []float64{0, 0.01, 0.02},
		BaseAcc:   []float64{0, 9800, 0},
		FloorAcc:  mat.NewDense(3, 2, []float64{0, 0, 9800, 0, 0, 0}),
		FloorDisp: mat.NewDense(3, 2, []float64{0, 0, 1, 4, 0, 0}),
	}
	m := NewMotion(1, rep, r, types.DefaultG)
	assert.Equal(t, "gm", m.Name)
	assert.Equal(t, "converged", m.State)
	assert.Equal(t, 0.5, m.T1)
	assert.Equal(t, 3.0, m.PeakDrift)
	assert.Equal(t, 2.0, m.PeakAccel)

	m = NewMotion(2, rep, nil, types.DefaultG)
	assert.Zero(t, m.PeakDrift)
	assert.Equal(t, 2, m.Steps)
}
