// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package runlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/scigen/pkg/types"
)

func testLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", dbFile))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func testConfig(seed int64) types.GenerationConfig {
	cfg := types.DefaultGenerationConfig()
	cfg.Seed = &seed
	cfg.Year = 2026
	cfg.Authors = []string{"Alice Example"}
	cfg.Topics = []string{"networking"}
	cfg.Title = "On Kernels"
	return cfg
}

func TestStartGetFinish(t *testing.T) {
	l := testLog(t)
	ctx := context.Background()

	run, err := l.Start(ctx, testConfig(42))
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, int64(42), run.Seed)
	assert.Equal(t, types.RunStarted, run.Status)

	got, err := l.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.StartedAt, got.StartedAt)
	assert.Equal(t, testConfig(42), got.Config)

	require.NoError(t, l.Finish(ctx, run.ID, "/tmp/paper.pdf", nil))
	got, err = l.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunComplete, got.Status)
	assert.Equal(t, "/tmp/paper.pdf", got.Artifact)
	assert.Empty(t, got.Error)
}

func TestFinish_Failed(t *testing.T) {
	l := testLog(t)
	ctx := context.Background()
	run, err := l.Start(ctx, testConfig(1))
	require.NoError(t, err)

	require.NoError(t, l.Finish(ctx, run.ID, "", errors.New("pdflatex: exit status 1")))
	got, err := l.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunFailed, got.Status)
	assert.Equal(t, "pdflatex: exit status 1", got.Error)

	assert.ErrorIs(t, l.Finish(ctx, "no-such-run", "", nil), ErrNotFound)
}

func TestStart_RequiresSeed(t *testing.T) {
	l := testLog(t)
	_, err := l.Start(context.Background(), types.DefaultGenerationConfig())
	assert.Error(t, err)
}

func TestGet_Prefix(t *testing.T) {
	l := testLog(t)
	ctx := context.Background()
	run, err := l.Start(ctx, testConfig(7))
	require.NoError(t, err)

	got, err := l.Get(ctx, run.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)

	_, err = l.Get(ctx, "zzzz")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Start(ctx, testConfig(8))
	require.NoError(t, err)
	_, err = l.Get(ctx, "")
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestList_NewestFirst(t *testing.T) {
	l := testLog(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 3 {
		l.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		_, err := l.Start(ctx, testConfig(int64(i)))
		require.NoError(t, err)
	}

	runs, err := l.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []int64{2, 1, 0}, []int64{runs[0].Seed, runs[1].Seed, runs[2].Seed})

	runs, err = l.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), dbFile)
	l, err := Open(path)
	require.NoError(t, err)
	run, err := l.Start(context.Background(), testConfig(3))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	got, err := l.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Seed)
}

func TestExport(t *testing.T) {
	l := testLog(t)
	ctx := context.Background()
	for i := range 2 {
		_, err := l.Start(ctx, testConfig(int64(10+i)))
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, l.Export(ctx, &buf, FormatYAML))
	var fromYAML []types.Run
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Len(t, fromYAML, 2)

	buf.Reset()
	require.NoError(t, l.Export(ctx, &buf, FormatJSON))
	var fromJSON []types.Run
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	require.Len(t, fromJSON, 2)
	assert.Equal(t, []string{"networking"}, fromJSON[0].Config.Topics)

	assert.Error(t, l.Export(ctx, &buf, "csv"))
}
