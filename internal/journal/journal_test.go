package journal

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "journal.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openTemp(t)
	ctx := context.Background()

	first := NewEntry("editor", "gaussian", map[string]interface{}{"kernel_size": 5.0})
	first.Input = FormatSize(640, 480, 3)
	first.SetMetrics(31.5, 0.92)
	first.Finish(time.Now(), nil)
	require.NoError(t, store.Record(ctx, first))

	second := NewEntry("compression", "dct", nil)
	second.Finish(time.Now(), errors.New("boom"))
	require.NoError(t, store.Record(ctx, second))

	entries, err := store.Recent(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "dct", entries[0].Operation)
	assert.Equal(t, StatusFailed, entries[0].Status)
	assert.Equal(t, "boom", entries[0].Error)

	assert.Equal(t, "640x480x3", entries[1].Input)
	assert.JSONEq(t, `{"kernel_size":5}`, entries[1].Params)
	require.NotNil(t, entries[1].PSNR)
	assert.InDelta(t, 31.5, *entries[1].PSNR, 1e-9)

	editor, err := store.Recent(ctx, 10, "editor")
	require.NoError(t, err)
	assert.Len(t, editor, 1)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"gaussian": 1, "dct": 1}, stats)
}

func TestSetMetricsSkipsInfinity(t *testing.T) {
	e := NewEntry("editor", "grayscale", nil)
	e.SetMetrics(math.Inf(1), 1)
	assert.Nil(t, e.PSNR)
	require.NotNil(t, e.SSIM)
	assert.Equal(t, 1.0, *e.SSIM)
}

func TestOpenDrivers(t *testing.T) {
	_, err := Open(Config{Driver: "none"})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = Open(Config{Driver: "mongo"})
	assert.ErrorContains(t, err, "unknown journal driver")
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn := BuildPostgresDSN(PostgresConfig{Host: "db", User: "sona", Password: "pw", DBName: "images", UseSSL: true})
	assert.Equal(t, "host=db port=5432 user=sona password=pw dbname=images sslmode=require", dsn)
}
