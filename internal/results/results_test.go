package results

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type participant struct {
	name string
	temp float64
}

func (p participant) Name() string         { return p.name }
func (p participant) Temperature() float64 { return p.temp }

func TestPairName(t *testing.T) {
	t.Parallel()

	a := participant{"alpha", 0}
	b := participant{"beta", 0.7}

	got, err := PairName(a)
	require.NoError(t, err)
	assert.Equal(t, "alpha-t0--alpha-t0", got)

	got, err = PairName(a, b)
	require.NoError(t, err)
	assert.Equal(t, "alpha-t0--beta-t0.7", got)

	_, err = PairName()
	require.Error(t, err)
	_, err = PairName(a, b, a)
	require.Error(t, err)
}

func TestLayout(t *testing.T) {
	t.Parallel()

	exp := ExperimentDir("", "a--b", "firstlast", 2, "short")
	assert.Equal(t, filepath.Join("results", "a--b", "firstlast", "2_short"), exp)
	assert.Equal(t, filepath.Join(exp, "experiment_short.json"), ExperimentFile(exp, "short"))
	assert.Equal(t, filepath.Join(exp, "episode_3"), EpisodeDir(exp, 3))
	assert.Equal(t, "a_b", SanitizeName("a/b"))
}

func TestAtomicWriteFile(t *testing.T) {
	t.Parallel()

	t.Run("creates parents and writes", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "a", "b", "doc.json")
		require.NoError(t, AtomicWriteFile(path, []byte("hello"), 0644))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temporary file should not remain")
	})

	t.Run("overwrites", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "doc.json")
		require.NoError(t, AtomicWriteFile(path, []byte("one"), 0644))
		require.NoError(t, AtomicWriteFile(path, []byte("two"), 0644))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "two", string(data))
	})

	t.Run("rename onto directory fails", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("rename semantics differ on Windows")
		}
		t.Parallel()
		dir := t.TempDir()
		target := filepath.Join(dir, "occupied")
		require.NoError(t, os.MkdirAll(filepath.Join(target, "child"), 0755))

		err := AtomicWriteFile(target, []byte("x"), 0644)
		var renameErr RenameError
		require.True(t, errors.As(err, &renameErr))
		_, statErr := os.Stat(renameErr.TempPath())
		assert.NoError(t, statErr)
	})
}

func TestWriteReadJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "doc.json")
	in := map[string]any{"a": "b", "n": 1.5}
	require.NoError(t, WriteJSON(path, in))

	var out map[string]any
	require.NoError(t, ReadJSON(path, &out))
	assert.Equal(t, in, out)

	require.Error(t, ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &out))
	require.Error(t, WriteJSON(path, func() {}))
}
