package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingFile_Rotates(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "app.log")
	w, err := OpenRotating(path, 1, 2)
	require.NoError(t, err)
	defer w.Close()

	chunk := bytes.Repeat([]byte("x"), megabyte/2+1)
	for _, b := range []byte("abcd") {
		chunk[0] = b
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	// Each chunk is over half the limit, so every write after the first
	// rotates: current holds d, .1 holds c, .2 holds b, a was dropped.
	for suffix, want := range map[string]byte{"": 'd', ".1": 'c', ".2": 'b'} {
		data, err := os.ReadFile(path + suffix)
		require.NoError(t, err, suffix)
		assert.Equal(t, want, data[0], suffix)
	}
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}

func TestRotatingFile_ZeroBackups(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "app.log")
	w, err := OpenRotating(path, 0, -1)
	require.NoError(t, err)
	defer w.Close()

	big := bytes.Repeat([]byte("y"), megabyte)
	_, err = w.Write(big)
	require.NoError(t, err)
	_, err = w.Write([]byte("z"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "z", string(data))
	_, err = os.Stat(path + ".1")
	assert.True(t, os.IsNotExist(err))
}

func TestRotatingFile_AppendsAndCreatesDirs(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "a", "b", "app.log")

	w, err := OpenRotating(path, 1, 1)
	require.NoError(t, err)
	_, err = w.Write([]byte("one\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))
	require.ErrorIs(t, err, os.ErrClosed)

	w, err = OpenRotating(path, 1, 1)
	require.NoError(t, err)
	_, err = w.Write([]byte("two\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestRotatingFile_Concurrent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "app.log")
	w, err := OpenRotating(path, 1, 3)
	require.NoError(t, err)
	defer w.Close()

	line := append(bytes.Repeat([]byte("w"), 1023), '\n')
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 200 {
				_, _ = w.Write(line)
			}
		})
	}
	wg.Wait()

	var total int64
	for _, suffix := range []string{"", ".1"} {
		info, err := os.Stat(path + suffix)
		require.NoError(t, err)
		assert.Zero(t, info.Size()%int64(len(line)), "writes must not be split")
		total += info.Size()
	}
	assert.Equal(t, int64(1600*len(line)), total)
}
