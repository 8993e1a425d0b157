package badger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/codefulcrum/senseai/storage"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := OpenBackend(file, false)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	err = backend.View(func(tx *badger.Txn) error { return nil })
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	err = backend.Update(func(tx *badger.Txn) error { return nil })
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.ErrorIs(t, backend.CollectGarbage(), storage.ErrStorageClosed)
}

func TestBatch(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	err = backend.Batch(func(wb *badger.WriteBatch) error {
		for _, k := range []string{"sesrec:a", "sesrec:b", "sestrn:a", "conitm:a"} {
			if err := wb.Set([]byte(k), []byte("v")); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = backend.Batch(func(wb *badger.WriteBatch) error {
		if err := wb.Delete([]byte("conitm:a")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var records, all []string
	err = backend.View(func(tx *badger.Txn) error {
		for _, key := range keysWithPrefix(tx, prefixOf(sessionRecordPrefix)) {
			records = append(records, string(key))
		}
		for _, family := range []string{sessionRecordPrefix, transcriptPrefix, contentItemPrefix} {
			for _, key := range keysWithPrefix(tx, prefixOf(family)) {
				all = append(all, string(key))
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"sesrec:a", "sesrec:b"}, records)
	assert.Len(t, all, 4, "a failed batch writes nothing")
}

func TestCollectGarbage(t *testing.T) {
	t.Run("in-memory is a no-op", func(t *testing.T) {
		backend, err := OpenBackend("", true)
		require.NoError(t, err)
		defer backend.Close()
		assert.NoError(t, backend.CollectGarbage())
	})

	t.Run("on disk with nothing to reclaim", func(t *testing.T) {
		backend, err := OpenBackend(t.TempDir(), false)
		require.NoError(t, err)
		defer backend.Close()

		require.NoError(t, backend.Update(func(tx *badger.Txn) error {
			return tx.Set([]byte("conitm:a"), []byte("v"))
		}))
		assert.NoError(t, backend.CollectGarbage())
	})
}

func TestKeys(t *testing.T) {
	assert.Equal(t, []byte("conitm:abc"), makeContentKey("abc"))
	assert.Equal(t, []byte("sesrec:000000000000000a:abc"), makeSessionRecordKey(10, "abc"))
	assert.Equal(t, []byte("sestrn:0000000000000001:abc"), makeTranscriptKey(1, "abc"))
	assert.Equal(t, "abc", idFromKey(generationPrefix(transcriptPrefix, 1), makeTranscriptKey(1, "abc")))

	gen, ok := keyGeneration(sessionRecordPrefix, makeSessionRecordKey(42, "x:y"))
	assert.True(t, ok)
	assert.Equal(t, uint64(42), gen)

	for _, key := range []string{"sesrec:abc", "sesrec:zzzzzzzzzzzzzzzz:abc", "sestrn:0000000000000001:abc"} {
		_, ok := keyGeneration(sessionRecordPrefix, []byte(key))
		assert.False(t, ok, key)
	}

	decoded, err := decodeGeneration(encodeGeneration(7))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), decoded)
}
