package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/session-metrics/pkg/logger"
	"github.com/0xmhha/session-metrics/pkg/metrics"
)

func newTestRecord(dir, task, mode string) *metrics.Record {
	return &metrics.Record{
		TaskID:       task,
		DirectoryID:  dir,
		Mode:         mode,
		Model:        metrics.DefaultModel,
		MCPServer:    metrics.MCPServer,
		MCPClient:    metrics.MCPClient,
		StartTime:    1000,
		EndTime:      61000,
		Duration:     60000,
		APICalls:     3,
		Interactions: 1,
		TokensIn:     100,
		TokensOut:    50,
		TotalTokens:  150,
		Cost:         0.002,
		Success:      true,
	}
}

// stores returns each Store implementation under test.
func stores(t *testing.T) map[string]Store {
	t.Helper()

	bolt, err := Open(Config{DBPath: filepath.Join(t.TempDir(), "metrics.db")}, logger.Noop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })

	return map[string]Store{
		"bolt":   bolt,
		"memory": NewMemory(),
	}
}

func TestStore_PutGet(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec := newTestRecord("run-1", "7", metrics.ModeMCP)
			require.NoError(t, st.Put(rec))

			got, err := st.Get("run-1/7")
			require.NoError(t, err)
			assert.Equal(t, *rec, *got)

			_, err = st.Get("run-1/8")
			assert.ErrorIs(t, err, ErrRecordNotFound)
		})
	}
}

func TestStore_PutReplaces(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec := newTestRecord("run-1", "7", metrics.ModeControl)
			require.NoError(t, st.Put(rec))

			rec.APICalls = 9
			require.NoError(t, st.Put(rec))

			n, err := st.Count()
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			got, err := st.Get(rec.Key())
			require.NoError(t, err)
			assert.Equal(t, 9, got.APICalls)
		})
	}
}

func TestStore_PutInvalid(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, st.Put(nil), ErrInvalidRecord)
			assert.ErrorIs(t, st.Put(&metrics.Record{}), ErrInvalidRecord)
		})
	}
}

func TestStore_ListOrderedByKey(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.Put(newTestRecord("b", "1", metrics.ModeMCP)))
			require.NoError(t, st.Put(newTestRecord("a", "2", metrics.ModeControl)))
			require.NoError(t, st.Put(newTestRecord("a", "1", metrics.ModeControl)))

			records, err := st.List()
			require.NoError(t, err)
			require.Len(t, records, 3)

			keys := []string{records[0].Key(), records[1].Key(), records[2].Key()}
			assert.Equal(t, []string{"a/1", "a/2", "b/1"}, keys)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.Put(newTestRecord("d", "1", metrics.ModeMCP)))

			require.NoError(t, st.Delete("d/1"))
			assert.ErrorIs(t, st.Delete("d/1"), ErrRecordNotFound)

			n, err := st.Count()
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestStore_SeenFingerprint(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			fp := Fingerprint{Size: 512, ModTime: 1700000000}

			seen, err := st.Seen("/segments/a.json", fp)
			require.NoError(t, err)
			assert.False(t, seen)

			require.NoError(t, st.MarkSeen("/segments/a.json", fp))

			seen, err = st.Seen("/segments/a.json", fp)
			require.NoError(t, err)
			assert.True(t, seen)

			seen, err = st.Seen("/segments/a.json", Fingerprint{Size: 513, ModTime: 1700000000})
			require.NoError(t, err)
			assert.False(t, seen, "changed size must not count as seen")
		})
	}
}

func TestStore_ExportJSON(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var empty bytes.Buffer
			require.NoError(t, st.ExportJSON(&empty))
			assert.JSONEq(t, "[]", empty.String())

			require.NoError(t, st.Put(newTestRecord("x", "1", metrics.ModeMCP)))

			var buf bytes.Buffer
			require.NoError(t, st.ExportJSON(&buf))

			var docs []map[string]interface{}
			require.NoError(t, sonic.Unmarshal(buf.Bytes(), &docs))
			require.Len(t, docs, 1)
			assert.Equal(t, "1", docs[0]["taskId"])
			assert.Equal(t, "x", docs[0]["directoryId"])
			assert.Equal(t, "mcp", docs[0]["mode"])
			assert.EqualValues(t, 150, docs[0]["totalTokens"])
		})
	}
}

func TestOpen_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "metrics.db")

	st, err := Open(Config{DBPath: path}, logger.Noop())
	require.NoError(t, err)
	require.NoError(t, st.Put(newTestRecord("p", "1", metrics.ModeControl)))
	require.NoError(t, st.MarkSeen("/s.json", Fingerprint{Size: 1, ModTime: 2}))
	require.NoError(t, st.Close())

	st, err = Open(Config{DBPath: path}, logger.Noop())
	require.NoError(t, err)
	defer st.Close()

	got, err := st.Get("p/1")
	require.NoError(t, err)
	assert.Equal(t, metrics.ModeControl, got.Mode)

	seen, err := st.Seen("/s.json", Fingerprint{Size: 1, ModTime: 2})
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(Config{}, logger.Noop())
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestWriteFile(t *testing.T) {
	st := NewMemory()
	require.NoError(t, st.Put(newTestRecord("w", "1", metrics.ModeMCP)))

	path := filepath.Join(t.TempDir(), "out", "summary.json")
	require.NoError(t, WriteFile(st, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var docs []metrics.Record
	require.NoError(t, sonic.Unmarshal(data, &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "w/1", docs[0].Key())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}
