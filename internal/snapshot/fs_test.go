package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo-enrich/internal/wdqs"
)

func sampleResult() *wdqs.Result {
	res := &wdqs.Result{}
	res.Head.Vars = []string{"person", "place"}
	res.Results.Bindings = []wdqs.Binding{{
		"person": {Type: "uri", Value: "http://www.wikidata.org/entity/Q859"},
		"place":  {Type: "uri", Value: "http://www.wikidata.org/entity/Q87"},
	}}
	return res
}

func TestFSStoreRoundtrip(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(3, sampleResult()))

	got, ok, err := store.Load(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Results.Bindings, 1)
	v, ok := got.Results.Bindings[0].Value("person")
	require.True(t, ok)
	assert.Equal(t, "http://www.wikidata.org/entity/Q859", v)
}

func TestFSStoreMissingBatch(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	res, ok, err := store.Load(7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, res)
}

func TestFSStoreCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "people_locations_0001.json"), []byte("{not json"), 0o644))

	_, _, err = store.Load(1)
	require.Error(t, err)
}

func TestFSStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(0, sampleResult()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "people_locations_0000.json", entries[0].Name())
}

func TestFSStoreZeroPadding(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "people_locations_0042.json", filepath.Base(store.path(42)))
}
