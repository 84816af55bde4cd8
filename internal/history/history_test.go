package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndLog(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir, "visits.csv", Author{Name: "Passport", Email: "passport@localhost"})
	require.NoError(t, err)

	log, err := r.Log(10)
	require.NoError(t, err)
	assert.Empty(t, log)

	path := filepath.Join(dir, "visits.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0o644))
	h1, err := r.Record("add visit: Kobi Restaurant (GHA)")
	require.NoError(t, err)
	assert.NotEmpty(t, h1)

	require.NoError(t, os.WriteFile(path, []byte("a\nb\n"), 0o644))
	h2, err := r.Record("add visit: Chez Loutcha (SEN)")
	require.NoError(t, err)

	log, err = r.Log(10)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, h2, log[0].Hash)
	assert.Equal(t, "add visit: Chez Loutcha (SEN)", log[0].Message)
	assert.Equal(t, "Passport", log[0].Author)
	assert.Equal(t, h1, log[1].Hash)

	log, err = r.Log(1)
	require.NoError(t, err)
	assert.Len(t, log, 1)
}

func TestRecord_NoChangeNoCommit(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir, "visits.csv", Author{Name: "Passport", Email: "passport@localhost"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "visits.csv"), []byte("a\n"), 0o644))
	_, err = r.Record("first")
	require.NoError(t, err)

	h, err := r.Record("second")
	require.NoError(t, err)
	assert.Empty(t, h)

	log, _ := r.Log(10)
	assert.Len(t, log, 1)
}

func TestOpen_ReusesExistingRepo(t *testing.T) {
	dir := t.TempDir()
	author := Author{Name: "Passport", Email: "passport@localhost"}
	r, err := Open(dir, "visits.csv", author)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "visits.csv"), []byte("a\n"), 0o644))
	_, err = r.Record("first")
	require.NoError(t, err)

	again, err := Open(dir, "visits.csv", author)
	require.NoError(t, err)
	log, err := again.Log(10)
	require.NoError(t, err)
	assert.Len(t, log, 1)
}
