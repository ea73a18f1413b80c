package artifact

import (
	"context"
	"testing"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/storage/filestore"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	backend, err := filestore.New(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	return NewStore(backend)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(context.Background(), "report.csv", []byte("a,b\n1,2"), "monthly report", map[string]any{"rows": float64(1)}))

	rec, err := s.Load(context.Background(), "report.csv")
	require.NoError(t, err)
	assert.Equal(t, []byte("a,b\n1,2"), rec.Data)
	assert.Equal(t, "monthly report", rec.Description)
	assert.Equal(t, float64(1), rec.Metadata["rows"])
}

func TestSaveOverwritesExistingArtifact(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(context.Background(), "out.txt", []byte("v1"), "", nil))
	require.NoError(t, s.Save(context.Background(), "out.txt", []byte("v2"), "updated", nil))

	rec, err := s.Load(context.Background(), "out.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), rec.Data)
	assert.Equal(t, "updated", rec.Description)
}

func TestLoadMissingArtifactReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestListAndDelete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(context.Background(), "a", []byte("1"), "", nil))
	require.NoError(t, s.Save(context.Background(), "b", []byte("2"), "", nil))

	list, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)

	ok, err := s.Delete(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, ok)
}
