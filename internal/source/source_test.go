package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/stencil/internal/store"
	"github.com/lherron/stencil/internal/testutil"
)

const fixture = `{"name": "fixture", "version": "1.0.0", "templates": {"app": {}}}`

func TestResolvePathRef(t *testing.T) {
	root := testutil.Source(t, fixture, map[string]string{"app/a.txt": "a"})
	p := NewProvider(nil)

	gotRoot, m, err := p.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, root, gotRoot)
	assert.Equal(t, "fixture", m.Name)

	_, _, err = p.Resolve(context.Background(), "default")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestResolveRegisteredAndTrackChanges(t *testing.T) {
	database, _ := testutil.TempDB(t)
	s := store.New(database)
	root := testutil.Source(t, fixture, nil)

	_, _, hash, err := Inspect(root)
	require.NoError(t, err)
	_, err = s.Sources.Add(store.SourceAddParams{Name: "default", Location: root, ManifestHash: hash})
	require.NoError(t, err)

	p := NewProvider(s.Sources)
	gotRoot, _, err := p.Resolve(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, root, gotRoot)

	changed, err := p.CheckChanged(context.Background(), "default")
	require.NoError(t, err)
	assert.False(t, changed)

	testutil.WriteFile(t, root, "stencil.json", `{"name": "fixture", "version": "1.1.0"}`)
	fresh := NewProvider(s.Sources)
	changed, err = fresh.CheckChanged(context.Background(), "default")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestInspectRejectsMissingManifest(t *testing.T) {
	_, _, _, err := Inspect(t.TempDir())
	assert.Error(t, err)

	_, _, _, err = Inspect(t.TempDir() + "/missing")
	assert.Error(t, err)
}

func TestIsPathRef(t *testing.T) {
	assert.True(t, IsPathRef("./templates"))
	assert.True(t, IsPathRef("/srv/templates"))
	assert.True(t, IsPathRef("a/b"))
	assert.False(t, IsPathRef("default"))
}
