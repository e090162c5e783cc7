package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stealthee/radar-cli/internal/registry"
)

func TestResolveFields_NamesFlag(t *testing.T) {
	fields, err := resolveFields([]string{"pricing", "funding"}, "")
	require.NoError(t, err)
	assert.Equal(t, []registry.Field{{Name: "pricing"}, {Name: "funding"}}, fields)
}

func TestResolveFields_FileTakesPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields:\n  - name: changelog\n"), 0o644))

	fields, err := resolveFields([]string{"ignored"}, path)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "changelog", fields[0].Name)
}

func TestResolveFields_EmptyMeansDefaultsDownstream(t *testing.T) {
	fields, err := resolveFields(nil, "")
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestResolveFields_MissingFile(t *testing.T) {
	_, err := resolveFields(nil, filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
