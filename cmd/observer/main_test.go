package main

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/aretw0/observer/internal/config"
	"github.com/aretw0/observer/internal/logging"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blogScript = "../../internal/script/testdata/blog.yaml"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvPath, "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "observer version "))
}

func TestReplayCommand(t *testing.T) {
	out, err := execute(t, "replay", "--file", blogScript)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "titles Article#1 title", lines[0])
	assert.Equal(t, "team Article#1 collaborators", lines[4])
}

func TestGraphCommand(t *testing.T) {
	out, err := execute(t, "graph", "--file", blogScript)
	require.NoError(t, err)

	assert.Contains(t, out, `Article -- "author / articles" --> User`)
	assert.Contains(t, out, `Article <-- "collaborators / shared" --> User`)
	assert.Contains(t, out, "class Article watched;")
}

func TestOpenStore(t *testing.T) {
	ctx := t.Context()
	nop := logging.NewNop()

	store, opts, err := openStore(config.Store{Driver: config.DriverMemory}, nop)
	require.NoError(t, err)
	assert.Empty(t, opts)
	require.NoError(t, store.Put(ctx, "User", 1, domain.Record{"name": "x"}))
	require.NoError(t, store.Close())

	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	store, _, err = openStore(config.Store{Driver: config.DriverSQLite, Path: t.TempDir() + "/o.db", EncryptionKey: key}, nop)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(ctx, "User", 1, domain.Record{"name": "x"}))
	rec, err := store.Get(ctx, "User", 1)
	require.NoError(t, err)
	assert.Equal(t, "x", rec["name"])

	_, _, err = openStore(config.Store{Driver: "postgres"}, nop)
	assert.Error(t, err)
}
