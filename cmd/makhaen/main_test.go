package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/makhaen-survey/makhaen-go/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempStore(t *testing.T) {
	t.Helper()
	prev := config.DatabasePath
	t.Cleanup(func() { config.DatabasePath = prev })
	config.DatabasePath = filepath.Join(t.TempDir(), "makhaen.db")
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestMigrateDryRunThenApply(t *testing.T) {
	useTempStore(t)

	out := execute(t, "migrate", "--dry-run")
	assert.Contains(t, out, "Upgrade plan: version 0 -> 2")
	assert.Contains(t, out, "create table surveys")
	assert.NotContains(t, out, "Migration complete")

	out = execute(t, "migrate")
	assert.Contains(t, out, "Migration complete")

	out = execute(t, "migrate", "--dry-run")
	assert.Contains(t, out, "Schema is current (version 2)")
}

func TestAccountsListsSeededUsers(t *testing.T) {
	useTempStore(t)

	execute(t, "migrate", "--no-seed")
	out := execute(t, "accounts")
	assert.Contains(t, out, "No accounts")

	execute(t, "migrate")
	out = execute(t, "accounts")
	assert.Contains(t, out, "admin")
	assert.Contains(t, out, "user01")
	assert.NotContains(t, out, "$2a$")
}

func TestSurveysOnEmptyStore(t *testing.T) {
	useTempStore(t)
	execute(t, "migrate", "--no-seed")

	out := execute(t, "surveys", "-n", "5")
	assert.Contains(t, out, "SURVEYOR")
	assert.Contains(t, out, "0 of 0 records")
}

func TestRenderTableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	out := renderTable(&buf, []string{"ID", "Name"}, [][]string{{"7", "admin"}, {"12"}}, []columnAlignment{alignRight})
	assert.Contains(t, out, "|  7 | admin |")
	assert.Contains(t, out, "| 12 |       |")
	assert.Empty(t, renderTable(&buf, nil, nil, nil))
}
