package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	ups, downs int
	version    uint
	dirty      bool
	err        error
}

func (f *fakeMigrator) Up() error {
	f.ups++

	return f.err
}

func (f *fakeMigrator) Down() error {
	f.downs++

	return f.err
}

func (f *fakeMigrator) Status() (uint, bool, error) {
	return f.version, f.dirty, f.err
}

func fakeDeps(m *fakeMigrator, gotURL *string) commandDeps {
	return commandDeps{
		newMigrator: func(databaseURL string) schemaMigrator {
			*gotURL = databaseURL

			return m
		},
		migrateRiver: func(_ context.Context, databaseURL string) ([]int, error) {
			*gotURL = databaseURL

			return []int{5, 6}, m.err
		},
	}
}

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	_, err := root.ExecuteC()

	return buf.String(), err
}

func TestMigrateCommands(t *testing.T) {
	const dsn = "postgres://localhost/agendopro"

	t.Run("up", func(t *testing.T) {
		m := &fakeMigrator{}

		var url string
		out, err := executeCommand(newRootCmd(fakeDeps(m, &url)), "up", "--database-url", dsn)
		require.NoError(t, err)

		assert.Equal(t, 1, m.ups)
		assert.Equal(t, dsn, url)
		assert.Contains(t, out, "database is up-to-date")
	})

	t.Run("up uses DATABASE_URL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", dsn)

		m := &fakeMigrator{}

		var url string
		_, err := executeCommand(newRootCmd(fakeDeps(m, &url)), "up")
		require.NoError(t, err)
		assert.Equal(t, dsn, url)
	})

	t.Run("missing database url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")

		m := &fakeMigrator{}

		var url string
		_, err := executeCommand(newRootCmd(fakeDeps(m, &url)), "up")
		require.ErrorIs(t, err, errMissingDatabaseURL)
		assert.Zero(t, m.ups)
	})

	t.Run("down requires confirmation", func(t *testing.T) {
		m := &fakeMigrator{}

		var url string
		_, err := executeCommand(newRootCmd(fakeDeps(m, &url)), "down", "--database-url", dsn)
		require.Error(t, err)
		assert.Zero(t, m.downs)

		out, err := executeCommand(newRootCmd(fakeDeps(m, &url)), "down", "--yes", "--database-url", dsn)
		require.NoError(t, err)
		assert.Equal(t, 1, m.downs)
		assert.Contains(t, out, "rolled back")
	})

	t.Run("status", func(t *testing.T) {
		m := &fakeMigrator{version: 1, dirty: true}

		var url string
		out, err := executeCommand(newRootCmd(fakeDeps(m, &url)), "status", "--database-url", dsn)
		require.NoError(t, err)
		assert.Contains(t, out, "version 1 (dirty)")
	})

	t.Run("river-up", func(t *testing.T) {
		m := &fakeMigrator{}

		var url string
		out, err := executeCommand(newRootCmd(fakeDeps(m, &url)), "river-up", "--database-url", dsn)
		require.NoError(t, err)
		assert.Contains(t, out, "applied river migrations [5 6]")
	})

	t.Run("migrator error is returned", func(t *testing.T) {
		m := &fakeMigrator{err: errors.New("dirty database version 1")}

		var url string
		_, err := executeCommand(newRootCmd(fakeDeps(m, &url)), "up", "--database-url", dsn)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dirty database")
	})
}
