package main

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/brandon/mailsync/internal/store"
)

func parseSearch(t *testing.T, args ...string) store.SearchOptions {
	t.Helper()

	var opts store.SearchOptions
	app := &cli.App{
		Name:  "mailsync",
		Flags: searchFlags(),
		Action: func(c *cli.Context) error {
			opts = searchOptions(c)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"mailsync"}, args...)))
	return opts
}

func TestSearchOptionsFromFlags(t *testing.T) {
	opts := parseSearch(t,
		"--owner", "alice",
		"--server", "work",
		"--q", "invoice",
		"--from", "2024-03-01",
		"--to", "2024-03-31",
		"--limit", "5",
	)

	assert.Equal(t, "alice", opts.Owner)
	assert.Equal(t, "work", opts.Server)
	assert.Equal(t, "invoice", opts.Query)
	assert.Equal(t, 5, opts.Limit)

	require.NotNil(t, opts.DateFrom)
	assert.True(t, opts.DateFrom.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, opts.DateTo)
	assert.True(t, opts.DateTo.Equal(time.Date(2024, 3, 31, 23, 59, 59, 999999999, time.UTC)))
}

func TestSearchOptionsDefaults(t *testing.T) {
	opts := parseSearch(t, "--owner", "alice")

	assert.Empty(t, opts.Server)
	assert.Nil(t, opts.DateFrom)
	assert.Nil(t, opts.DateTo)
	assert.Equal(t, 100, opts.Limit)
}

func TestSearchOptionsRejectsBadDate(t *testing.T) {
	app := &cli.App{
		Name:   "mailsync",
		Flags:  searchFlags(),
		Action: func(*cli.Context) error { return nil },
	}
	app.Writer = io.Discard
	app.ErrWriter = io.Discard

	err := app.Run([]string{"mailsync", "--owner", "alice", "--from", "March"})
	assert.Error(t, err)
}
