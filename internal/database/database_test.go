package database

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunMigrations_RequiresArguments(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	err := RunMigrations("postgres://localhost/loans", "", logger)
	assert.ErrorContains(t, err, "migrations path")

	err = RunMigrations("", "../../migrations", logger)
	assert.ErrorContains(t, err, "database URL")
}
