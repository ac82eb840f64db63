package migrate

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMigrationConstraints(t *testing.T) {
	data, err := fs.ReadFile(migrations, "migrations/00001_init.sql")
	require.NoError(t, err)
	content := string(data)

	for _, stmt := range []string{
		"-- +goose Up",
		"-- +goose Down",
		"UNIQUE (user_id, week_start)",
		"UNIQUE (item_id, batch_id)",
		"CHECK (reevaluation_date > recommendation_date)",
		"CHECK (confidence_score >= 0 AND confidence_score <= 1)",
		"DROP TABLE IF EXISTS recommendations",
	} {
		assert.True(t, strings.Contains(content, stmt), "missing %q", stmt)
	}
}

func TestRunRequiresDB(t *testing.T) {
	assert.Error(t, Run(context.Background(), nil, "status"))
}
