package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvStore(t *testing.T) {
	t.Setenv("DB_PASSWORD", "hunter2")

	store := NewEnvStore()
	value, err := store.Get(context.Background(), "DB_PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", value)
}

func TestEnvStoreMissing(t *testing.T) {
	store := NewEnvStore()
	_, err := store.Get(context.Background(), "DEFINITELY_NOT_SET_ANYWHERE")
	assert.Error(t, err)
}
