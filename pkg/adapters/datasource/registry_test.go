package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/config"
)

func TestRegistry_OpenUnknownType(t *testing.T) {
	_, err := Open(context.Background(), &config.DatasourceConfig{Type: "oracle"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported datasource type")
}

func TestRegistry_RegisterAndOpen(t *testing.T) {
	called := false
	Register(AdapterRegistration{
		Info: AdapterInfo{Type: "test-registry", DisplayName: "Test"},
		Factory: func(ctx context.Context, cfg *config.DatasourceConfig, logger *zap.Logger) (Datasource, error) {
			called = true
			return nil, nil
		},
	})

	assert.True(t, IsRegistered("test-registry"))
	_, err := Open(context.Background(), &config.DatasourceConfig{Type: "test-registry"}, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, called)

	found := false
	for _, info := range RegisteredAdapters() {
		if info.Type == "test-registry" {
			found = true
		}
	}
	assert.True(t, found)
}
