package mysql

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/config"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "mysql",
			DisplayName: "MySQL",
			Description: "Connect to MySQL 5.7+ and MariaDB 10.3+",
		},
		Factory: func(ctx context.Context, cfg *config.DatasourceConfig, logger *zap.Logger) (datasource.Datasource, error) {
			return NewAdapter(ctx, cfg, logger)
		},
	})
}
