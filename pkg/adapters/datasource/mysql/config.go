package mysql

import (
	"net"
	"strconv"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/config"
)

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// buildDSN builds a driver DSN. The driver's Config handles escaping of
// passwords containing '@', '/' or ':'.
// When running in Docker, localhost is resolved to host.docker.internal
// to allow connections to databases running on the host machine.
func buildDSN(cfg *config.DatasourceConfig) string {
	port := cfg.Port
	if port == 0 {
		port = DefaultPort()
	}

	mc := driver.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(config.ResolveHostForDocker(cfg.Host), strconv.Itoa(port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Timeout = 10 * time.Second
	mc.TLSConfig = tlsConfigFor(cfg.SSLMode)

	return mc.FormatDSN()
}

// tlsConfigFor maps the shared ssl_mode vocabulary onto the driver's tls parameter.
func tlsConfigFor(sslMode string) string {
	switch sslMode {
	case "require", "verify-full", "true":
		return "true"
	case "verify-ca", "skip-verify":
		return "skip-verify"
	case "prefer", "preferred":
		return "preferred"
	default:
		return ""
	}
}
