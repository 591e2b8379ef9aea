package database

import (
	"fmt"
	"net/url"

	"github.com/lmendes/stock-etl/internal/config"
)

// ConnString builds a PostgreSQL connection URL from config. Credentials go
// through url.URL so passwords with URL metacharacters survive intact.
func ConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     cfg.Name,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}
