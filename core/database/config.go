package database

import (
	"fmt"
	"net/url"
	"strings"
)

// Supported SQL dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// DefaultSQLitePath is the embedded database file used when no postgres settings are given.
const DefaultSQLitePath = "books_market.db"

// Config holds database connection settings shared across bots.
// URL wins over the discrete DB_* fields. With neither set the embedded sqlite file is used.
type Config struct {
	URL            string `yaml:"url" envconfig:"DATABASE_URL"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	SQLitePath     string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
}

// Dialect reports which backend the configuration selects.
func (c Config) Dialect() string {
	if strings.TrimSpace(c.URL) != "" || strings.TrimSpace(c.Host) != "" {
		return DialectPostgres
	}
	return DialectSQLite
}

// PostgresURL builds a postgres:// URL from the configuration.
func (c Config) PostgresURL() string {
	if u := strings.TrimSpace(c.URL); u != "" {
		return u
	}
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	port := c.Port
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(ssl),
	}
	return u.String()
}

// SQLiteFile returns the configured sqlite path or the default.
func (c Config) SQLiteFile() string {
	if p := strings.TrimSpace(c.SQLitePath); p != "" {
		return p
	}
	return DefaultSQLitePath
}

// Describe returns a credential-free summary for logs.
func (c Config) Describe() string {
	if c.Dialect() == DialectSQLite {
		return "sqlite:" + c.SQLiteFile()
	}
	u, err := url.Parse(c.PostgresURL())
	if err != nil {
		return "postgres"
	}
	return fmt.Sprintf("postgres:%s%s", u.Host, u.Path)
}
