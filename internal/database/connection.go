package database

import (
	"fmt"
	"net/url"
	"strings"
)

// Connection is a parsed target database URL.
type Connection struct {
	Engine   string
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// ParseURL parses postgres://, postgresql://, mysql:// and mongodb://
// connection strings.
func ParseURL(raw string) (Connection, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Connection{}, fmt.Errorf("parse database url: %w", err)
	}

	var conn Connection
	switch u.Scheme {
	case "postgres", "postgresql":
		conn.Engine = EnginePostgres
	case "mysql":
		conn.Engine = EngineMySQL
	case "mongodb":
		conn.Engine = EngineMongoDB
	default:
		return Connection{}, fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}

	conn.Host = u.Hostname()
	conn.Port = u.Port()
	if u.User != nil {
		conn.Username = u.User.Username()
		conn.Password, _ = u.User.Password()
	}
	conn.Database = strings.TrimPrefix(u.Path, "/")
	if conn.Database == "" {
		return Connection{}, fmt.Errorf("database url %q has no database name", conn.Redacted())
	}
	return conn, nil
}

// Redacted renders the connection without its password.
func (c Connection) Redacted() string {
	host := c.Host
	if c.Port != "" {
		host += ":" + c.Port
	}
	u := url.URL{Scheme: c.Engine, Host: host, Path: "/" + c.Database}
	if c.Username != "" {
		u.User = url.User(c.Username)
	}
	return u.String()
}
