package main

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// mysqlConfigFromDescriptor accepts a go-sql-driver DSN, a mysql:// URL or a JDBC
// URL (jdbc:mysql://host:3306/db?user=...). Credentials from desc override
// the ones embedded in the URL.
func mysqlConfigFromDescriptor(desc ConnectionDescriptor) (*mysql.Config, error) {
	cfg, err := mysqlConfigFromURL(desc.URL)
	if err != nil {
		return nil, err
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("mysql url %q does not name a database", redactURL(desc.URL))
	}
	if desc.Username != "" {
		cfg.User = desc.Username
	}
	if desc.Password != "" {
		cfg.Passwd = desc.Password
	}
	cfg.ParseTime = true
	cfg.InterpolateParams = true
	cfg.Loc = time.UTC
	return cfg, nil
}

func mysqlConfigFromURL(raw string) (*mysql.Config, error) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "jdbc:")
	if !strings.HasPrefix(s, "mysql://") && !strings.HasPrefix(s, "mariadb://") {
		cfg, err := mysql.ParseDSN(s)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		return cfg, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse mysql url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("parse mysql url: missing host in %q", redactURL(raw))
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	port := u.Port()
	if port == "" {
		port = "3306"
	}
	cfg.Addr = net.JoinHostPort(u.Hostname(), port)
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}

	// JDBC connection properties. Ones without a driver equivalent
	// (serverTimezone, characterEncoding, ...) are ignored.
	q := u.Query()
	if v := q.Get("user"); v != "" {
		cfg.User = v
	}
	if v := q.Get("password"); v != "" {
		cfg.Passwd = v
	}
	switch strings.ToLower(q.Get("useSSL")) {
	case "true":
		cfg.TLSConfig = "preferred"
	case "false":
		cfg.TLSConfig = "false"
	}
	return cfg, nil
}
