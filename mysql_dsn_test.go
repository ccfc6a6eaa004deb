package main

import (
	"strings"
	"testing"
	"time"
)

func TestMySQLConfigFromDescriptor(t *testing.T) {
	tests := []struct {
		name       string
		desc       ConnectionDescriptor
		wantAddr   string
		wantDB     string
		wantUser   string
		wantPasswd string
		wantTLS    string
	}{
		{
			name:       "native dsn",
			desc:       ConnectionDescriptor{URL: "root:root@tcp(127.0.0.1:3306)/example_db"},
			wantAddr:   "127.0.0.1:3306",
			wantDB:     "example_db",
			wantUser:   "root",
			wantPasswd: "root",
		},
		{
			name:       "jdbc url with properties",
			desc:       ConnectionDescriptor{URL: "jdbc:mysql://db.example:3307/navi?useSSL=false&serverTimezone=Asia/Shanghai&characterEncoding=utf8"},
			wantAddr:   "db.example:3307",
			wantDB:     "navi",
			wantTLS:    "false",
		},
		{
			name:       "mysql url default port",
			desc:       ConnectionDescriptor{URL: "mysql://root:pw@localhost/navi"},
			wantAddr:   "localhost:3306",
			wantDB:     "navi",
			wantUser:   "root",
			wantPasswd: "pw",
		},
		{
			name:       "descriptor credentials win",
			desc:       ConnectionDescriptor{URL: "jdbc:mysql://h/navi?user=a&password=b", Username: "backup", Password: "s3cret"},
			wantAddr:   "h:3306",
			wantDB:     "navi",
			wantUser:   "backup",
			wantPasswd: "s3cret",
		},
		{
			name:       "url properties used when descriptor is blank",
			desc:       ConnectionDescriptor{URL: "jdbc:mysql://h/navi?user=a&password=b&useSSL=true"},
			wantAddr:   "h:3306",
			wantDB:     "navi",
			wantUser:   "a",
			wantPasswd: "b",
			wantTLS:    "preferred",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := mysqlConfigFromDescriptor(tt.desc)
			if err != nil {
				t.Fatalf("mysqlConfigFromDescriptor() error: %v", err)
			}
			if cfg.Addr != tt.wantAddr {
				t.Errorf("Addr = %q, want %q", cfg.Addr, tt.wantAddr)
			}
			if cfg.DBName != tt.wantDB {
				t.Errorf("DBName = %q, want %q", cfg.DBName, tt.wantDB)
			}
			if cfg.User != tt.wantUser || cfg.Passwd != tt.wantPasswd {
				t.Errorf("credentials = %q/%q, want %q/%q", cfg.User, cfg.Passwd, tt.wantUser, tt.wantPasswd)
			}
			if cfg.TLSConfig != tt.wantTLS {
				t.Errorf("TLSConfig = %q, want %q", cfg.TLSConfig, tt.wantTLS)
			}
			if !cfg.ParseTime || !cfg.InterpolateParams || cfg.Loc != time.UTC {
				t.Errorf("session options not applied: parseTime=%t interpolate=%t loc=%v", cfg.ParseTime, cfg.InterpolateParams, cfg.Loc)
			}
		})
	}
}

func TestMySQLConfigFromDescriptor_Invalid(t *testing.T) {
	for _, raw := range []string{
		"nodatabase",
		"user:pass@tcp(host:3306)/",
		"jdbc:mysql:///navi",
		"jdbc:mysql://host:3306",
	} {
		if _, err := mysqlConfigFromDescriptor(ConnectionDescriptor{URL: raw}); err == nil {
			t.Errorf("mysqlConfigFromDescriptor(%q) expected error", raw)
		}
	}
}

func TestMySQLConfigFromDescriptor_RedactsPassword(t *testing.T) {
	_, err := mysqlConfigFromDescriptor(ConnectionDescriptor{URL: "jdbc:mysql://h:3306?password=hunter2"})
	if err == nil {
		t.Fatal("expected error for url without database")
	}
	if got := err.Error(); strings.Contains(got, "hunter2") {
		t.Errorf("error leaks password: %s", got)
	}
}
