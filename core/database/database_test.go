package database

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestConfigDialect(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "empty falls back to sqlite", cfg: Config{}, want: DialectSQLite},
		{name: "url selects postgres", cfg: Config{URL: "postgres://u:p@db:5432/books"}, want: DialectPostgres},
		{name: "host selects postgres", cfg: Config{Host: "db"}, want: DialectPostgres},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Dialect(); got != tt.want {
				t.Fatalf("Dialect() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPostgresURLFromFields(t *testing.T) {
	cfg := Config{Host: "db", User: "market", Password: "p@ss", Name: "books"}
	got := cfg.PostgresURL()
	want := "postgres://market:p%40ss@db:5432/books?sslmode=disable"
	if got != want {
		t.Fatalf("PostgresURL() = %q, want %q", got, want)
	}
	if d := cfg.Describe(); strings.Contains(d, "p%40ss") || strings.Contains(d, "market") {
		t.Fatalf("Describe leaked credentials: %q", d)
	}
}

func TestSQLiteFileDefault(t *testing.T) {
	if got := (Config{}).SQLiteFile(); got != DefaultSQLitePath {
		t.Fatalf("SQLiteFile() = %q", got)
	}
	if got := (Config{SQLitePath: " /tmp/x.db "}).SQLiteFile(); got != "/tmp/x.db" {
		t.Fatalf("SQLiteFile() = %q", got)
	}
}

func TestSelectApplied(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_b.up.sql":   {},
		"000001_a.up.sql":   {},
		"000001_a.down.sql": {},
		"000003_c.up.sql":   {},
	}
	files := listMigrationFiles(fsys)
	if len(files) != 3 || files[0] != "000001_a.up.sql" {
		t.Fatalf("listMigrationFiles = %v", files)
	}
	got := selectApplied(files, 1, 3)
	if len(got) != 2 || got[0] != "000002_b.up.sql" || got[1] != "000003_c.up.sql" {
		t.Fatalf("selectApplied = %v", got)
	}
	if got := selectApplied(files, 3, 3); got != nil {
		t.Fatalf("expected nothing applied, got %v", got)
	}
}
