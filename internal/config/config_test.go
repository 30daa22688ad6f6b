package config

import "testing"

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.DBHost != "localhost" || cfg.DBPort != 5432 || cfg.DBName != "symboldb" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Cache == "" {
		t.Fatal("default cache directory must not be empty")
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("PGHOST", "db.example.com")
	t.Setenv("PGPORT", "6543")
	t.Setenv("PGDATABASE", "other")
	t.Setenv("PGUSER", "symboldb")
	t.Setenv("PGPASSWORD", "s3cret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBHost != "db.example.com" || cfg.DBPort != 6543 || cfg.DBName != "other" {
		t.Fatalf("env layer not applied: %+v", cfg)
	}
	if cfg.ConnString() == "" {
		t.Fatal("ConnString must not be empty")
	}
}

func TestLoadEnvBadPort(t *testing.T) {
	t.Setenv("PGPORT", "not-a-number")
	if _, err := Load(""); err == nil {
		t.Fatal("expected an error for a malformed PGPORT")
	}
}

func TestConnStringIncludesCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.DBUser = "alice"
	cfg.DBPassword = "hunter2"
	s := cfg.ConnString()
	if !contains(s, "user=alice") || !contains(s, "password=hunter2") {
		t.Fatalf("ConnString missing credentials: %q", s)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
