package urlcache

import (
	"os"
	"testing"
)

// The URL cache's operations only make sense against a live PostgreSQL
// instance; integration coverage lives behind SYMBOLDB_TEST_DSN, matching
// the teacher's approach of skipping DB-backed suites when no database is
// configured for the test environment.
func TestMain(m *testing.M) {
	if os.Getenv("SYMBOLDB_TEST_DSN") == "" {
		return
	}
	os.Exit(m.Run())
}

func TestExpiryWindowIsThreeDays(t *testing.T) {
	if got, want := ExpiryWindow.Hours(), 72.0; got != want {
		t.Fatalf("ExpiryWindow = %v hours, want %v", got, want)
	}
}
