package corpus

import (
	"net/url"
	"testing"
)

func TestPostgresDSNFromEnv(t *testing.T) {
	keys := []string{"DATABASE_URL", "PG_USER", "PG_PASSWORD", "PG_HOST", "PG_PORT", "PG_DATABASE", "PG_SSLMODE"}

	t.Run("database url wins", func(t *testing.T) {
		for _, k := range keys {
			t.Setenv(k, "")
		}
		t.Setenv("DATABASE_URL", "postgres://a@b/c")
		t.Setenv("PG_HOST", "ignored")
		if got := PostgresDSNFromEnv(); got != "postgres://a@b/c" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("assembled from parts", func(t *testing.T) {
		for _, k := range keys {
			t.Setenv(k, "")
		}
		t.Setenv("PG_USER", "prep")
		t.Setenv("PG_PASSWORD", "p@ss word")
		t.Setenv("PG_HOST", "db.internal")
		t.Setenv("PG_PORT", "6543")
		t.Setenv("PG_DATABASE", "interview")

		u, err := url.Parse(PostgresDSNFromEnv())
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if u.Host != "db.internal:6543" || u.Path != "/interview" {
			t.Errorf("host/path = %q %q", u.Host, u.Path)
		}
		if pw, _ := u.User.Password(); pw != "p@ss word" || u.User.Username() != "prep" {
			t.Errorf("user info not round-tripped: %v", u.User)
		}
		if u.Query().Get("sslmode") != "disable" {
			t.Errorf("sslmode = %q", u.Query().Get("sslmode"))
		}
	})
}
