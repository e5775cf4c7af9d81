package sqlstore

import "testing"

func TestOpen_SQLiteMemory(t *testing.T) {
	db, err := Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Fatalf("ping sqlite: %v", err)
	}
}

func TestOpen_DialectAliases(t *testing.T) {
	for _, alias := range []string{"postgres", "postgresql", "PG"} {
		driver, _, err := resolveDialect(alias)
		if err != nil {
			t.Fatalf("alias %q: %v", alias, err)
		}
		if driver != "postgres" {
			t.Fatalf("alias %q resolved driver %q", alias, driver)
		}
	}
	if _, _, err := resolveDialect("oracle"); err == nil {
		t.Fatalf("unsupported dialect must fail")
	}
}

func TestOpen_RequiresDSN(t *testing.T) {
	if _, err := Open("sqlite", "  "); err == nil {
		t.Fatalf("blank dsn must fail")
	}
}
