package migrations

import (
	"context"
	"io/fs"
	"testing"
)

func TestFilesystems_ExposesBothDialects(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected postgres and sqlite filesystems, got %d", len(filesystems))
	}
	byDialect := map[string]FilesystemSpec{}
	for _, spec := range filesystems {
		byDialect[spec.Dialect] = spec
	}
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		spec, ok := byDialect[dialect]
		if !ok {
			t.Fatalf("missing %s filesystem", dialect)
		}
		matches, err := fs.Glob(spec.FS, "*.up.sql")
		if err != nil {
			t.Fatalf("glob %s: %v", dialect, err)
		}
		if len(matches) == 0 {
			t.Fatalf("%s filesystem has no up migrations", dialect)
		}
	}
}

func TestRegister_InvokesCallbackPerTarget(t *testing.T) {
	var registered []string
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, label string, fsys fs.FS) error {
		if label != "go-tracking" {
			t.Fatalf("unexpected source label %q", label)
		}
		if fsys == nil {
			t.Fatalf("nil filesystem for %s", dialect)
		}
		registered = append(registered, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(registered) != 1 || registered[0] != DialectSQLite {
		t.Fatalf("expected only sqlite registration, got %v", registered)
	}
	if len(reg.Filesystems) != 2 {
		t.Fatalf("registration should still describe both dialects, got %d", len(reg.Filesystems))
	}
}

func TestRegister_RequiresCallback(t *testing.T) {
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("nil register function must fail")
	}
}
