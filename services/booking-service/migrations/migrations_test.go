package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEveryUpHasDown(t *testing.T) {
	ups, err := fs.Glob(FS, "*.up.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(FS, down); err != nil {
			t.Fatalf("%s has no matching %s", up, down)
		}
	}
}

func TestBookingsHaveExclusionConstraint(t *testing.T) {
	raw, err := fs.ReadFile(FS, "000002_bookings.up.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	sql := string(raw)
	for _, want := range []string{"EXCLUDE USING gist", "tstzrange(start_time, end_time, '[)')", "WHERE (status = 'confirmed')"} {
		if !strings.Contains(sql, want) {
			t.Fatalf("bookings migration is missing %q", want)
		}
	}
}
