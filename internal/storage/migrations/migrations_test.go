package migrations

import (
	"strings"
	"testing"
	"testing/fstest"
)

const testGlob = "sql/*.sql"

func TestLoad_SortsByVersion(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/0002_revision.up.sql":   {Data: []byte("ALTER TABLE slots ADD COLUMN revision INT;")},
		"sql/0002_revision.down.sql": {Data: []byte("ALTER TABLE slots DROP COLUMN revision;")},
		"sql/0001_slots.up.sql":      {Data: []byte("CREATE TABLE slots (key TEXT);")},
		"sql/0001_slots.down.sql":    {Data: []byte("DROP TABLE IF EXISTS slots;")},
		"sql/README.txt":             {Data: []byte("ignored by glob")},
	}

	list, err := Load(fsys, testGlob)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(list))
	}
	if list[0].Version != 1 || list[0].Name != "slots" {
		t.Fatalf("unexpected first migration: %+v", list[0])
	}
	if list[1].Version != 2 || list[1].Name != "revision" {
		t.Fatalf("unexpected second migration: %+v", list[1])
	}
	if _, ok := Index(list)[2]; !ok {
		t.Fatal("index must contain version 2")
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		fsys fstest.MapFS
		want string
	}{
		"no files": {
			fsys: fstest.MapFS{},
			want: "no migration files",
		},
		"missing down": {
			fsys: fstest.MapFS{
				"sql/0001_slots.up.sql": {Data: []byte("CREATE TABLE slots (key TEXT);")},
			},
			want: "both up and down",
		},
		"invalid name": {
			fsys: fstest.MapFS{
				"sql/not_a_migration.sql": {Data: []byte("SELECT 1;")},
			},
			want: "invalid migration file name",
		},
		"empty body": {
			fsys: fstest.MapFS{
				"sql/0001_slots.up.sql":   {Data: []byte("  \n")},
				"sql/0001_slots.down.sql": {Data: []byte("DROP TABLE slots;")},
			},
			want: "empty",
		},
		"name mismatch": {
			fsys: fstest.MapFS{
				"sql/0001_slots.up.sql":   {Data: []byte("CREATE TABLE slots (key TEXT);")},
				"sql/0001_other.down.sql": {Data: []byte("DROP TABLE slots;")},
			},
			want: "name mismatch",
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(tc.fsys, testGlob)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
