package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCreateAtScaffoldsTables(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

	path, err := createAt(dir, "Create Shop_Payouts", at)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20260302083000_create_shop_payouts.sql" {
		t.Fatalf("unexpected file %s", filepath.Base(path))
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	content := string(b)
	for _, want := range []string{"CREATE TABLE IF NOT EXISTS shop_payouts", "DROP TABLE IF EXISTS shop_payouts;"} {
		if !strings.Contains(content, want) {
			t.Fatalf("scaffold missing %q:\n%s", want, content)
		}
	}

	if _, err := createAt(dir, "create shop payouts", at); err == nil {
		t.Fatalf("expected an existing version to be refused")
	}
}

func TestCreateAtRejectsEmptyNames(t *testing.T) {
	if _, err := createAt(t.TempDir(), " !! ", time.Now()); err == nil {
		t.Fatalf("expected error for a name that sanitizes to nothing")
	}
}

func TestListFilesOrdersAndValidates(t *testing.T) {
	dir := t.TempDir()
	for _, at := range []time.Time{
		time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	} {
		if _, err := createAt(dir, "add_index", at); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	files, err := ListFiles(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 || files[0].Version != 20260301000000 || files[1].Version != 20260305000000 {
		t.Fatalf("unexpected order %+v", files)
	}
	if files[0].Name != "add_index" {
		t.Fatalf("unexpected name %q", files[0].Name)
	}

	latest, err := LatestVersion(dir)
	if err != nil || latest != 20260305000000 {
		t.Fatalf("latest = %d, %v", latest, err)
	}
	if !hasVersion(files, 20260301000000) || hasVersion(files, 20260302000000) {
		t.Fatalf("hasVersion mismatch")
	}
}

func TestValidateContent(t *testing.T) {
	cases := []struct {
		name string
		txt  string
		ok   bool
	}{
		{"ok", markerUp + "\nSELECT 1;\n" + markerDown + "\nSELECT 1;\n", true},
		{"missing up", markerDown + "\n", false},
		{"missing down", markerUp + "\n", false},
		{"down first", markerDown + "\n" + markerUp + "\n", false},
		{"unbalanced", markerUp + "\n" + markerBegin + "\n" + markerDown + "\n", false},
	}
	for _, tc := range cases {
		err := validateContent(tc.name, tc.txt)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestLatestVersionEmptyDir(t *testing.T) {
	latest, err := LatestVersion(t.TempDir())
	if err != nil || latest != 0 {
		t.Fatalf("latest = %d, %v", latest, err)
	}
}

func TestPendingSince(t *testing.T) {
	files := []File{
		{Version: 20260301090000, Name: "create_delivery_assignments"},
		{Version: 20260301090500, Name: "create_worker_delivery_counters"},
		{Version: 20260310120000, Name: "add_payee_index"},
	}

	status := pendingSince(20260301090500, files)
	if status.UpToDate() || len(status.Pending) != 1 || status.Pending[0].Name != "add_payee_index" {
		t.Fatalf("unexpected pending %+v", status.Pending)
	}
	if status.Latest != 20260310120000 {
		t.Fatalf("unexpected latest %d", status.Latest)
	}

	if fresh := pendingSince(0, files); len(fresh.Pending) != 3 {
		t.Fatalf("empty schema should have every file pending, got %d", len(fresh.Pending))
	}
	if done := pendingSince(20260310120000, files); !done.UpToDate() {
		t.Fatalf("expected up to date")
	}
}
