package backup

import (
	"testing"

	"github.com/geeqodb/geeqodb/pkg/catalog"
	"github.com/geeqodb/geeqodb/pkg/types"
)

func peopleSchema() types.Schema {
	return types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.TypeInteger},
		{Name: "name", Type: types.TypeText},
	}}
}

func openCatalog(t *testing.T, dir string) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cat.Close() })
	return cat
}

func TestFullBackupAndRestoreRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	cat := openCatalog(t, srcDir)

	if err := cat.CreateTable("people", peopleSchema()); err != nil {
		t.Fatal(err)
	}
	if _, err := cat.Insert("people", types.Row{types.IntKey(1), types.VarcharKey("alice")}); err != nil {
		t.Fatal(err)
	}
	if _, err := cat.Insert("people", types.Row{types.IntKey(2), types.VarcharKey("bob")}); err != nil {
		t.Fatal(err)
	}

	mgr := New(srcDir)
	name := NewBackupID()
	if _, err := mgr.FullBackup(cat, name); err != nil {
		t.Fatal(err)
	}
	if err := mgr.VerifyBackup(name); err != nil {
		t.Fatal(err)
	}

	destDir := t.TempDir()
	restored, err := mgr.Restore(name, destDir)
	if err != nil {
		t.Fatal(err)
	}
	defer restored.Close()

	_, rows, err := restored.Scan("people", restored.CurrentPosition())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows restored, got %d", len(rows))
	}
}

func TestIncrementalBackupChainsToParent(t *testing.T) {
	srcDir := t.TempDir()
	cat := openCatalog(t, srcDir)

	if err := cat.CreateTable("people", peopleSchema()); err != nil {
		t.Fatal(err)
	}
	if _, err := cat.Insert("people", types.Row{types.IntKey(1), types.VarcharKey("alice")}); err != nil {
		t.Fatal(err)
	}

	mgr := New(srcDir)
	full := NewBackupID()
	if _, err := mgr.FullBackup(cat, full); err != nil {
		t.Fatal(err)
	}

	if _, err := cat.Insert("people", types.Row{types.IntKey(2), types.VarcharKey("bob")}); err != nil {
		t.Fatal(err)
	}

	incr := NewBackupID()
	manifest, err := mgr.IncrementalBackup(cat, incr, full)
	if err != nil {
		t.Fatal(err)
	}
	if manifest.Parent != full {
		t.Fatalf("expected parent %q, got %q", full, manifest.Parent)
	}
	if manifest.FromPosition >= manifest.ToPosition {
		t.Fatalf("expected ToPosition > FromPosition, got %d..%d", manifest.FromPosition, manifest.ToPosition)
	}

	destDir := t.TempDir()
	restored, err := mgr.Restore(incr, destDir)
	if err != nil {
		t.Fatal(err)
	}
	defer restored.Close()

	_, rows, err := restored.Scan("people", restored.CurrentPosition())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows after incremental restore, got %d", len(rows))
	}
}

func TestVerifyBackupDetectsMissingManifest(t *testing.T) {
	dir := t.TempDir()
	mgr := New(dir)
	if err := mgr.VerifyBackup("does-not-exist"); err == nil {
		t.Fatal("expected error for missing backup")
	}
}

func TestPointInTimeRecoveryStopsAtTargetPosition(t *testing.T) {
	srcDir := t.TempDir()
	cat := openCatalog(t, srcDir)

	if err := cat.CreateTable("people", peopleSchema()); err != nil {
		t.Fatal(err)
	}
	if _, err := cat.Insert("people", types.Row{types.IntKey(1), types.VarcharKey("alice")}); err != nil {
		t.Fatal(err)
	}

	mgr := New(srcDir)
	name := NewBackupID()
	manifest, err := mgr.FullBackup(cat, name)
	if err != nil {
		t.Fatal(err)
	}

	destDir := t.TempDir()
	restored, err := mgr.PointInTimeRecover(name, destDir, manifest.ToPosition)
	if err != nil {
		t.Fatal(err)
	}
	defer restored.Close()

	_, rows, err := restored.Scan("people", restored.CurrentPosition())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row at recovery point, got %d", len(rows))
	}
}
