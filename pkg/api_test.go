package pkg

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/droidres/reskit/internal/arsctest"
	"github.com/droidres/reskit/pkg/resources"
	"github.com/droidres/reskit/pkg/resources/idmap"
)

func writeApk(t *testing.T, path string, table []byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("resources.arsc")
	if err != nil {
		t.Fatalf("zip create table: %v", err)
	}
	if _, err := w.Write(table); err != nil {
		t.Fatalf("zip write table: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}

func targetTable() []byte {
	b := arsctest.NewBuilder()
	p := b.AddPackage(0x7F, "com.app.target")
	p.AddString("string", resources.Config{}, "title", "base")
	return b.Build()
}

func overlayTable(value string) []byte {
	b := arsctest.NewBuilder()
	p := b.AddPackage(0x7F, "com.overlay.skin")
	p.AddString("string", resources.Config{}, "title", value)
	return b.Build()
}

// fixture writes a target apk, an overlay apk, and a current idmap into
// a temp dir.
func fixture(t *testing.T) (targetPath, overlayPath, idmapPath string) {
	t.Helper()
	dir := t.TempDir()
	targetPath = filepath.Join(dir, "target.apk")
	overlayPath = filepath.Join(dir, "skin.apk")
	idmapPath = filepath.Join(dir, "skin.apk@idmap")
	writeApk(t, targetPath, targetTable())
	writeApk(t, overlayPath, overlayTable("themed"))
	if err := CreateIdmap(targetPath, overlayPath, idmapPath); err != nil {
		t.Fatalf("CreateIdmap: %v", err)
	}
	return targetPath, overlayPath, idmapPath
}

// TestCreateAndLookupIdmap tests the front-door create and lookup flow
func TestCreateAndLookupIdmap(t *testing.T) {
	_, _, idmapPath := fixture(t)

	title := resources.MakeResID(0x7F, 1, 0)
	mapped, ok, err := LookupIdmap(idmapPath, title)
	if err != nil {
		t.Fatalf("LookupIdmap: %v", err)
	}
	if !ok {
		t.Fatal("LookupIdmap missed a mapped entry")
	}
	if want := resources.MakeResID(0x7F, 1, 0); mapped != want {
		t.Errorf("LookupIdmap = %v, want %v", mapped, want)
	}

	_, ok, err = LookupIdmap(idmapPath, resources.MakeResID(0x7F, 9, 0))
	if err != nil {
		t.Fatalf("LookupIdmap unmapped: %v", err)
	}
	if ok {
		t.Error("LookupIdmap claimed a mapping for an unmapped type")
	}
}

// TestDescribeOverlayValue tests resolving a mapped id against the
// overlay table
func TestDescribeOverlayValue(t *testing.T) {
	_, overlayPath, idmapPath := fixture(t)

	mapped, ok, err := LookupIdmap(idmapPath, resources.MakeResID(0x7F, 1, 0))
	if err != nil || !ok {
		t.Fatalf("LookupIdmap: ok=%v err=%v", ok, err)
	}

	desc, err := DescribeOverlayValue(overlayPath, mapped)
	if err != nil {
		t.Fatalf("DescribeOverlayValue: %v", err)
	}
	if want := `string/title = "themed"`; desc != want {
		t.Errorf("DescribeOverlayValue = %q, want %q", desc, want)
	}
}

// TestDumpIdmap tests the dump pass-through
func TestDumpIdmap(t *testing.T) {
	_, _, idmapPath := fixture(t)

	var buf bytes.Buffer
	if err := DumpIdmap(idmapPath, true, &buf); err != nil {
		t.Fatalf("DumpIdmap: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "magic") {
		t.Errorf("dump output lacks the header listing:\n%s", out)
	}
	if !strings.Contains(out, "->") {
		t.Errorf("verbose dump output lacks mappings:\n%s", out)
	}
}

// TestResolveLogLevel tests the level precedence chain
func TestResolveLogLevel(t *testing.T) {
	t.Setenv("RESKIT_IDMAP_LOG_LEVEL", "")
	t.Setenv("RESKIT_LOG_LEVEL", "")

	level, source := resolveLogLevel("trace")
	if level != "trace" || source != "CLI --log-level" {
		t.Errorf("resolveLogLevel(trace) = %q from %q", level, source)
	}

	level, source = resolveLogLevel("")
	if level != "info" || source != "default" {
		t.Errorf("resolveLogLevel() = %q from %q, want default info", level, source)
	}

	t.Setenv("RESKIT_LOG_LEVEL", "error")
	level, source = resolveLogLevel("")
	if level != "error" || source != "RESKIT_LOG_LEVEL" {
		t.Errorf("resolveLogLevel() = %q from %q, want env error", level, source)
	}

	t.Setenv("RESKIT_IDMAP_LOG_LEVEL", "debug")
	level, source = resolveLogLevel("")
	if level != "debug" || source != "RESKIT_IDMAP_LOG_LEVEL" {
		t.Errorf("resolveLogLevel() = %q from %q, want command env debug", level, source)
	}
}

// TestScanOverlaysFacade tests the scan pass-through with a config
// built in code
func TestScanOverlaysFacade(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "overlay")
	if err := os.MkdirAll(in, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	targetPath := filepath.Join(dir, "target.apk")
	writeApk(t, targetPath, targetTable())

	// Overlay apks need a manifest for scan screening.
	overlayPath := filepath.Join(in, "skin.apk")
	writeApkWithManifest(t, overlayPath, overlayTable("themed"),
		`<manifest xmlns:android="http://schemas.android.com/apk/res/android" package="com.overlay.skin">
  <overlay android:targetPackage="com.app.target" android:isStatic="true" android:priority="1"/>
</manifest>`)

	written, err := ScanOverlays(idmap.ScanOptions{
		InputDirectories: []string{in},
		OutputDirectory:  filepath.Join(dir, "cache"),
		TargetApkPath:    targetPath,
	}, "")
	if err != nil {
		t.Fatalf("ScanOverlays: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("ScanOverlays wrote %d idmaps, want 1", len(written))
	}
	if err := VerifyIdmap(written[0], targetPath, overlayPath); err != nil {
		t.Errorf("VerifyIdmap on scan output: %v", err)
	}
}

func writeApkWithManifest(t *testing.T, path string, table []byte, manifest string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("AndroidManifest.xml")
	if err != nil {
		t.Fatalf("zip create manifest: %v", err)
	}
	if _, err := w.Write([]byte(manifest)); err != nil {
		t.Fatalf("zip write manifest: %v", err)
	}
	w, err = zw.Create("resources.arsc")
	if err != nil {
		t.Fatalf("zip create table: %v", err)
	}
	if _, err := w.Write(table); err != nil {
		t.Fatalf("zip write table: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}
