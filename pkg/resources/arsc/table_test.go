package arsc

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/hashicorp/go-hclog"

	"github.com/droidres/reskit/internal/arsctest"
	"github.com/droidres/reskit/pkg/resources"
)

// TestParseTableRoundTrip tests a full build-then-parse cycle
func TestParseTableRoundTrip(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "table_test",
		Level: hclog.Trace,
	})

	de := mustSetLocale(t, "de")

	b := arsctest.NewBuilder()
	app := b.AddPackage(0x7f, "com.app.client")
	app.AddString("string", resources.Config{}, "app_name", "Client")
	app.AddString("string", de, "app_name", "Klient")
	app.AddValue("integer", resources.Config{}, "max_retries", intVal(5))
	framework := b.AddPackage(0x01, "android")
	framework.AddString("string", resources.Config{}, "ok", "OK")

	blob := b.Build()
	logger.Info("📦 Built table", "bytes", len(blob))

	table, err := ParseTable(blob)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}

	if len(table.Packages) != 2 {
		t.Fatalf("Packages len = %d, want 2", len(table.Packages))
	}
	if p := table.PackageByID(0x7f); p == nil || p.Name != "com.app.client" {
		t.Fatalf("PackageByID(0x7f) = %v", p)
	}
	if p := table.PackageByName("android"); p == nil || p.ID != 0x01 {
		t.Fatalf("PackageByName(android) = %v", p)
	}
	if table.PackageByID(0x42) != nil || table.PackageByName("missing") != nil {
		t.Error("lookup of absent package succeeded")
	}

	p := table.PackageByID(0x7f)

	res, err := p.FindEntry(1, 0, &resources.Config{})
	if err != nil {
		t.Fatalf("FindEntry(default): %v", err)
	}
	got, err := table.Strings.StringAt(res.Entry.Value.Data)
	if err != nil || got != "Client" {
		t.Errorf("default app_name = %q/%v, want Client", got, err)
	}

	res, err = p.FindEntry(1, 0, &de)
	if err != nil {
		t.Fatalf("FindEntry(de): %v", err)
	}
	got, err = table.Strings.StringAt(res.Entry.Value.Data)
	if err != nil || got != "Klient" {
		t.Errorf("de app_name = %q/%v, want Klient", got, err)
	}

	if id := p.FindEntryByName("string", "app_name"); id != resources.MakeResID(0x7f, 1, 0) {
		t.Errorf("FindEntryByName = %v, want %v", id, resources.MakeResID(0x7f, 1, 0))
	}
	logger.Info("✅ Round trip resolved", "app_name", got)
}

// TestParseTableMalformed tests top-level validation
func TestParseTableMalformed(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "table_test",
		Level: hclog.Trace,
	})

	build := func() []byte {
		b := arsctest.NewBuilder()
		pkg := b.AddPackage(0x7f, "com.app.bad")
		pkg.AddString("string", resources.Config{}, "app_name", "Bad")
		return b.Build()
	}

	notATable := make([]byte, 12)
	binary.LittleEndian.PutUint16(notATable[0:2], ChunkStringPool)
	binary.LittleEndian.PutUint16(notATable[2:4], 12)
	binary.LittleEndian.PutUint32(notATable[4:8], 12)

	headerTooSmall := make([]byte, 12)
	binary.LittleEndian.PutUint16(headerTooSmall[0:2], ChunkTable)
	binary.LittleEndian.PutUint16(headerTooSmall[2:4], 8)
	binary.LittleEndian.PutUint32(headerTooSmall[4:8], 12)

	truncated := build()
	truncated = truncated[:len(truncated)-10]

	extraPackages := build()
	binary.LittleEndian.PutUint32(extraPackages[8:12], 0)

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "short_buffer", data: []byte{0x02, 0x00}},
		{name: "not_a_table", data: notATable},
		{name: "header_too_small", data: headerTooSmall},
		{name: "truncated_body", data: truncated},
		{name: "more_packages_than_declared", data: extraPackages},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logger.Info("🧪 Testing malformed table", "test", tc.name)
			_, err := ParseTable(tc.data)
			if !errors.Is(err, resources.ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
		})
	}

	// fewer packages than declared is tolerated
	fewer := build()
	binary.LittleEndian.PutUint32(fewer[8:12], 3)
	table, err := ParseTable(fewer)
	if err != nil {
		t.Fatalf("ParseTable(under-declared): %v", err)
	}
	if len(table.Packages) != 1 {
		t.Errorf("Packages len = %d, want 1", len(table.Packages))
	}
}

// TestParseTableDynamicPackage tests a zero-ID shared library package
func TestParseTableDynamicPackage(t *testing.T) {
	b := arsctest.NewBuilder()
	lib := b.AddPackage(0x00, "com.lib.strings")
	lib.AddString("string", resources.Config{}, "shared_greeting", "Hello")
	lib.AddLibrary(0x00, "com.lib.strings")

	table, err := ParseTable(b.Build())
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	p := table.Packages[0]
	if !p.IsDynamic() {
		t.Error("IsDynamic = false, want true")
	}
	if id := p.FindEntryByName("string", "shared_greeting"); id != resources.MakeResID(0, 1, 0) {
		t.Errorf("FindEntryByName = %v, want %v", id, resources.MakeResID(0, 1, 0))
	}
}
