package assets

import (
	"fmt"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/droidres/reskit/internal/arsctest"
	"github.com/droidres/reskit/pkg/resources"
)

func colorVal(argb uint32) resources.Value {
	return resources.Value{Size: resources.ValueSize, DataType: resources.TypeIntColorARGB8, Data: argb}
}

// TestThemeApplyStyleForce tests first-wins stacking and force override
func TestThemeApplyStyleForce(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "theme_test",
		Level: hclog.Trace,
	})

	b := arsctest.NewBuilder()
	pkg := b.AddPackage(0x7f, "com.app.client")
	pkg.ReserveEntry("attr", "textColor")
	textColor := pkg.ResID("attr", "textColor")

	pkg.SetSpecFlags("style", "Red", resources.ConfigLocale)
	pkg.AddBag("style", resources.Config{}, "Red", 0, []arsctest.BagPair{
		{Key: textColor, Value: colorVal(0xFFFF0000)},
	})
	pkg.SetSpecFlags("style", "Green", resources.ConfigDensity)
	pkg.AddBag("style", resources.Config{}, "Green", 0, []arsctest.BagPair{
		{Key: textColor, Value: colorVal(0xFF00FF00)},
	})

	am := NewAssetManager(logger)
	if err := am.SetApkAssets([]*ApkAssets{mustLoadTable(t, b, "client.apk")}, true); err != nil {
		t.Fatalf("SetApkAssets: %v", err)
	}

	testCases := []struct {
		name      string
		force     bool
		want      uint32
		wantFlags uint32
	}{
		{
			name:      "first_style_wins_without_force",
			force:     false,
			want:      0xFFFF0000,
			wantFlags: resources.ConfigLocale,
		},
		{
			name:      "force_overrides",
			force:     true,
			want:      0xFF00FF00,
			wantFlags: resources.ConfigLocale | resources.ConfigDensity,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logger.Info("🧪 Testing style stacking", "force", tc.force)

			theme := am.NewTheme()
			if err := theme.ApplyStyle(pkg.ResID("style", "Red"), false); err != nil {
				t.Fatalf("ApplyStyle(Red): %v", err)
			}
			if err := theme.ApplyStyle(pkg.ResID("style", "Green"), tc.force); err != nil {
				t.Fatalf("ApplyStyle(Green): %v", err)
			}

			rv, err := theme.GetAttribute(textColor)
			if err != nil {
				t.Fatalf("GetAttribute(textColor): %v", err)
			}
			if rv.Value.DataType != resources.TypeIntColorARGB8 || rv.Value.Data != tc.want {
				t.Errorf("textColor = %v/%#x, want color %#x", rv.Value.DataType, rv.Value.Data, tc.want)
			}
			if rv.Flags != tc.wantFlags {
				t.Errorf("cell flags = %#x, want %#x", rv.Flags, tc.wantFlags)
			}

			wantTheme := resources.ConfigLocale | resources.ConfigDensity
			if got := theme.ChangingConfigurations(); got != wantTheme {
				t.Errorf("ChangingConfigurations = %#x, want %#x", got, wantTheme)
			}
		})
	}
}

// TestThemeAttributeChains tests attribute indirection, empty cells,
// undefined skipping, and loop capping
func TestThemeAttributeChains(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "theme_test",
		Level: hclog.Trace,
	})

	b := arsctest.NewBuilder()
	pkg := b.AddPackage(0x7f, "com.app.client")
	for _, name := range []string{"alias", "target", "looper", "empty", "undef"} {
		pkg.ReserveEntry("attr", name)
	}
	alias := pkg.ResID("attr", "alias")
	target := pkg.ResID("attr", "target")
	looper := pkg.ResID("attr", "looper")
	empty := pkg.ResID("attr", "empty")
	undef := pkg.ResID("attr", "undef")

	pkg.AddBag("style", resources.Config{}, "Chained", 0, []arsctest.BagPair{
		{Key: alias, Value: resources.Value{
			Size: resources.ValueSize, DataType: resources.TypeAttribute, Data: uint32(target),
		}},
		{Key: target, Value: intVal(42)},
		{Key: looper, Value: resources.Value{
			Size: resources.ValueSize, DataType: resources.TypeAttribute, Data: uint32(looper),
		}},
		{Key: empty, Value: resources.Value{
			Size: resources.ValueSize, DataType: resources.TypeNull, Data: resources.DataNullEmpty,
		}},
		{Key: undef, Value: resources.Value{
			Size: resources.ValueSize, DataType: resources.TypeNull, Data: resources.DataNullUndefined,
		}},
	})

	am := NewAssetManager(logger)
	if err := am.SetApkAssets([]*ApkAssets{mustLoadTable(t, b, "client.apk")}, true); err != nil {
		t.Fatalf("SetApkAssets: %v", err)
	}
	theme := am.NewTheme()
	if err := theme.ApplyStyle(pkg.ResID("style", "Chained"), false); err != nil {
		t.Fatalf("ApplyStyle(Chained): %v", err)
	}

	t.Run("alias_follows_to_value", func(t *testing.T) {
		logger.Info("🧪 Testing attribute alias chain")

		rv, err := theme.GetAttribute(alias)
		if err != nil {
			t.Fatalf("GetAttribute(alias): %v", err)
		}
		if rv.Value.DataType != resources.TypeIntDec || rv.Value.Data != 42 {
			t.Errorf("alias = %v/%d, want int 42", rv.Value.DataType, rv.Value.Data)
		}
	})

	t.Run("loop_hits_depth_cap", func(t *testing.T) {
		if _, err := theme.GetAttribute(looper); !errors.Is(err, resources.ErrDepthExceeded) {
			t.Errorf("GetAttribute(looper) error = %v, want %v", err, resources.ErrDepthExceeded)
		}
	})

	t.Run("explicit_empty_is_a_value", func(t *testing.T) {
		rv, err := theme.GetAttribute(empty)
		if err != nil {
			t.Fatalf("GetAttribute(empty): %v", err)
		}
		if rv.Value.DataType != resources.TypeNull || rv.Value.Data != resources.DataNullEmpty {
			t.Errorf("empty = %v/%d, want explicit empty", rv.Value.DataType, rv.Value.Data)
		}
	})

	t.Run("undefined_never_claims_cell", func(t *testing.T) {
		if _, err := theme.GetAttribute(undef); !errors.Is(err, resources.ErrNotFound) {
			t.Errorf("GetAttribute(undef) error = %v, want %v", err, resources.ErrNotFound)
		}
	})

	t.Run("unapplied_attribute_misses", func(t *testing.T) {
		if _, err := theme.GetAttribute(resources.MakeResID(0x7f, 1, 60)); !errors.Is(err, resources.ErrNotFound) {
			t.Errorf("GetAttribute(unapplied) error = %v, want %v", err, resources.ErrNotFound)
		}
	})
}

// TestThemeResolveAttributeReference tests the attribute-then-reference
// resolution path
func TestThemeResolveAttributeReference(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "theme_test",
		Level: hclog.Trace,
	})

	b := arsctest.NewBuilder()
	pkg := b.AddPackage(0x7f, "com.app.client")
	pkg.ReserveEntry("attr", "colorRef")
	colorRef := pkg.ResID("attr", "colorRef")
	pkg.AddValue("color", resources.Config{}, "red", colorVal(0xFFFF0000))
	red := pkg.ResID("color", "red")
	pkg.AddBag("style", resources.Config{}, "WithRef", 0, []arsctest.BagPair{
		{Key: colorRef, Value: resources.Value{
			Size: resources.ValueSize, DataType: resources.TypeReference, Data: uint32(red),
		}},
	})

	am := NewAssetManager(logger)
	if err := am.SetApkAssets([]*ApkAssets{mustLoadTable(t, b, "client.apk")}, true); err != nil {
		t.Fatalf("SetApkAssets: %v", err)
	}
	theme := am.NewTheme()
	if err := theme.ApplyStyle(pkg.ResID("style", "WithRef"), false); err != nil {
		t.Fatalf("ApplyStyle(WithRef): %v", err)
	}

	logger.Info("🧪 Testing attribute reference resolution")

	rv := ResourceValue{Value: resources.Value{
		Size: resources.ValueSize, DataType: resources.TypeAttribute, Data: uint32(colorRef),
	}}
	lastRef, err := theme.ResolveAttributeReference(&rv)
	if err != nil {
		t.Fatalf("ResolveAttributeReference: %v", err)
	}
	if lastRef != red {
		t.Errorf("last reference = %v, want %v", lastRef, red)
	}
	if rv.Value.DataType != resources.TypeIntColorARGB8 || rv.Value.Data != 0xFFFF0000 {
		t.Errorf("resolved = %v/%#x, want red color", rv.Value.DataType, rv.Value.Data)
	}

	// Non-attribute values skip the theme and go straight to references.
	rv = ResourceValue{Value: resources.Value{
		Size: resources.ValueSize, DataType: resources.TypeReference, Data: uint32(red),
	}}
	if _, err := theme.ResolveAttributeReference(&rv); err != nil {
		t.Fatalf("ResolveAttributeReference(reference): %v", err)
	}
	if rv.Value.Data != 0xFFFF0000 {
		t.Errorf("resolved reference = %#x, want red color", rv.Value.Data)
	}
}

// TestThemeCellGrowth tests cell arrays growing past their initial
// kilobyte allocation
func TestThemeCellGrowth(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "theme_test",
		Level: hclog.Trace,
	})

	b := arsctest.NewBuilder()
	pkg := b.AddPackage(0x7f, "com.app.client")
	for i := 0; i < 80; i++ {
		pkg.ReserveEntry("attr", fmt.Sprintf("pad%02d", i))
	}
	wide := pkg.ResID("attr", "pad79")
	narrow := pkg.ResID("attr", "pad10")

	pkg.AddBag("style", resources.Config{}, "Wide", 0, []arsctest.BagPair{
		{Key: wide, Value: intVal(7)},
	})
	pkg.AddBag("style", resources.Config{}, "Narrow", 0, []arsctest.BagPair{
		{Key: narrow, Value: intVal(3)},
	})

	am := NewAssetManager(logger)
	if err := am.SetApkAssets([]*ApkAssets{mustLoadTable(t, b, "client.apk")}, true); err != nil {
		t.Fatalf("SetApkAssets: %v", err)
	}
	theme := am.NewTheme()
	if err := theme.ApplyStyle(pkg.ResID("style", "Wide"), false); err != nil {
		t.Fatalf("ApplyStyle(Wide): %v", err)
	}
	if err := theme.ApplyStyle(pkg.ResID("style", "Narrow"), false); err != nil {
		t.Fatalf("ApplyStyle(Narrow): %v", err)
	}

	rv, err := theme.GetAttribute(wide)
	if err != nil {
		t.Fatalf("GetAttribute(pad79): %v", err)
	}
	if rv.Value.Data != 7 {
		t.Errorf("pad79 = %d, want 7", rv.Value.Data)
	}
	rv, err = theme.GetAttribute(narrow)
	if err != nil {
		t.Fatalf("GetAttribute(pad10): %v", err)
	}
	if rv.Value.Data != 3 {
		t.Errorf("pad10 = %d, want 3", rv.Value.Data)
	}

	cells := theme.packages[0x7f].types[1].entries
	if len(cells) != 80 {
		t.Errorf("cell array length = %d, want 80", len(cells))
	}
}

// TestThemeSetToAndClear tests copying between themes and resetting
func TestThemeSetToAndClear(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "theme_test",
		Level: hclog.Trace,
	})

	b := arsctest.NewBuilder()
	pkg := b.AddPackage(0x7f, "com.app.client")
	pkg.ReserveEntry("attr", "textColor")
	textColor := pkg.ResID("attr", "textColor")
	pkg.AddBag("style", resources.Config{}, "Red", 0, []arsctest.BagPair{
		{Key: textColor, Value: colorVal(0xFFFF0000)},
	})
	pkg.AddBag("style", resources.Config{}, "Green", 0, []arsctest.BagPair{
		{Key: textColor, Value: colorVal(0xFF00FF00)},
	})

	am := NewAssetManager(logger)
	if err := am.SetApkAssets([]*ApkAssets{mustLoadTable(t, b, "client.apk")}, true); err != nil {
		t.Fatalf("SetApkAssets: %v", err)
	}

	src := am.NewTheme()
	if err := src.ApplyStyle(pkg.ResID("style", "Red"), false); err != nil {
		t.Fatalf("ApplyStyle(Red): %v", err)
	}

	logger.Info("🧪 Testing theme copy")

	dst := am.NewTheme()
	if err := dst.SetTo(src); err != nil {
		t.Fatalf("SetTo: %v", err)
	}
	rv, err := dst.GetAttribute(textColor)
	if err != nil {
		t.Fatalf("GetAttribute on copy: %v", err)
	}
	if rv.Value.Data != 0xFFFF0000 {
		t.Errorf("copied textColor = %#x, want %#x", rv.Value.Data, 0xFFFF0000)
	}

	// The copy owns its cells.
	if err := src.ApplyStyle(pkg.ResID("style", "Green"), true); err != nil {
		t.Fatalf("ApplyStyle(Green): %v", err)
	}
	rv, err = dst.GetAttribute(textColor)
	if err != nil {
		t.Fatalf("GetAttribute on copy after source change: %v", err)
	}
	if rv.Value.Data != 0xFFFF0000 {
		t.Errorf("copy changed with source: %#x, want %#x", rv.Value.Data, 0xFFFF0000)
	}

	foreign := NewAssetManager(nil).NewTheme()
	if err := foreign.SetTo(src); !errors.Is(err, ErrForeignTheme) {
		t.Errorf("SetTo across managers = %v, want %v", err, ErrForeignTheme)
	}

	src.Clear()
	if _, err := src.GetAttribute(textColor); !errors.Is(err, resources.ErrNotFound) {
		t.Errorf("GetAttribute after Clear = %v, want %v", err, resources.ErrNotFound)
	}
	if got := src.ChangingConfigurations(); got != 0 {
		t.Errorf("ChangingConfigurations after Clear = %#x, want 0", got)
	}
}
