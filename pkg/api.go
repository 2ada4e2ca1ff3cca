package pkg

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/droidres/reskit/pkg/logging"
	"github.com/droidres/reskit/pkg/resources"
	"github.com/droidres/reskit/pkg/resources/assets"
	"github.com/droidres/reskit/pkg/resources/idmap"
)

// resolveLogLevel picks the effective level: the explicit argument
// first, then the environment, then info.
func resolveLogLevel(cliLevel string) (string, string) {
	if cliLevel != "" {
		return cliLevel, "CLI --log-level"
	}
	if envLevel := os.Getenv("RESKIT_IDMAP_LOG_LEVEL"); envLevel != "" {
		return envLevel, "RESKIT_IDMAP_LOG_LEVEL"
	}
	if envLevel := os.Getenv("RESKIT_LOG_LEVEL"); envLevel != "" {
		return envLevel, "RESKIT_LOG_LEVEL"
	}
	return "info", "default"
}

func newCommandLogger(name, cliLevel string) hclog.Logger {
	level, source := resolveLogLevel(cliLevel)

	// Support log file output
	var output io.Writer
	if logPath := os.Getenv("RESKIT_LOG_PATH"); logPath != "" {
		if file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			output = file
		}
	}

	logger := logging.NewLogger(name, level, output)
	logger.Debug("Log level resolved", "level", level, "source", source)
	return logger
}

// CreateIdmap builds an idmap with default policies and overlayable
// enforcement on.
func CreateIdmap(targetApkPath, overlayApkPath, idmapPath string) error {
	return CreateIdmapWithLogLevel(targetApkPath, overlayApkPath, idmapPath, idmap.DefaultPolicies, true, "")
}

// CreateIdmapWithOptions builds an idmap with explicit policies.
func CreateIdmapWithOptions(targetApkPath, overlayApkPath, idmapPath string, fulfilled idmap.PolicyFlags, enforceOverlayable bool) error {
	return CreateIdmapWithLogLevel(targetApkPath, overlayApkPath, idmapPath, fulfilled, enforceOverlayable, "")
}

// CreateIdmapWithLogLevel builds an idmap with explicit log level control.
func CreateIdmapWithLogLevel(targetApkPath, overlayApkPath, idmapPath string, fulfilled idmap.PolicyFlags, enforceOverlayable bool, logLevel string) error {
	logger := newCommandLogger("reskit-idmap", logLevel)
	im, err := idmap.Build(targetApkPath, overlayApkPath, fulfilled, enforceOverlayable, logger)
	if err != nil {
		return err
	}
	return im.WriteToFile(idmapPath)
}

// DumpIdmap writes a human readable listing of a stored idmap.
func DumpIdmap(idmapPath string, verbose bool, w io.Writer) error {
	im, err := idmap.ReadFromFile(idmapPath)
	if err != nil {
		return err
	}
	return im.Dump(w, verbose)
}

// LookupIdmap maps one target resource through a stored idmap.
func LookupIdmap(idmapPath string, target resources.ResID) (resources.ResID, bool, error) {
	im, err := idmap.ReadFromFile(idmapPath)
	if err != nil {
		return 0, false, err
	}
	mapped, ok := im.Lookup(target)
	return mapped, ok, nil
}

// DescribeOverlayValue resolves what a mapped id points at inside the
// overlay apk. The package byte of the mapped id belongs to the target;
// only its type and entry address the overlay table.
func DescribeOverlayValue(overlayApkPath string, mapped resources.ResID) (string, error) {
	ov, err := assets.LoadApk(overlayApkPath)
	if err != nil {
		return "", err
	}
	if len(ov.Table().Packages) == 0 {
		return "", errors.Errorf("no packages in %s", overlayApkPath)
	}
	p := ov.Table().Packages[0]

	res, err := p.FindEntry(mapped.TypeIndex(), mapped.EntryIndex(), nil)
	if err != nil {
		return "", errors.Wrapf(err, "overlay entry for %v", mapped)
	}

	typeName, err := p.TypeName(mapped.TypeIndex())
	if err != nil {
		typeName = fmt.Sprintf("type-%#02x", mapped.TypeIndex())
	}
	entryName, err := p.EntryName(mapped.TypeIndex(), mapped.EntryIndex())
	if err != nil {
		entryName = fmt.Sprintf("entry-%d", mapped.EntryIndex())
	}

	var text string
	switch {
	case res.Entry.IsComplex():
		text = fmt.Sprintf("bag(%d entries)", len(res.Entry.Maps))
	case res.Entry.Value.DataType == resources.TypeString:
		s, err := ov.Table().Strings.StringAt(res.Entry.Value.Data)
		if err != nil {
			return "", errors.Wrapf(err, "overlay string for %v", mapped)
		}
		text = fmt.Sprintf("%q", s)
	default:
		text = resources.FormatValue(res.Entry.Value)
	}
	return fmt.Sprintf("%s/%s = %s", typeName, entryName, text), nil
}

// ScanOverlays builds idmaps for every applicable overlay under the
// given directories and returns their paths in load order.
func ScanOverlays(opts idmap.ScanOptions, logLevel string) ([]string, error) {
	logger := newCommandLogger("reskit-scan", logLevel)
	return idmap.Scan(opts, logger)
}
