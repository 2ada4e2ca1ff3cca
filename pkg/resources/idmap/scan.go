package idmap

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/droidres/reskit/pkg/resources/assets"
)

// ScanOptions configures a bulk idmap build over overlay directories.
type ScanOptions struct {
	// InputDirectories are walked recursively for overlay apks.
	InputDirectories []string
	// OutputDirectory receives one canonically named idmap per overlay.
	OutputDirectory string
	// TargetApkPath is the package the overlays must declare as their
	// target.
	TargetApkPath string
	// OverridePolicies replaces DefaultPolicies for every overlay when
	// non-zero.
	OverridePolicies PolicyFlags
	// LockTimeout bounds the wait when another scan holds the output
	// directory. Zero means fail immediately.
	LockTimeout time.Duration
}

// candidate is an overlay apk that passed manifest screening.
type candidate struct {
	path     string
	manifest *OverlayManifest
}

// Scan walks the input directories for static overlays targeting the
// given apk, builds an idmap for each under the output directory, and
// returns the idmap paths in load order. Idmaps that are already up to
// date are kept as they are. Overlayable declarations are always
// enforced here; one-off builds that need to bypass them go through
// Build directly.
func Scan(opts ScanOptions, logger hclog.Logger) ([]string, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("scan")

	if len(opts.InputDirectories) == 0 {
		return nil, errors.New("scan needs at least one input directory")
	}
	if opts.OutputDirectory == "" {
		return nil, errors.New("scan needs an output directory")
	}
	if opts.TargetApkPath == "" {
		return nil, errors.New("scan needs a target apk")
	}

	target, err := assets.LoadApk(opts.TargetApkPath)
	if err != nil {
		return nil, errors.Wrapf(err, "load target %s", opts.TargetApkPath)
	}
	targetPkg, err := mainPackage(target)
	if err != nil {
		return nil, errors.Wrapf(err, "target %s", opts.TargetApkPath)
	}

	candidates, err := collectOverlays(opts.InputDirectories, targetPkg.Name, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("🔍 Scan collected overlays",
		"target_package", targetPkg.Name,
		"count", len(candidates))

	fulfilled := DefaultPolicies
	if opts.OverridePolicies != 0 {
		fulfilled = opts.OverridePolicies
	}

	lock, ok, err := AcquireDirLock(opts.OutputDirectory, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "lock %s", opts.OutputDirectory)
	}
	if !ok {
		if err := WaitForDirLock(opts.OutputDirectory, opts.LockTimeout, logger); err != nil {
			return nil, err
		}
		lock, ok, err = AcquireDirLock(opts.OutputDirectory, logger)
		if err != nil {
			return nil, errors.Wrapf(err, "lock %s", opts.OutputDirectory)
		}
		if !ok {
			return nil, errors.Errorf("another scan holds the lock on %s", opts.OutputDirectory)
		}
	}
	defer lock.Release()

	var written []string
	for _, c := range candidates {
		out := CanonicalPathFor(opts.OutputDirectory, c.path)

		if existing, err := ReadFromFile(out); err == nil {
			if fresh, err := existing.IsUpToDate(opts.TargetApkPath, c.path); err == nil && fresh {
				logger.Debug("✅ Idmap up to date", "path", out)
				written = append(written, out)
				continue
			}
		}

		overlay, err := assets.LoadApk(c.path)
		if err != nil {
			logger.Warn("⚠️ Skipping unreadable overlay", "path", c.path, "error", err)
			continue
		}
		im, err := BuildFromAssets(target, overlay, fulfilled, true, logger)
		if err != nil {
			logger.Warn("⚠️ Skipping overlay that failed to map", "path", c.path, "error", err)
			continue
		}
		if err := im.WriteToFile(out); err != nil {
			return written, errors.Wrapf(err, "write %s", out)
		}
		logger.Info("🗺️ Idmap written",
			"overlay", c.path,
			"idmap", out,
			"priority", c.manifest.Priority)
		written = append(written, out)
	}
	return written, nil
}

// collectOverlays walks the input directories and keeps static overlays
// declaring the wanted target package, ordered by priority then path.
func collectOverlays(dirs []string, targetPackage string, logger hclog.Logger) ([]candidate, error) {
	var found []candidate
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".apk") {
				return nil
			}

			m, err := ParseOverlayManifest(path)
			if err != nil {
				if errors.Is(err, ErrNotOverlay) {
					logger.Debug("Not an overlay, skipped", "path", path)
				} else {
					logger.Warn("⚠️ Unreadable manifest, skipped", "path", path, "error", err)
				}
				return nil
			}
			if m.TargetPackage != targetPackage {
				logger.Debug("Overlay targets another package, skipped",
					"path", path,
					"target", m.TargetPackage)
				return nil
			}
			if !m.IsStatic {
				logger.Debug("Non-static overlay, skipped", "path", path)
				return nil
			}
			found = append(found, candidate{path: path, manifest: m})
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "walk %s", dir)
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].manifest.Priority != found[j].manifest.Priority {
			return found[i].manifest.Priority < found[j].manifest.Priority
		}
		return found[i].path < found[j].path
	})
	return found, nil
}
