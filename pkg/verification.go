package pkg

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/droidres/reskit/pkg/logging"
	"github.com/droidres/reskit/pkg/resources/assets"
	"github.com/droidres/reskit/pkg/resources/idmap"
)

// VerifyIdmapWithLogger checks a stored idmap against its apks with a
// provided logger
func VerifyIdmapWithLogger(idmapPath, targetApkPath, overlayApkPath string, logger hclog.Logger) error {
	im, err := idmap.ReadFromFile(idmapPath)
	if err != nil {
		logger.Error("Failed to read idmap", "error", err)
		return err
	}

	logger.Info("Verifying idmap freshness")

	failures := []string{}

	if im.Header.TargetPath != targetApkPath {
		failures = append(failures, fmt.Sprintf("target path mismatch: idmap records %s", im.Header.TargetPath))
		logger.Error("Target path mismatch", "recorded", im.Header.TargetPath, "given", targetApkPath)
	} else {
		logger.Info("✓ Target path matches")
	}

	if im.Header.OverlayPath != overlayApkPath {
		failures = append(failures, fmt.Sprintf("overlay path mismatch: idmap records %s", im.Header.OverlayPath))
		logger.Error("Overlay path mismatch", "recorded", im.Header.OverlayPath, "given", overlayApkPath)
	} else {
		logger.Info("✓ Overlay path matches")
	}

	target, err := assets.LoadApk(targetApkPath)
	if err != nil {
		failures = append(failures, fmt.Sprintf("target apk unreadable: %v", err))
		logger.Error("Target apk unreadable", "error", err)
	} else if target.TableCRC() != im.Header.TargetCRC {
		failures = append(failures, "target table changed since the idmap was built")
		logger.Error("Target checksum mismatch",
			"recorded", fmt.Sprintf("%#08x", im.Header.TargetCRC),
			"current", fmt.Sprintf("%#08x", target.TableCRC()))
	} else {
		logger.Info("✓ Target checksum current")
	}

	overlay, err := assets.LoadApk(overlayApkPath)
	if err != nil {
		failures = append(failures, fmt.Sprintf("overlay apk unreadable: %v", err))
		logger.Error("Overlay apk unreadable", "error", err)
	} else if overlay.TableCRC() != im.Header.OverlayCRC {
		failures = append(failures, "overlay table changed since the idmap was built")
		logger.Error("Overlay checksum mismatch",
			"recorded", fmt.Sprintf("%#08x", im.Header.OverlayCRC),
			"current", fmt.Sprintf("%#08x", overlay.TableCRC()))
	} else {
		logger.Info("✓ Overlay checksum current")
	}

	if len(failures) == 0 {
		logger.Info("✓ Idmap verification passed")
		return nil
	}

	logger.Error("✗ Idmap verification failed", "error_count", len(failures))
	for _, f := range failures {
		logger.Error("  Verification error", "details", f)
	}
	return ErrIdmapStale
}

// VerifyIdmap verifies an idmap using default logger settings
func VerifyIdmap(idmapPath, targetApkPath, overlayApkPath string) error {
	logger := logging.NewLogger("reskit-verify", logging.GetLogLevel(), nil)
	return VerifyIdmapWithLogger(idmapPath, targetApkPath, overlayApkPath, logger)
}

// VerifyIdmapWithLogLevel verifies an idmap with explicit log level
// control
func VerifyIdmapWithLogLevel(idmapPath, targetApkPath, overlayApkPath, logLevel string) error {
	logger := newCommandLogger("reskit-verify", logLevel)
	return VerifyIdmapWithLogger(idmapPath, targetApkPath, overlayApkPath, logger)
}
