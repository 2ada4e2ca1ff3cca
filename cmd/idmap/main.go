package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/droidres/reskit/pkg"
	"github.com/droidres/reskit/pkg/resources"
	"github.com/droidres/reskit/pkg/resources/idmap"
)

const version = "0.1.0"

var (
	logLevel    string
	versionFlag bool
	rootCmd     *cobra.Command

	createTargetApk         string
	createOverlayApk        string
	createIdmapPath         string
	createPolicies          []string
	createIgnoreOverlayable bool

	dumpIdmapPath string
	dumpVerbose   bool

	verifyIdmapPath  string
	verifyTargetApk  string
	verifyOverlayApk string

	lookupIdmapPath  string
	lookupResID      string
	lookupOverlayApk string

	scanInputDirs  []string
	scanOutputDir  string
	scanTargetApk  string
	scanPolicies   []string
	scanConfigPath string
)

func getBinaryTimestamp() string {
	// Try to get vcs.time from build info
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.time" {
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					return t.UTC().Format(time.RFC3339)
				}
			}
		}
	}
	// Fallback to binary modification time
	if exePath, err := os.Executable(); err == nil {
		if stat, err := os.Stat(exePath); err == nil {
			return stat.ModTime().UTC().Format(time.RFC3339)
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func init() {
	rootCmd = &cobra.Command{
		Use:           "idmap",
		Short:         "Build and inspect overlay idmaps",
		Long:          `Build and inspect overlay idmaps`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			if versionFlag {
				fmt.Printf("idmap %s\n", version)
				fmt.Printf("Built: %s\n", getBinaryTimestamp())
				return
			}
			cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.Flags().BoolVarP(&versionFlag, "version", "V", false, "Show version information")

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Build one idmap from a target and an overlay apk",
		RunE:  runCreate,
	}
	createCmd.Flags().StringVar(&createTargetApk, "target-apk-path", "", "Path to the target apk (required)")
	createCmd.Flags().StringVar(&createOverlayApk, "overlay-apk-path", "", "Path to the overlay apk (required)")
	createCmd.Flags().StringVar(&createIdmapPath, "idmap-path", "", "Output path for the idmap (required)")
	createCmd.Flags().StringArrayVar(&createPolicies, "policy", nil, "Fulfilled policy, repeatable (default: signature and all partitions)")
	createCmd.Flags().BoolVar(&createIgnoreOverlayable, "ignore-overlayable", false, "Map entries regardless of overlayable declarations")
	for _, name := range []string{"target-apk-path", "overlay-apk-path", "idmap-path"} {
		if err := createCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Print a stored idmap",
		RunE:  runDump,
	}
	dumpCmd.Flags().StringVar(&dumpIdmapPath, "idmap-path", "", "Path to the idmap (required)")
	dumpCmd.Flags().BoolVarP(&dumpVerbose, "verbose", "v", false, "Also print every mapped entry")
	if err := dumpCmd.MarkFlagRequired("idmap-path"); err != nil {
		panic(err)
	}

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that a stored idmap still matches its apks",
		RunE:  runVerify,
	}
	verifyCmd.Flags().StringVar(&verifyIdmapPath, "idmap-path", "", "Path to the idmap (required)")
	verifyCmd.Flags().StringVar(&verifyTargetApk, "target-apk-path", "", "Path to the target apk (required)")
	verifyCmd.Flags().StringVar(&verifyOverlayApk, "overlay-apk-path", "", "Path to the overlay apk (required)")
	for _, name := range []string{"idmap-path", "target-apk-path", "overlay-apk-path"} {
		if err := verifyCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	lookupCmd := &cobra.Command{
		Use:   "lookup",
		Short: "Map one target resource id through a stored idmap",
		RunE:  runLookup,
	}
	lookupCmd.Flags().StringVar(&lookupIdmapPath, "idmap-path", "", "Path to the idmap (required)")
	lookupCmd.Flags().StringVar(&lookupResID, "resid", "", "Target resource id, hex or decimal (required)")
	lookupCmd.Flags().StringVar(&lookupOverlayApk, "overlay-apk-path", "", "Also resolve the mapped value against this overlay apk")
	for _, name := range []string{"idmap-path", "resid"} {
		if err := lookupCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Build idmaps for every static overlay under the input directories",
		RunE:  runScan,
	}
	scanCmd.Flags().StringArrayVar(&scanInputDirs, "input-directory", nil, "Directory to walk for overlay apks, repeatable")
	scanCmd.Flags().StringVar(&scanOutputDir, "output-directory", "", "Directory receiving the idmaps")
	scanCmd.Flags().StringVar(&scanTargetApk, "target-apk-path", "", "Path to the target apk")
	scanCmd.Flags().StringArrayVar(&scanPolicies, "override-policy", nil, "Fulfilled policy for every overlay, repeatable")
	scanCmd.Flags().StringVar(&scanConfigPath, "config", "", "Yaml file supplying directories and policies")

	rootCmd.AddCommand(createCmd, dumpCmd, verifyCmd, lookupCmd, scanCmd)
}

func main() {
	// Handle --version or -V before cobra parses other flags
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-V") {
		fmt.Printf("idmap %s\n", version)
		fmt.Printf("Built: %s\n", getBinaryTimestamp())
		os.Exit(0)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parsePolicyNames(names []string) (idmap.PolicyFlags, error) {
	if len(names) == 0 {
		return 0, nil
	}
	return idmap.ParsePolicies(strings.Join(names, "|"))
}

func runCreate(cmd *cobra.Command, args []string) error {
	fulfilled := idmap.DefaultPolicies
	if len(createPolicies) > 0 {
		f, err := parsePolicyNames(createPolicies)
		if err != nil {
			return err
		}
		fulfilled = f
	}
	return pkg.CreateIdmapWithLogLevel(createTargetApk, createOverlayApk, createIdmapPath,
		fulfilled, !createIgnoreOverlayable, logLevel)
}

func runDump(cmd *cobra.Command, args []string) error {
	return pkg.DumpIdmap(dumpIdmapPath, dumpVerbose, os.Stdout)
}

func runVerify(cmd *cobra.Command, args []string) error {
	return pkg.VerifyIdmapWithLogLevel(verifyIdmapPath, verifyTargetApk, verifyOverlayApk, logLevel)
}

func runLookup(cmd *cobra.Command, args []string) error {
	n, err := strconv.ParseUint(strings.TrimSpace(lookupResID), 0, 32)
	if err != nil {
		return fmt.Errorf("bad --resid %q: %w", lookupResID, err)
	}
	target := resources.ResID(n)

	mapped, ok, err := pkg.LookupIdmap(lookupIdmapPath, target)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("%v -> no mapping\n", target)
		return nil
	}
	if lookupOverlayApk != "" {
		desc, err := pkg.DescribeOverlayValue(lookupOverlayApk, mapped)
		if err != nil {
			return err
		}
		fmt.Printf("%v -> %v (%s)\n", target, mapped, desc)
		return nil
	}
	fmt.Printf("%v -> %v\n", target, mapped)
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	opts := idmap.ScanOptions{
		InputDirectories: scanInputDirs,
		OutputDirectory:  scanOutputDir,
		TargetApkPath:    scanTargetApk,
		LockTimeout:      10 * time.Second,
	}
	overrideNames := scanPolicies

	if scanConfigPath != "" {
		cfg, err := idmap.LoadScanConfig(scanConfigPath)
		if err != nil {
			return err
		}
		if len(opts.InputDirectories) == 0 {
			opts.InputDirectories = cfg.InputDirectories
		}
		if opts.OutputDirectory == "" {
			opts.OutputDirectory = cfg.OutputDirectory
		}
		if opts.TargetApkPath == "" {
			opts.TargetApkPath = cfg.TargetApkPath
		}
		if len(overrideNames) == 0 {
			overrideNames = cfg.OverridePolicies
		}
	}

	override, err := parsePolicyNames(overrideNames)
	if err != nil {
		return err
	}
	opts.OverridePolicies = override

	written, err := pkg.ScanOverlays(opts, logLevel)
	if err != nil {
		return err
	}
	for _, path := range written {
		fmt.Println(path)
	}
	return nil
}
