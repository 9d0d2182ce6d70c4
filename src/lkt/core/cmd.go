// Package core provides the lkt commands: the kernel run itself plus the
// gates, history, serve and version subcommands.
package core

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bitswalk/lkt/src/common/cli"
	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/common/logs"
	"github.com/bitswalk/lkt/src/common/version"
	"github.com/bitswalk/lkt/src/lkt/api"
	"github.com/bitswalk/lkt/src/lkt/arch"
	"github.com/bitswalk/lkt/src/lkt/archive"
	"github.com/bitswalk/lkt/src/lkt/boot"
	"github.com/bitswalk/lkt/src/lkt/build"
	"github.com/bitswalk/lkt/src/lkt/db/migrations"
	"github.com/bitswalk/lkt/src/lkt/probe"
	"github.com/bitswalk/lkt/src/lkt/report"
	"github.com/bitswalk/lkt/src/lkt/runner"
	"github.com/bitswalk/lkt/src/lkt/source"
)

var (
	// VersionInfo holds version information - set at build time via ldflags
	VersionInfo = version.New()

	// Global logger instance
	log *logs.Logger

	// Configuration file path
	cfgFile string

	// Output format (table or json)
	outputFormat string
)

// Linker variables - set via ldflags at build time
var (
	Version        = "dev"
	ReleaseVersion = "0.0.0"
	BuildDate      = "unknown"
	GitCommit      = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "lkt [flags] [NAME=value...]",
	Short: "Build and boot Linux kernels with LLVM",
	Long: `lkt cross-compiles the Linux kernel with clang for every supported
architecture and configuration, then boots the results in QEMU through
boot-utils to catch LLVM regressions.

NAME=value arguments are exported into the environment of every build.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: runKernels,
}

// Execute runs the root command and exits with the status of the error
func Execute() {
	VersionInfo.Version = Version
	VersionInfo.ReleaseVersion = ReleaseVersion
	VersionInfo.BuildDate = BuildDate
	VersionInfo.GitCommit = GitCommit

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(lkterrors.GetExitCode(err))
	}
}

func init() {
	VersionInfo.Schema = migrations.Latest()

	cli.RegisterConfigFlag(rootCmd, &cfgFile)
	cli.RegisterLogFlags(rootCmd)
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return lkterrors.Wrap(err, lkterrors.DomainValidation, lkterrors.CodeInvalidRequest, lkterrors.ExitUsage, "Invalid arguments")
	})

	// Run flags
	f := rootCmd.Flags()
	f.StringSliceP("architectures", "a", nil, "Architectures to build for (default: all but experimental ones)")
	f.StringP("build-folder", "b", "", "Path to build folder (default: 'build' folder in the Linux source folder)")
	f.StringP("linux-folder", "l", "", "Path to Linux source folder (required)")
	f.StringSliceP("targets", "t", nil, "Testing targets to build: def, other, distro (default: all)")
	f.IntP("jobs", "j", 0, "Number of make jobs (default: number of CPUs)")
	f.String("log-folder", "", "Folder to store log files in (default: "+cli.DataPath("logs", "<date>")+")")
	f.String("configs-folder", cli.DataPath("configs"), "Folder holding the distribution configs")
	f.Bool("only-test-boot", false, "Only build and boot the default configurations")
	f.Bool("save-objects", false, "Keep the build folder after each architecture")
	f.Bool("use-ccache", false, "Use ccache for building")
	f.Bool("archive", false, "Archive the log folder to the storage backend after the run")
	f.Int("keep-archived-runs", 0, "Remove archives of older runs, keeping this many (0 keeps all)")

	// Toolchain flags
	f.String("binutils-prefix", "", "Path to binutils installation (parent of 'bin' folder)")
	f.String("llvm-prefix", "", "Path to LLVM installation (parent of 'bin' folder)")
	f.String("tc-prefix", "", "Path to toolchain installation (parent of 'bin' folder)")
	f.String("qemu-prefix", "", "Path to QEMU installation (parent of 'bin' folder)")
	f.String("tc-build-script", "", "Script building the toolchain into --tc-prefix before the run")
	f.Bool("skip-tc-build", false, "Do not run --tc-build-script")
	f.String("boot-utils-folder", "", "Path to boot-utils (default: cloned and updated in "+cli.DataPath("boot-utils")+")")

	// History and archive flags, shared with history and serve
	pf := rootCmd.PersistentFlags()
	pf.String("db-path", cli.DataPath("lkt.db"), "Run history database (empty disables recording)")
	pf.String("storage-type", "local", "Archive storage backend: 'local' or 's3'")
	pf.String("storage-path", cli.DataPath("archive"), "Local storage path (for local backend)")
	pf.String("s3-endpoint", "", "S3-compatible storage endpoint URL")
	pf.String("s3-region", "us-east-1", "S3 region")
	pf.String("s3-bucket", "lkt-logs", "S3 bucket for archived logs")
	pf.String("s3-access-key", "", "S3 access key ID")
	pf.String("s3-secret-key", "", "S3 secret access key")
	pf.Bool("s3-path-style", true, "Use path-style addressing for S3")

	_ = viper.BindPFlag(cli.KeyArchitectures, f.Lookup("architectures"))
	_ = viper.BindPFlag(cli.KeyBuildFolder, f.Lookup("build-folder"))
	_ = viper.BindPFlag(cli.KeyLinuxFolder, f.Lookup("linux-folder"))
	_ = viper.BindPFlag(cli.KeyTargets, f.Lookup("targets"))
	_ = viper.BindPFlag(cli.KeyJobs, f.Lookup("jobs"))
	_ = viper.BindPFlag(cli.KeyLogFolder, f.Lookup("log-folder"))
	_ = viper.BindPFlag(cli.KeyConfigsFolder, f.Lookup("configs-folder"))
	_ = viper.BindPFlag(cli.KeyOnlyTestBoot, f.Lookup("only-test-boot"))
	_ = viper.BindPFlag(cli.KeySaveObjects, f.Lookup("save-objects"))
	_ = viper.BindPFlag(cli.KeyUseCCache, f.Lookup("use-ccache"))
	_ = viper.BindPFlag(cli.KeyArchiveEnabled, f.Lookup("archive"))
	_ = viper.BindPFlag(cli.KeyArchiveKeepRuns, f.Lookup("keep-archived-runs"))
	_ = viper.BindPFlag(cli.KeyBinutilsPrefix, f.Lookup("binutils-prefix"))
	_ = viper.BindPFlag(cli.KeyLLVMPrefix, f.Lookup("llvm-prefix"))
	_ = viper.BindPFlag(cli.KeyTCPrefix, f.Lookup("tc-prefix"))
	_ = viper.BindPFlag(cli.KeyQEMUPrefix, f.Lookup("qemu-prefix"))
	_ = viper.BindPFlag(cli.KeyTCBuildScript, f.Lookup("tc-build-script"))
	_ = viper.BindPFlag(cli.KeySkipTCBuild, f.Lookup("skip-tc-build"))
	_ = viper.BindPFlag(cli.KeyBootUtilsFolder, f.Lookup("boot-utils-folder"))
	_ = viper.BindPFlag(cli.KeyDatabasePath, pf.Lookup("db-path"))
	_ = viper.BindPFlag(cli.KeyStorageType, pf.Lookup("storage-type"))
	_ = viper.BindPFlag(cli.KeyStorageLocalPath, pf.Lookup("storage-path"))
	_ = viper.BindPFlag(cli.KeyS3Endpoint, pf.Lookup("s3-endpoint"))
	_ = viper.BindPFlag(cli.KeyS3Region, pf.Lookup("s3-region"))
	_ = viper.BindPFlag(cli.KeyS3Bucket, pf.Lookup("s3-bucket"))
	_ = viper.BindPFlag(cli.KeyS3AccessKey, pf.Lookup("s3-access-key"))
	_ = viper.BindPFlag(cli.KeyS3SecretKey, pf.Lookup("s3-secret-key"))
	_ = viper.BindPFlag(cli.KeyS3PathStyle, pf.Lookup("s3-path-style"))


	cli.SetDefaults()

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(gatesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
}

// initConfig reads in config file and ENV variables if set
func initConfig() error {
	if err := cli.InitConfig(cfgFile); err != nil {
		return err
	}

	log = cli.InitLogger()
	setLoggers(log)
	return nil
}

// setLoggers hands the command logger to every package that logs
func setLoggers(l *logs.Logger) {
	api.SetLogger(l)
	arch.SetLogger(l)
	archive.SetLogger(l)
	boot.SetLogger(l)
	build.SetLogger(l)
	migrations.SetLogger(l)
	probe.SetLogger(l)
	report.SetLogger(l)
	runner.SetLogger(l)
	source.SetLogger(l)
}
