// Package cli holds lkt's configuration layer: where lkt.yaml is looked
// up, how LKT_* environment variables map onto config keys, the keys the
// commands share and their defaults.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitswalk/lkt/src/common/logs"
	"github.com/bitswalk/lkt/src/common/paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// AppName names the config file, the config folders and the log prefix
	AppName = "lkt"

	// EnvPrefix maps run.linux_folder to LKT_RUN_LINUX_FOLDER
	EnvPrefix = "LKT"

	// DataDir holds the run history, the log archive, dated log folders,
	// distribution configs and the boot-utils checkout
	DataDir = "~/.local/share/lkt"

	// BootUtilsRepository is cloned when no boot-utils folder is given
	BootUtilsRepository = "https://github.com/ClangBuiltLinux/boot-utils"
)

// Run keys
const (
	KeyLinuxFolder      = "run.linux_folder"
	KeyBuildFolder      = "run.build_folder"
	KeyLogFolder        = "run.log_folder"
	KeyConfigsFolder    = "run.configs_folder"
	KeyArchitectures    = "run.architectures"
	KeyTargets          = "run.targets"
	KeyJobs             = "run.jobs"
	KeyOnlyTestBoot     = "run.only_test_boot"
	KeySaveObjects      = "run.save_objects"
	KeyUseCCache        = "run.use_ccache"
)

// Toolchain and boot-utils keys
const (
	KeyBinutilsPrefix   = "toolchain.binutils_prefix"
	KeyLLVMPrefix       = "toolchain.llvm_prefix"
	KeyTCPrefix         = "toolchain.tc_prefix"
	KeyQEMUPrefix       = "toolchain.qemu_prefix"
	KeyTCBuildScript    = "toolchain.build_script"
	KeySkipTCBuild      = "toolchain.skip_build"
	KeyBootUtilsFolder  = "boot_utils.folder"
	KeyBootUtilsRepository = "boot_utils.repository"
)

// History, archive and server keys
const (
	KeyDatabasePath     = "database.path"
	KeyArchiveEnabled   = "archive.enabled"
	KeyArchiveKeepRuns  = "archive.keep_runs"
	KeyStorageType      = "storage.type"
	KeyStorageLocalPath = "storage.local.path"
	KeyS3Endpoint       = "storage.s3.endpoint"
	KeyS3Region         = "storage.s3.region"
	KeyS3Bucket         = "storage.s3.bucket"
	KeyS3AccessKey      = "storage.s3.access_key"
	KeyS3SecretKey      = "storage.s3.secret_key"
	KeyS3PathStyle      = "storage.s3.path_style"
	KeyServerPort       = "server.port"
	KeyServerBind       = "server.bind"
	KeyRateLimit        = "server.rate_limit.enabled"
	KeyRateLimitAPI     = "server.rate_limit.requests_per_min"
	KeyRateLimitLogs    = "server.rate_limit.log_requests_per_min"
	KeyLogOutput        = "log.output"
	KeyLogLevel         = "log.level"
)

// prefixKeys are the install prefixes whose bin folders go on PATH, in
// the order they are prepended
var prefixKeys = []string{KeyBinutilsPrefix, KeyLLVMPrefix, KeyTCPrefix, KeyQEMUPrefix}

// DataPath returns elem under DataDir, unexpanded so it reads well in
// flag help
func DataPath(elem ...string) string {
	return DataDir + "/" + strings.Join(elem, "/")
}

// SearchPaths returns the folders searched for lkt.yaml, in order.
// $XDG_CONFIG_HOME/lkt replaces ~/.config/lkt when set.
func SearchPaths() []string {
	user := "$HOME/.config/" + AppName
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		user = filepath.Join(xdg, AppName)
	}
	return []string{"/etc/" + AppName, user, "."}
}

// InitConfig reads cfgFile, or the first lkt.yaml on SearchPaths, and
// binds LKT_* variables. A missing lkt.yaml is not an error; a broken
// one is.
func InitConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(paths.Expand(cfgFile))
	} else {
		viper.SetConfigName(AppName)
		viper.SetConfigType("yaml")
		for _, p := range SearchPaths() {
			viper.AddConfigPath(paths.Expand(p))
		}
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// SetDefaults registers the defaults of the keys that have one. Flags
// bound to the same keys take precedence once set.
func SetDefaults() {
	viper.SetDefault(KeyConfigsFolder, DataPath("configs"))
	viper.SetDefault(KeyBootUtilsRepository, BootUtilsRepository)
	viper.SetDefault(KeyDatabasePath, DataPath(AppName+".db"))
	viper.SetDefault(KeyArchiveEnabled, false)
	viper.SetDefault(KeyArchiveKeepRuns, 0)
	viper.SetDefault(KeyStorageType, "local")
	viper.SetDefault(KeyStorageLocalPath, DataPath("archive"))
	viper.SetDefault(KeyS3Region, "us-east-1")
	viper.SetDefault(KeyS3Bucket, "lkt-logs")
	viper.SetDefault(KeyS3PathStyle, true)
	viper.SetDefault(KeyServerPort, 8080)
	viper.SetDefault(KeyServerBind, "127.0.0.1")
	viper.SetDefault(KeyLogOutput, "stderr")
	viper.SetDefault(KeyLogLevel, "info")
}

// RegisterLogFlags registers --log-output and --log-level. Logs default
// to stderr so that build output owns stdout.
func RegisterLogFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("log-output", "stderr", "Log output destination (auto, stdout, stderr, journald)")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	_ = viper.BindPFlag(KeyLogOutput, cmd.PersistentFlags().Lookup("log-output"))
	_ = viper.BindPFlag(KeyLogLevel, cmd.PersistentFlags().Lookup("log-level"))
}

// RegisterConfigFlag registers --config
func RegisterConfigFlag(cmd *cobra.Command, cfgFile *string) {
	cmd.PersistentFlags().StringVar(cfgFile, "config", "",
		fmt.Sprintf("config file (default: first %s.yaml in %s)", AppName, strings.Join(SearchPaths(), ", ")))
}

// InitLogger creates the lkt logger from the log keys. Call it after
// InitConfig.
func InitLogger() *logs.Logger {
	return logs.New(logs.Config{
		Output: logs.LogOutput(viper.GetString(KeyLogOutput)),
		Level:  viper.GetString(KeyLogLevel),
		Prefix: AppName,
	})
}

// GetExpandedString gets a path from Viper with ~ and variables expanded
func GetExpandedString(key string) string {
	return paths.Expand(viper.GetString(key))
}

// Prefixes returns the configured toolchain install prefixes, expanded,
// in PATH order
func Prefixes() []string {
	var out []string
	for _, key := range prefixKeys {
		if p := GetExpandedString(key); p != "" {
			out = append(out, p)
		}
	}
	return out
}
