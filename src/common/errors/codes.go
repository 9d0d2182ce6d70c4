package errors

// Common error codes used across domains
const (
	CodeNotFound       Code = "not_found"
	CodeInvalidRequest Code = "invalid_request"
	CodeInternal       Code = "internal_error"
	CodeUnavailable    Code = "unavailable"
	CodeInterrupted    Code = "interrupted"
	CodeCommandFailed  Code = "command_failed"
	CodeRateLimited    Code = "rate_limited"
)

// ============================================================================
// Setup Errors
// ============================================================================

var (
	// ErrLinuxFolderRequired is returned when no kernel source folder was given
	ErrLinuxFolderRequired = New(DomainSetup, "linux_folder_required", ExitUsage,
		"Linux source folder is required")

	// ErrPathNotFound is returned when a user supplied path does not exist
	ErrPathNotFound = New(DomainSetup, CodeNotFound, ExitSetup,
		"Path not found")

	// ErrPrefixNoBin is returned when a toolchain prefix has no bin folder
	ErrPrefixNoBin = New(DomainSetup, "prefix_no_bin", ExitSetup,
		"Prefix has no 'bin' folder")

	// ErrBootUtilsFetch is returned when boot-utils could not be cloned or updated
	ErrBootUtilsFetch = New(DomainSetup, "boot_utils_fetch", ExitSetup,
		"Failed to fetch boot-utils")

	// ErrInterrupted is returned when the run was cancelled by a signal
	ErrInterrupted = New(DomainSetup, CodeInterrupted, ExitInterrupted,
		"Interrupted")
)

// ============================================================================
// Validation Errors
// ============================================================================

var (
	// ErrUnknownArchitecture is returned for an architecture without a handler
	ErrUnknownArchitecture = New(DomainValidation, "unknown_architecture", ExitUsage,
		"Unknown architecture")

	// ErrUnknownTarget is returned for a target other than def, other or distro
	ErrUnknownTarget = New(DomainValidation, "unknown_target", ExitUsage,
		"Unknown build target")

	// ErrInvalidVariable is returned for a malformed NAME=value argument
	ErrInvalidVariable = New(DomainValidation, "invalid_variable", ExitUsage,
		"Invalid NAME=value argument")

	// ErrInvalidVersion is returned when a version string cannot be parsed
	ErrInvalidVersion = New(DomainValidation, "invalid_version", ExitUsage,
		"Invalid version string")
)

// ============================================================================
// Source Errors
// ============================================================================

var (
	// ErrNotKernelTree is returned when the source folder has no top level Makefile
	ErrNotKernelTree = New(DomainSource, "not_kernel_tree", ExitSetup,
		"Folder does not look like a Linux kernel tree")

	// ErrDirtyTree is returned when the source folder has in-tree build state
	ErrDirtyTree = New(DomainSource, "dirty_tree", ExitSetup,
		"Linux source tree is not clean")

	// ErrSourceRead is returned when a probed source file cannot be read
	ErrSourceRead = New(DomainSource, "read_failed", ExitSetup,
		"Failed to read Linux source file")
)

// ============================================================================
// Toolchain Errors
// ============================================================================

var (
	// ErrProbeFailed is returned when a version probe could not run or parse
	ErrProbeFailed = New(DomainToolchain, "probe_failed", ExitSetup,
		"Version probe failed")

	// ErrToolchainBuild is returned when the toolchain build script fails
	ErrToolchainBuild = New(DomainToolchain, "build_failed", ExitToolchain,
		"Toolchain build failed")
)

// ============================================================================
// Build and Boot Errors
// ============================================================================

var (
	// ErrScenarioInvalid is returned for a scenario that cannot be executed
	ErrScenarioInvalid = New(DomainBuild, "invalid_scenario", ExitSetup,
		"Invalid build scenario")

	// ErrConfigureFailed is returned when seeding or patching .config fails
	ErrConfigureFailed = New(DomainBuild, "configure_failed", ExitSetup,
		"Failed to configure kernel")

	// ErrRunFailed is returned when a run finished with failed builds or boots
	ErrRunFailed = New(DomainBuild, "run_failed", ExitFailures,
		"Run finished with failures")

	// ErrBootHelperMissing is returned when boot-qemu.py cannot be found
	ErrBootHelperMissing = New(DomainBoot, CodeNotFound, ExitSetup,
		"boot-qemu.py could not be found")
)

// ============================================================================
// Kconfig Errors
// ============================================================================

var (
	// ErrInvalidOption is returned for a malformed CONFIG_X=v option
	ErrInvalidOption = New(DomainConfig, "invalid_option", ExitSetup,
		"Invalid configuration option")

	// ErrConfigNotFound is returned when a .config file does not exist
	ErrConfigNotFound = New(DomainConfig, CodeNotFound, ExitSetup,
		"Configuration file not found")
)

// ============================================================================
// Storage and Database Errors
// ============================================================================

var (
	// ErrStorageUnavailable is returned when no archive backend is configured
	ErrStorageUnavailable = New(DomainStorage, CodeUnavailable, ExitSetup,
		"Storage backend not configured")

	// ErrRateLimited is returned when a client exceeds the API request rate
	ErrRateLimited = New(DomainValidation, CodeRateLimited, ExitUsage,
		"Too many requests, try again later")

	// ErrObjectNotFound is returned when an archived object does not exist
	ErrObjectNotFound = New(DomainStorage, CodeNotFound, ExitSetup,
		"Object not found")

	// ErrSchemaTooNew is returned when the run history schema is ahead of
	// this release
	ErrSchemaTooNew = New(DomainDatabase, "schema_too_new", ExitSetup,
		"Run history was written by a newer lkt")

	// ErrRunNotFound is returned when no run has the requested ID
	ErrRunNotFound = New(DomainDatabase, CodeNotFound, ExitSetup,
		"Run not found")
)
