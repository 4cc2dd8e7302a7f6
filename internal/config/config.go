// Package config resolves the settings shared by both entry points. Flags
// take precedence over LEGACY_* environment variables, which take precedence
// over defaults derived from the executable's location.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wbrc/legacy/agetool"
	"github.com/wbrc/legacy/internal/logging"
)

const (
	HomeKey              = "home"
	BinDirKey            = "bin-dir"
	EncryptedDirKey      = "encrypted-dir"
	KeysDirKey           = "keys-dir"
	GeneratedKeysDirKey  = "generated-keys-dir"
	OutputDirKey         = "output-dir"
	ToolTimeoutKey       = "tool-timeout"
	LogLevelKey          = "log-level"
	LogFileKey           = "log-file"
	NoColorKey           = "no-color"
	AllowRepeatedKeysKey = "allow-repeated-keys"

	EnvPrefix = "LEGACY"
)

// Directory names below home.
const (
	BinariesDirName      = "binaries"
	EncryptedDirName     = "encrypted"
	KeysDirName          = "keys"
	GeneratedKeysDirName = "age-keys-DISTRIBUTE-AND-DELETE"
)

// AddFlags registers every setting on flags.
func AddFlags(flags *pflag.FlagSet) {
	flags.String(HomeKey, "", "Directory holding binaries/, encrypted/ and keys/ (default: the executable's directory)")
	flags.String(BinDirKey, "", "Directory holding the age binaries (default: <home>/binaries)")
	flags.String(EncryptedDirKey, "", "Directory holding the ciphertext and its key configuration (default: <home>/encrypted)")
	flags.String(KeysDirKey, "", "Directory the key file chooser starts in (default: <home>/keys)")
	flags.String(GeneratedKeysDirKey, "", "Directory newly generated key files are written to (default: <home>/"+GeneratedKeysDirName+")")
	flags.String(OutputDirKey, "", "Directory decrypted files are written to and files to encrypt are picked from (default: ~/Desktop)")
	flags.Duration(ToolTimeoutKey, agetool.DefaultTimeout, "Maximum time a single tool invocation may take (0 disables the limit)")
	flags.String(LogLevelKey, logging.DefaultLevel, "Log level (debug, info, warn, error)")
	flags.String(LogFileKey, "", "Write JSON logs to this file instead of stderr")
	flags.Bool(NoColorKey, false, "Disable colored output")
	flags.Bool(AllowRepeatedKeysKey, false, "Let two files holding the same key both count toward the threshold")
}

// Layout is the file-system layout a session works in.
type Layout struct {
	Home             string
	BinDir           string
	EncryptedDir     string
	KeysDir          string
	GeneratedKeysDir string
	OutputDir        string
}

// Config is the resolved run configuration.
type Config struct {
	Layout            Layout
	ToolTimeout       time.Duration
	LogLevel          string
	LogFile           string
	NoColor           bool
	AllowRepeatedKeys bool
}

// Parse resolves the configuration from flags and the environment.
func Parse(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	home := v.GetString(HomeKey)
	if home == "" {
		var err error
		home, err = executableDir()
		if err != nil {
			return nil, err
		}
	}
	home, err := filepath.Abs(home)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home: %w", err)
	}

	outputDir := v.GetString(OutputDirKey)
	if outputDir == "" {
		outputDir = DefaultOutputDir()
	}

	timeout := v.GetDuration(ToolTimeoutKey)
	if timeout < 0 {
		return nil, errors.New("tool timeout must not be negative")
	}

	return &Config{
		Layout: Layout{
			Home:             home,
			BinDir:           orDefault(v.GetString(BinDirKey), home, BinariesDirName),
			EncryptedDir:     orDefault(v.GetString(EncryptedDirKey), home, EncryptedDirName),
			KeysDir:          orDefault(v.GetString(KeysDirKey), home, KeysDirName),
			GeneratedKeysDir: orDefault(v.GetString(GeneratedKeysDirKey), home, GeneratedKeysDirName),
			OutputDir:        outputDir,
		},
		ToolTimeout:       timeout,
		LogLevel:          v.GetString(LogLevelKey),
		LogFile:           v.GetString(LogFileKey),
		NoColor:           v.GetBool(NoColorKey),
		AllowRepeatedKeys: v.GetBool(AllowRepeatedKeysKey),
	}, nil
}

func orDefault(value, home, name string) string {
	if value != "" {
		return value
	}
	return filepath.Join(home, name)
}

func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// DefaultOutputDir is ~/Desktop when it exists, otherwise the home directory.
func DefaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	desktop := filepath.Join(home, "Desktop")
	if info, err := os.Stat(desktop); err == nil && info.IsDir() {
		return desktop
	}
	return home
}
