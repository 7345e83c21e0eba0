package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/moosync/exthost/internal/plugin/security"
)

const (
	// FileName is the config file looked up when none is given.
	FileName = "exthost.toml"

	// EnvPrefix prefixes every environment override, e.g. EXTHOST_LISTEN_ADDR.
	EnvPrefix = "EXTHOST"

	// DefaultEnvFile is loaded before anything else when present.
	DefaultEnvFile = ".env"

	appDir = "moosync"
)

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Setting keys.
const (
	KeyExtensionsDir   = "extensions_dir"
	KeyCacheDir        = "cache_dir"
	KeyDatabasePath    = "database_path"
	KeyListenAddr      = "listen_addr"
	KeyHostCallTimeout = "host_call_timeout"
	KeyEnableLua       = "enable_lua"
	KeyWatchExtensions = "watch_extensions"
	KeyLuaCallTimeout  = "lua_call_timeout"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
)

// Config is the effective extension host configuration.
type Config struct {
	ExtensionsDir   string        `mapstructure:"extensions_dir"`
	CacheDir        string        `mapstructure:"cache_dir"`
	DatabasePath    string        `mapstructure:"database_path"`
	ListenAddr      string        `mapstructure:"listen_addr"`
	HostCallTimeout time.Duration `mapstructure:"host_call_timeout"`
	EnableLua       bool          `mapstructure:"enable_lua"`
	WatchExtensions bool          `mapstructure:"watch_extensions"`
	LuaCallTimeout  time.Duration `mapstructure:"lua_call_timeout"`
	Log             LogConfig     `mapstructure:"log"`

	file string
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	configDir := userDir(os.UserConfigDir)
	cacheDir := userDir(os.UserCacheDir)
	limits := security.DefaultLimits()

	return &Config{
		ExtensionsDir:   filepath.Join(configDir, appDir, "extensions"),
		CacheDir:        filepath.Join(cacheDir, appDir, "exthost"),
		DatabasePath:    filepath.Join(configDir, appDir, "exthost.db"),
		ListenAddr:      "127.0.0.1:8765",
		HostCallTimeout: limits.HostCallTimeout,
		EnableLua:       false,
		WatchExtensions: true,
		LuaCallTimeout:  limits.ScriptTimeout,
		Log: LogConfig{
			Level:  zerolog.LevelInfoValue,
			Format: FormatConsole,
		},
	}
}

func userDir(lookup func() (string, error)) string {
	dir, err := lookup()
	if err != nil || dir == "" {
		return "."
	}
	return dir
}

// Options controls where Load looks for settings.
type Options struct {
	// File is an explicit config file. It must exist when set.
	File string

	// EnvFile is an explicit dotenv file. When empty, DefaultEnvFile is
	// loaded if it exists.
	EnvFile string

	// SearchPaths are directories searched for FileName when File is empty.
	// Nil means the working directory and the user config directory.
	SearchPaths []string

	// Flags are bound over every other source. Only flags the user changed
	// take effect.
	Flags *pflag.FlagSet
}

// Load builds the effective configuration. Precedence, highest first:
// changed flags, EXTHOST_* environment variables, the config file, defaults.
func Load(opts Options) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	path, err := findFile(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := readFile(v, path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.file = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(DefaultEnvFile); err != nil {
		return nil
	}
	if err := godotenv.Load(DefaultEnvFile); err != nil {
		return fmt.Errorf("load env file %s: %w", DefaultEnvFile, err)
	}
	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault(KeyExtensionsDir, d.ExtensionsDir)
	v.SetDefault(KeyCacheDir, d.CacheDir)
	v.SetDefault(KeyDatabasePath, d.DatabasePath)
	v.SetDefault(KeyListenAddr, d.ListenAddr)
	v.SetDefault(KeyHostCallTimeout, d.HostCallTimeout)
	v.SetDefault(KeyEnableLua, d.EnableLua)
	v.SetDefault(KeyWatchExtensions, d.WatchExtensions)
	v.SetDefault(KeyLuaCallTimeout, d.LuaCallTimeout)
	v.SetDefault(KeyLogLevel, d.Log.Level)
	v.SetDefault(KeyLogFormat, d.Log.Format)
}

func findFile(opts Options) (string, error) {
	if opts.File != "" {
		info, err := os.Stat(opts.File)
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, opts.File)
		}
		if err != nil {
			return "", fmt.Errorf("stat config %s: %w", opts.File, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%w: %s is a directory", ErrConfigNotFound, opts.File)
		}
		return opts.File, nil
	}

	search := opts.SearchPaths
	if search == nil {
		search = []string{".", filepath.Join(userDir(os.UserConfigDir), appDir)}
	}
	for _, dir := range search {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", nil
}

// readFile parses the file with go-toml first so syntax errors carry a
// position, then hands the bytes to viper.
func readFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		perr := &ParseError{Path: path, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return perr
	}

	v.SetConfigType("toml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	return nil
}

// Validate checks every setting.
func (c *Config) Validate() error {
	var errs []error
	if c.ExtensionsDir == "" {
		errs = append(errs, &ValueError{Key: KeyExtensionsDir, Value: c.ExtensionsDir, Reason: "must not be empty"})
	}
	if c.HostCallTimeout < 0 {
		errs = append(errs, &ValueError{Key: KeyHostCallTimeout, Value: c.HostCallTimeout, Reason: "must not be negative"})
	}
	if c.LuaCallTimeout < 0 {
		errs = append(errs, &ValueError{Key: KeyLuaCallTimeout, Value: c.LuaCallTimeout, Reason: "must not be negative"})
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, &ValueError{Key: KeyLogLevel, Value: c.Log.Level, Reason: "unknown level"})
	}
	switch c.Log.Format {
	case FormatConsole, FormatJSON:
	default:
		errs = append(errs, &ValueError{Key: KeyLogFormat, Value: c.Log.Format, Reason: "must be console or json"})
	}
	return errors.Join(errs...)
}

// File returns the config file that was read, or "" when none was found.
func (c *Config) File() string {
	return c.file
}

// Limits returns the plugin limits derived from the configuration.
func (c *Config) Limits() security.Limits {
	return security.Limits{
		HostCallTimeout: c.HostCallTimeout,
		ScriptTimeout:   c.LuaCallTimeout,
	}
}

// fileView is the on-disk shape of Config. Durations are written as strings
// so the output can be read back.
type fileView struct {
	ExtensionsDir   string      `toml:"extensions_dir"`
	CacheDir        string      `toml:"cache_dir"`
	DatabasePath    string      `toml:"database_path"`
	ListenAddr      string      `toml:"listen_addr"`
	HostCallTimeout string      `toml:"host_call_timeout"`
	EnableLua       bool        `toml:"enable_lua"`
	WatchExtensions bool        `toml:"watch_extensions"`
	LuaCallTimeout  string      `toml:"lua_call_timeout"`
	Log             logFileView `toml:"log"`
}

type logFileView struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// TOML renders the configuration as a config file.
func (c *Config) TOML() ([]byte, error) {
	view := fileView{
		ExtensionsDir:   c.ExtensionsDir,
		CacheDir:        c.CacheDir,
		DatabasePath:    c.DatabasePath,
		ListenAddr:      c.ListenAddr,
		HostCallTimeout: c.HostCallTimeout.String(),
		EnableLua:       c.EnableLua,
		WatchExtensions: c.WatchExtensions,
		LuaCallTimeout:  c.LuaCallTimeout.String(),
		Log: logFileView{
			Level:  c.Log.Level,
			Format: c.Log.Format,
		},
	}
	out, err := toml.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}
