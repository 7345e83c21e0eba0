package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command line flags onto setting keys.
var flagKeys = map[string]string{
	"extensions-dir":    KeyExtensionsDir,
	"cache-dir":         KeyCacheDir,
	"database":          KeyDatabasePath,
	"listen":            KeyListenAddr,
	"host-call-timeout": KeyHostCallTimeout,
	"enable-lua":        KeyEnableLua,
	"watch-extensions":  KeyWatchExtensions,
	"lua-call-timeout":  KeyLuaCallTimeout,
	"log-level":         KeyLogLevel,
	"log-format":        KeyLogFormat,
}

// RegisterFlags defines the override flags understood by Load.
// The flag defaults are zero values; unchanged flags never override.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("extensions-dir", "", "directory scanned for extensions")
	fs.String("cache-dir", "", "directory for the module compilation cache")
	fs.String("database", "", "path of the preference database")
	fs.String("listen", "", "address of the websocket endpoint")
	fs.Duration("host-call-timeout", 0, "how long a plugin waits for the host to reply (0 waits forever)")
	fs.Bool("enable-lua", false, "accept .lua extension entries")
	fs.Bool("watch-extensions", false, "load extensions installed while serving")
	fs.Duration("lua-call-timeout", 0, "bound on one call into a Lua extension")
	fs.String("log-level", "", "log level (trace, debug, info, warn, error)")
	fs.String("log-format", "", "log format (console or json)")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
