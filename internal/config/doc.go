// Package config loads the extension host configuration.
//
// Settings come from four sources, highest precedence first:
//
//   - command line flags the user changed (see RegisterFlags)
//   - EXTHOST_* environment variables, with "." in keys written as "_"
//     (EXTHOST_LOG_LEVEL sets log.level)
//   - a TOML file, exthost.toml, from the working directory or the user
//     config directory
//   - built-in defaults
//
// A .env file is loaded into the process environment before anything else,
// so its variables are visible both here and to {VAR} placeholders in
// extension manifests.
//
// Example exthost.toml:
//
//	extensions_dir = "/home/me/.config/moosync/extensions"
//	listen_addr = "127.0.0.1:8765"
//	host_call_timeout = "60s"
//	enable_lua = true
//	watch_extensions = false
//
//	[log]
//	level = "debug"
//	format = "json"
package config
