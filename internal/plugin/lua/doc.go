// Package lua runs plugins written in Lua.
//
// Scripts execute in a gopher-lua state opened with the base, table, string
// and math libraries only. The loaders dofile, loadfile, load and loadstring
// are removed, require resolves only the opened libraries and the host
// module, and print is routed to the plugin logger.
//
// The host module carries the capability bridge:
//
//	local reply = host.send_main_command({type = "getVolume"})
//	local now = host.system_time()
//	local fd = host.open_clientfd("/run/app/player.sock")
//	host.write_sock(fd, "ping")
//	local data = host.read_sock(fd, 0)
//
// Exported functions are plain globals. They receive the decoded JSON input
// as a Lua value and return a value that is encoded back to JSON.
//
// Wrapper calls run under a deadline set through the state's context, so a
// runaway loop fails with ErrExecutionTimeout. The entry function has no
// deadline.
package lua
