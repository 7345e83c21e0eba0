package lua

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/moosync/exthost/internal/plugin/sandbox"
)

// HostModule is the global table carrying the capability bridge.
const HostModule = "host"

// hostFuncs binds the bridge into Lua. Arguments and results are converted
// to plain Lua values; send_main_command errors are raised as Lua errors.
func hostFuncs(host sandbox.HostFunctions) map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"send_main_command": func(L *lua.LState) int {
			command, err := EncodeJSON(L.CheckAny(1))
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			ctx := L.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			reply, err := host.SendMainCommand(ctx, command)
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			lv, err := DecodeJSON(L, reply)
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(lv)
			return 1
		},
		"system_time": func(L *lua.LState) int {
			L.Push(lua.LNumber(host.SystemTime()))
			return 1
		},
		"open_clientfd": func(L *lua.LState) int {
			L.Push(lua.LNumber(host.OpenClientFD(L.CheckString(1))))
			return 1
		},
		"write_sock": func(L *lua.LState) int {
			handle := L.CheckInt64(1)
			data := L.CheckString(2)
			L.Push(lua.LNumber(host.WriteSock(handle, []byte(data))))
			return 1
		},
		"read_sock": func(L *lua.LState) int {
			handle := L.CheckInt64(1)
			maxLen := L.OptInt64(2, 0)
			if maxLen < 0 {
				maxLen = 0
			}
			L.Push(lua.LString(host.ReadSock(handle, uint64(maxLen))))
			return 1
		},
	}
}
