package wasm

import (
	"context"
	"fmt"

	extism "github.com/extism/go-sdk"
	"github.com/rs/zerolog"

	"github.com/moosync/exthost/internal/plugin/sandbox"
)

// memory is the part of the guest memory the bridge touches.
// *extism.CurrentPlugin implements it.
type memory interface {
	ReadBytes(offset uint64) ([]byte, error)
	ReadString(offset uint64) (string, error)
	WriteBytes(b []byte) (uint64, error)
}

// hostCall is one bridge function. Every argument and result, integers
// included, is the offset of a memory block.
type hostCall struct {
	name    string
	params  []extism.ValueType
	returns []extism.ValueType
	fn      func(ctx context.Context, mem memory, stack []uint64)
}

func bridgeCalls(host sandbox.HostFunctions, log zerolog.Logger) []hostCall {
	ptr := extism.ValueTypePTR
	i64 := extism.ValueTypeI64
	return []hostCall{
		{
			name:    "send_main_command",
			params:  []extism.ValueType{ptr},
			returns: []extism.ValueType{ptr},
			fn: func(ctx context.Context, mem memory, stack []uint64) {
				command, err := mem.ReadBytes(stack[0])
				if err != nil {
					trap(log, "send_main_command", err)
				}
				reply, err := host.SendMainCommand(ctx, command)
				if err != nil {
					trap(log, "send_main_command", err)
				}
				stack[0] = write(mem, log, "send_main_command", reply)
			},
		},
		{
			name:    "system_time",
			returns: []extism.ValueType{ptr},
			fn: func(_ context.Context, mem memory, stack []uint64) {
				stack[0] = write(mem, log, "system_time", encodeUint64(host.SystemTime()))
			},
		},
		{
			name:    "open_clientfd",
			params:  []extism.ValueType{ptr},
			returns: []extism.ValueType{i64},
			fn: func(_ context.Context, mem memory, stack []uint64) {
				path, err := mem.ReadString(stack[0])
				if err != nil {
					trap(log, "open_clientfd", err)
				}
				stack[0] = write(mem, log, "open_clientfd", encodeInt64(host.OpenClientFD(path)))
			},
		},
		{
			name:    "write_sock",
			params:  []extism.ValueType{i64, ptr},
			returns: []extism.ValueType{i64},
			fn: func(_ context.Context, mem memory, stack []uint64) {
				handle := readInt64(mem, log, "write_sock", stack[0])
				data, err := mem.ReadBytes(stack[1])
				if err != nil {
					trap(log, "write_sock", err)
				}
				stack[0] = write(mem, log, "write_sock", encodeInt64(host.WriteSock(handle, data)))
			},
		},
		{
			name:    "read_sock",
			params:  []extism.ValueType{i64, i64},
			returns: []extism.ValueType{ptr},
			fn: func(_ context.Context, mem memory, stack []uint64) {
				handle := readInt64(mem, log, "read_sock", stack[0])
				raw, err := mem.ReadBytes(stack[1])
				if err != nil {
					trap(log, "read_sock", err)
				}
				maxLen, err := decodeUint64(raw)
				if err != nil {
					trap(log, "read_sock", err)
				}
				stack[0] = write(mem, log, "read_sock", host.ReadSock(handle, maxLen))
			},
		},
	}
}

// hostFunctions exposes the bridge under the names plugins import.
func hostFunctions(host sandbox.HostFunctions, log zerolog.Logger) []extism.HostFunction {
	calls := bridgeCalls(host, log)
	out := make([]extism.HostFunction, 0, len(calls))
	for _, c := range calls {
		fn := c.fn
		out = append(out, extism.NewHostFunctionWithStack(c.name,
			func(ctx context.Context, p *extism.CurrentPlugin, stack []uint64) {
				fn(ctx, p, stack)
			},
			c.params, c.returns))
	}
	return out
}

func readInt64(mem memory, log zerolog.Logger, fn string, offset uint64) int64 {
	raw, err := mem.ReadBytes(offset)
	if err != nil {
		trap(log, fn, err)
	}
	v, err := decodeInt64(raw)
	if err != nil {
		trap(log, fn, err)
	}
	return v
}

func write(mem memory, log zerolog.Logger, fn string, b []byte) uint64 {
	offset, err := mem.WriteBytes(b)
	if err != nil {
		trap(log, fn, err)
	}
	return offset
}

// trap aborts the current plugin call. The runtime turns the panic into an
// error returned from the guest call.
func trap(log zerolog.Logger, fn string, err error) {
	log.Error().Err(err).Str("function", fn).Msg("host function failed")
	panic(fmt.Errorf("%s: %w", fn, err))
}
