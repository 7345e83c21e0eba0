package lua

import (
	"context"
	"errors"
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"
)

func TestStateDoString(t *testing.T) {
	state := NewState()
	defer state.Close()

	if err := state.DoString(`x = 1 + 1`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	v, ok := state.GetGlobal("x").(glua.LNumber)
	if !ok || float64(v) != 2 {
		t.Errorf("x = %v, want 2", state.GetGlobal("x"))
	}
}

func TestStateDoStringSyntaxError(t *testing.T) {
	state := NewState()
	defer state.Close()

	if err := state.DoString(`invalid lua code !!!`); err == nil {
		t.Error("DoString() with invalid code should return error")
	}
}

func TestStateCall(t *testing.T) {
	state := NewState()
	defer state.Close()

	if err := state.DoString(`function add(a, b) return a + b, "done" end`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	results, err := state.Call(context.Background(), "add", glua.LNumber(2), glua.LNumber(3))
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Call() returned %d values, want 2", len(results))
	}
	if results[0].(glua.LNumber) != 5 {
		t.Errorf("Call() = %v, want 5", results[0])
	}
}

func TestStateCallNotFunction(t *testing.T) {
	state := NewState()
	defer state.Close()

	state.DoString(`value = 1`)

	if _, err := state.Call(context.Background(), "value"); !errors.Is(err, ErrNotFunction) {
		t.Errorf("Call(value) error = %v, want ErrNotFunction", err)
	}
	if _, err := state.Call(context.Background(), "missing"); !errors.Is(err, ErrNotFunction) {
		t.Errorf("Call(missing) error = %v, want ErrNotFunction", err)
	}
}

func TestStateCallTimeout(t *testing.T) {
	state := NewState(WithCallTimeout(50 * time.Millisecond))
	defer state.Close()

	state.DoString(`function spin() while true do end end`)

	_, err := state.Call(context.Background(), "spin")
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Fatalf("Call(spin) error = %v, want ErrExecutionTimeout", err)
	}

	// The state stays usable after a timeout.
	state.DoString(`function one() return 1 end`)
	if _, err := state.Call(context.Background(), "one"); err != nil {
		t.Errorf("Call(one) after timeout error = %v", err)
	}
}

func TestStateRunIgnoresCallTimeout(t *testing.T) {
	state := NewState(WithCallTimeout(10 * time.Millisecond))
	defer state.Close()

	state.DoString(`function slow() local n = 0 for i = 1, 3000000 do n = n + i end return n end`)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := state.Run(ctx, "slow"); err != nil {
		t.Errorf("Run(slow) error = %v", err)
	}
}

func TestStateCallRuntimeError(t *testing.T) {
	state := NewState()
	defer state.Close()

	state.DoString(`function boom() error("bad") end`)
	if _, err := state.Call(context.Background(), "boom"); err == nil {
		t.Error("Call(boom) should return error")
	}
}

func TestStateClose(t *testing.T) {
	state := NewState()
	if err := state.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := state.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := state.DoString(`x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString() after Close error = %v, want ErrStateClosed", err)
	}
	if state.HasFunction("print") {
		t.Error("HasFunction() on closed state = true")
	}
}
