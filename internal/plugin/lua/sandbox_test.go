package lua

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSandboxRemovesLoaders(t *testing.T) {
	state := NewState()
	defer state.Close()

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "module"} {
		if err := state.DoString(`assert(` + name + ` == nil)`); err != nil {
			t.Errorf("%s is still available: %v", name, err)
		}
	}
}

func TestSandboxLibraries(t *testing.T) {
	state := NewState()
	defer state.Close()

	for _, name := range []string{"io", "os", "debug"} {
		if err := state.DoString(`assert(` + name + ` == nil)`); err != nil {
			t.Errorf("%s should not be opened: %v", name, err)
		}
	}
	if err := state.DoString(`assert(string.upper("a") == "A" and math.floor(1.5) == 1)`); err != nil {
		t.Errorf("safe libraries missing: %v", err)
	}
}

func TestSandboxRequire(t *testing.T) {
	state := NewState()
	defer state.Close()

	if err := state.DoString(`local s = require("string"); assert(s.len("ab") == 2)`); err != nil {
		t.Errorf("require(string) error = %v", err)
	}
	if err := state.DoString(`require("os")`); err == nil {
		t.Error("require(os) should fail")
	}

	state.RegisterModule("host", nil)
	if err := state.DoString(`assert(require("host") == host)`); err != nil {
		t.Errorf("require(host) error = %v", err)
	}
}

func TestSandboxPrintGoesToLogger(t *testing.T) {
	var buf bytes.Buffer
	state := NewState(WithLogger(zerolog.New(&buf)))
	defer state.Close()

	if err := state.DoString(`print("hello", 42)`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if !strings.Contains(buf.String(), `hello\t42`) {
		t.Errorf("log output = %q", buf.String())
	}
}
