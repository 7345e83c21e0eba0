package security

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestExpandPlaceholders(t *testing.T) {
	t.Setenv("EXTHOST_TEST_HOME", "/home/u")

	tests := []struct {
		in   string
		want string
	}{
		{"{EXTHOST_TEST_HOME}/sock", "/home/u/sock"},
		{"{EXTHOST_TEST_UNDEFINED}/sock", "/sock"},
		{"{lower}/sock", "{lower}/sock"},
		{"/plain/path", "/plain/path"},
		{"{EXTHOST_TEST_HOME}{EXTHOST_TEST_HOME}", "/home/u/home/u"},
	}

	for _, tt := range tests {
		if got := ExpandPlaceholders(tt.in); got != tt.want {
			t.Errorf("ExpandPlaceholders(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPathMapKeepsOrder(t *testing.T) {
	var m PathMap
	data := `{"z": "/zz", "a": "/aa", "m": "/mm"}`
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	want := []string{"z", "a", "m"}
	if len(m) != len(want) {
		t.Fatalf("len = %d, want %d", len(m), len(want))
	}
	for i, k := range want {
		if m[i].Prefix != k {
			t.Errorf("m[%d].Prefix = %q, want %q", i, m[i].Prefix, k)
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != `{"z":"/zz","a":"/aa","m":"/mm"}` {
		t.Errorf("Marshal() = %s", out)
	}
}

func TestPathMapRejectsNonString(t *testing.T) {
	var m PathMap
	if err := json.Unmarshal([]byte(`{"a": 1}`), &m); err == nil {
		t.Error("Unmarshal() with numeric root should fail")
	}
	if err := json.Unmarshal([]byte(`["a"]`), &m); err == nil {
		t.Error("Unmarshal() with array should fail")
	}
}

func TestResolveDropsMissing(t *testing.T) {
	home := t.TempDir()
	if err := os.Mkdir(filepath.Join(home, "sock"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EXTHOST_TEST_HOME", home)

	g, dropped := Resolve(PathMap{
		{Prefix: "{EXTHOST_TEST_HOME}/sock", Root: "/var/run/app"},
		{Prefix: "{EXTHOST_TEST_HOME}/missing", Root: "/var/run/other"},
	}, []string{"API.Example.com"})

	if len(g.Paths) != 1 {
		t.Fatalf("len(Paths) = %d, want 1", len(g.Paths))
	}
	if g.Paths[0].Prefix != filepath.Join(home, "sock") {
		t.Errorf("Prefix = %q", g.Paths[0].Prefix)
	}
	if len(dropped) != 1 || dropped[0] != home+"/missing" {
		t.Errorf("dropped = %v", dropped)
	}
	if len(g.Hosts) != 1 || g.Hosts[0] != "api.example.com" {
		t.Errorf("Hosts = %v", g.Hosts)
	}
	if m := g.Mounts(); m[home+"/sock"] != "/var/run/app" {
		t.Errorf("Mounts() = %v", m)
	}
}

func TestSocketCandidates(t *testing.T) {
	g := &Grants{Paths: PathMap{
		{Prefix: "/home/u/sock", Root: "/var/run/app"},
		{Prefix: "/home/u", Root: "/srv/"},
		{Prefix: "/other", Root: "/nope"},
	}}

	got := g.SocketCandidates("/home/u/sock/x.sock")
	want := []string{"/var/run/app/x.sock", "/srv/sock/x.sock"}
	if len(got) != len(want) {
		t.Fatalf("SocketCandidates() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := g.SocketCandidates("/tmp/x.sock"); len(got) != 0 {
		t.Errorf("SocketCandidates(non-matching) = %v, want none", got)
	}

	var none *Grants
	if got := none.SocketCandidates("/home/u/sock/x.sock"); got != nil {
		t.Errorf("nil grants SocketCandidates() = %v", got)
	}
}

func TestClampReadLen(t *testing.T) {
	tests := []struct {
		in   uint64
		want int
	}{
		{0, 1024},
		{1, 1},
		{1023, 1023},
		{1024, 1024},
		{1025, 1024},
		{1 << 40, 1024},
	}
	for _, tt := range tests {
		if got := ClampReadLen(tt.in); got != tt.want {
			t.Errorf("ClampReadLen(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
