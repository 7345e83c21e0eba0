package security

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// placeholderPattern matches {ENV_VAR} placeholders in declared path keys.
var placeholderPattern = regexp.MustCompile(`\{([A-Z_][A-Z0-9_]*)\}`)

// ExpandPlaceholders replaces every {VAR} in s with the value of the
// environment variable VAR. Undefined variables expand to "".
func ExpandPlaceholders(s string) string {
	return ExpandPlaceholdersWith(s, os.Getenv)
}

// ExpandPlaceholdersWith is ExpandPlaceholders with a custom lookup.
func ExpandPlaceholdersWith(s string, lookup func(string) string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		return lookup(m[1 : len(m)-1])
	})
}

// PathGrant maps a plugin-visible path prefix onto a real directory.
type PathGrant struct {
	Prefix string
	Root   string
}

// PathMap is an ordered set of path grants as declared in a manifest.
// Declaration order decides which grant wins when prefixes overlap.
type PathMap []PathGrant

// UnmarshalJSON decodes a JSON object keeping its key order.
func (m *PathMap) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*m = nil
		return nil
	}
	res := gjson.ParseBytes(trimmed)
	if !res.IsObject() {
		return fmt.Errorf("permission paths must be an object, got %s", res.Type)
	}

	var out PathMap
	var err error
	res.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String {
			err = fmt.Errorf("permission path %q must map to a string", key.String())
			return false
		}
		out = append(out, PathGrant{Prefix: key.String(), Root: value.String()})
		return true
	})
	if err != nil {
		return err
	}
	*m = out
	return nil
}

// MarshalJSON encodes the map as a JSON object in declaration order.
func (m PathMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, g := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(g.Prefix)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(g.Root)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Grants is the resolved capability grant of one plugin instance.
// A nil *Grants means the plugin declared no permissions at all.
type Grants struct {
	Paths PathMap
	Hosts []string
}

// Resolve expands placeholders in every declared prefix and drops grants
// whose expanded prefix does not exist on disk. Hosts are lowercased.
// Dropped prefixes are reported through the returned slice.
func Resolve(paths PathMap, hosts []string) (*Grants, []string) {
	g := &Grants{}
	var dropped []string
	for _, p := range paths {
		prefix := ExpandPlaceholders(p.Prefix)
		if _, err := os.Stat(prefix); err != nil {
			dropped = append(dropped, prefix)
			continue
		}
		g.Paths = append(g.Paths, PathGrant{Prefix: prefix, Root: p.Root})
	}
	for _, h := range hosts {
		g.Hosts = append(g.Hosts, strings.ToLower(h))
	}
	return g, dropped
}

// Mounts returns the grants as a prefix to root map.
func (g *Grants) Mounts() map[string]string {
	if g == nil {
		return nil
	}
	out := make(map[string]string, len(g.Paths))
	for _, p := range g.Paths {
		out[p.Prefix] = p.Root
	}
	return out
}

// SocketCandidates returns, in declaration order, the real paths a requested
// socket path maps to. For each grant whose prefix starts path, the candidate
// is the grant root joined with the remainder of path.
func (g *Grants) SocketCandidates(path string) []string {
	if g == nil {
		return nil
	}
	var out []string
	for _, p := range g.Paths {
		if !strings.HasPrefix(path, p.Prefix) {
			continue
		}
		suffix := strings.TrimPrefix(strings.TrimPrefix(path, p.Prefix), "/")
		out = append(out, strings.TrimSuffix(p.Root, "/")+"/"+suffix)
	}
	return out
}
