// Package security resolves the capability grants of plugin instances.
//
// A manifest may declare permission paths, an ordered mapping from a
// plugin-visible prefix to a real directory, and a list of outbound hosts.
// Prefixes may embed {ENV_VAR} placeholders, expanded against the process
// environment when the instance is built:
//
//	grants, dropped := security.Resolve(manifest.Permissions.Paths, manifest.Permissions.Hosts)
//	for _, real := range grants.SocketCandidates("/home/u/sock/x.sock") {
//	    // try real in order
//	}
//
// Grants whose expanded prefix does not exist are dropped. A plugin without
// any declared permissions has a nil *Grants and every socket request fails.
package security
