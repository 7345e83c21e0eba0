// Package plugin implements the extension host: discovery of installed
// plugin packages, one sandboxed instance per package, and the routing of
// commands from the host application to those instances.
//
// # Quick Start
//
//	sys := plugin.NewSystem(plugin.SystemConfig{
//	    ExtensionsDir: dir,
//	    Runtimes:      []sandbox.Runtime{wasm.NewRuntime()},
//	    Limits:        security.DefaultLimits(),
//	    Logger:        log,
//	})
//	defer sys.Close(context.Background())
//
//	if err := sys.SpawnExtensions(ctx); err != nil {
//	    log.Warn().Err(err).Msg("some extensions failed to spawn")
//	}
//
//	// Answer plugin-originated host requests.
//	go func() {
//	    for {
//	        req, err := sys.NextHostRequest(ctx)
//	        if err != nil {
//	            return
//	        }
//	        sys.HandleMainCommandReply(answer(req))
//	    }
//	}()
//
// # Layout
//
// Every plugin lives in its own directory under the extensions root (or at
// the root itself) with a package.json manifest:
//
//	{
//	  "name": "moosync.example",
//	  "display_name": "Example",
//	  "version": "1.0.0",
//	  "icon": "icon.svg",
//	  "extension_entry": "ext.wasm",
//	  "permissions": {
//	    "paths": {"{HOME}/sock": "/run/example"},
//	    "hosts": ["api.example.com"]
//	  }
//	}
//
// # Architecture
//
//   - System: the coordinator owning the shared tables
//   - Manager: the registry of loaded instances keyed by package name
//   - Loader: scans the extensions root for manifests
//   - Instance: one sandboxed module and its entry goroutine
//   - Router: fans commands out to instances and reconciles replies
//
// Host functions bound into every module live in package bridge; the
// sandbox technologies live in packages wasm and lua.
package plugin
