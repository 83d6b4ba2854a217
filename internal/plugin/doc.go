// Package plugin provides the plugin host for tibok.
//
// Plugins extend the editor with slash commands and command palette
// entries. They come in two kinds:
//   - Script plugins: Lua files run in a sandboxed interpreter that only
//     sees the capability modules their permissions grant
//   - Native plugins: compiled bundles opened from the install root
//
// Compiled-in plugins (see builtin/coreslash) are native plugins that
// ship with the host and are the only holders of the official trust tier.
//
// # Quick Start
//
// The easiest way to use the plugin host is through the System type:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sys, err := plugin.NewSystem(cfg, plugin.WithSystemEditor(ed, doc))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := sys.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer sys.Shutdown(context.Background())
//
//	// Run a slash command contributed by any plugin
//	ins, err := sys.Manager().SlashCommands().Execute(ctx, "h1")
//
// # Plugin Structure
//
// A plugin is a directory under the install root:
//
//	wordcount/
//	├── manifest.json    # identity, permissions, trust tier, signature
//	└── main.lua         # entry point (script plugins)
//
// Example manifest.json:
//
//	{
//	  "identifier": "com.example.wordcount",
//	  "name": "Word Count",
//	  "version": "1.0.0",
//	  "plugin_type": "script",
//	  "permissions": ["command-palette", "read-current-document"],
//	  "trust_tier": "community"
//	}
//
// # Lifecycle
//
// Each plugin moves through these states:
//
//	Discovered → Validated → Loading → Active → Deactivating → Unloaded
//	                            ↓
//	                          Denied
//
// Loading revalidates the manifest from disk, checks the host version and
// applies the trust tier:
//   - official: accepted only for compiled-in or shipped plugins
//   - verified: requires a signature that verifies against the keyring
//   - community: elevated permissions are dropped unless a valid
//     signature is present
//
// A plugin that fails any step is Denied with the error recorded; other
// plugins are unaffected. Every registry entry a plugin creates carries
// the source tag "plugin:<identifier>", and unloading removes all of them.
//
// # Thread Model
//
// All lifecycle mutations and every plugin callback run on a single host
// thread (see hostthread). Manager methods may be called from any
// goroutine; called from a callback with the callback's context they run
// inline. Shutdown must not be called from the host thread.
package plugin
