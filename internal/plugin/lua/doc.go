// Package lua provides the sandboxed Lua runtime for script plugins.
//
// A State is a gopher-lua VM opened with only the base, table, string and
// math libraries. The io, os, debug and package libraries are never opened,
// and the base functions that load code (dofile, loadfile, load, loadstring,
// require, module) are removed, so a plugin can reach nothing outside the VM
// except the capability table the host installs.
//
//	state, err := lua.NewState("com.example.wordcount",
//	    lua.WithLogger(logger),
//	    lua.WithCallTimeout(2*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
//	if err := state.DoFile(ctx, entryPath); err != nil {
//	    return err
//	}
//
// # Error containment
//
// Every chunk and callback runs in protected mode with panic recovery.
// Errors are logged with the plugin identifier and returned as *ScriptError;
// they never propagate as panics into the host.
//
// # Output
//
// print is replaced with a function that writes to the plugin logger.
package lua
