// Package api provides the capability table exposed to tibok script plugins.
//
// Plugins reach the host through a single global, tibok. The table is built
// per plugin from the permissions it was granted; a module whose permission
// is missing is simply absent, so calling into it fails with an ordinary
// Lua "attempt to index a nil value" error.
//
//   - tibok.log: always present
//   - tibok.slash: slash-commands
//   - tibok.commands: command-palette
//   - tibok.editor.insertText, replaceSelection: insert-text
//   - tibok.editor.getSelectedText, getSelectionRange, setSelectionRange: read-selection
//   - tibok.editor.getContent, getCursorPosition: read-current-document
//   - tibok.document: read-document-metadata
//
// Modules gated on an elevated permission are never installed into a script
// plugin, whatever its manifest says.
//
// Stored Lua callbacks run through a Dispatcher so that every VM call happens
// on the host thread. After Registry.Cleanup a late invocation returns
// ErrPluginUnloaded instead of touching the closed VM.
//
// From Lua:
//
//	tibok.slash.register({
//	    name = "today",
//	    description = "Insert today's date",
//	    insert = "{{date}}",
//	})
//
//	tibok.commands.register({
//	    id = "example.shout",
//	    title = "Shout selection",
//	    action = function()
//	        tibok.editor.replaceSelection(string.upper(tibok.editor.getSelectedText()))
//	    end,
//	})
package api
