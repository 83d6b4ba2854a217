// Package security defines the capability vocabulary for tibok plugins.
//
// Every permission token belongs to exactly one class:
//
//	safe:     slash-commands, command-palette, read-current-document,
//	          insert-text, read-selection, read-document-metadata
//	elevated: write-document, workspace-access, network-access,
//	          filesystem-access, execute-process
//
// Elevated permissions are never reachable from script plugins. A script
// manifest that asks for one is rejected, and the script runtime refuses to
// start with one granted.
//
// Unknown tokens found in a manifest are dropped when parsing rather than
// failing the whole manifest, so older hosts keep working with newer plugins:
//
//	set, dropped := security.ParsePermissions([]string{"insert-text", "telepathy"})
//	// set = {insert-text}, dropped = ["telepathy"]
package security
