// Package command holds the command palette and slash-command registries.
//
// Both registries are source-tagged: every entry records the source that
// registered it, and UnregisterBySource removes all of a source's entries
// at once. Plugins register through a Registrar bound to their source tag
// ("plugin:" + identifier), so a plugin can never register under another
// plugin's name.
//
// # Collisions
//
// Registering a key again from the same source is a no-op. A key held by a
// different source is governed by the registry Policy:
//
//   - PolicyLastWins (default): the newer entry shadows the older one. When
//     the newer source is removed the older entry becomes visible again.
//   - PolicyReject: the registration fails with ErrCommandExists.
//
// # Search
//
// Both registries support fuzzy search for presentation layers:
//
//	for _, r := range slash.Search("head", 10) {
//	    fmt.Println(r.Item.Name, r.Score)
//	}
package command
