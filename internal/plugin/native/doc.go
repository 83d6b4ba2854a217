// Package native loads compiled plugins from the third-party install root.
//
// A native bundle is a directory <Name>.framework holding a Go plugin
// binary named <Name>. The manifest's entry point names an exported symbol
// of type func() Plugin.
//
// Before anything is opened, Load runs these checks in order, each failing
// with a distinct *LoadError kind:
//
//   - location: the path resolves inside the trusted root, symlinks included
//   - existence: the framework directory and its binary exist
//   - size: the framework's regular files total at most the size ceiling
//   - architecture: the ELF or Mach-O binary targets the host GOARCH
//   - entry point: the symbol exists and has the plugin factory type
//
// Compiled-in plugins use the same Plugin contract through Activate.
package native
