package manifest

import "encoding/json"

// canonicalManifest fixes the field order of the signed manifest form.
// Every field is always present so two manifests hash identically only if
// every field matches.
type canonicalManifest struct {
	Identifier          string   `json:"identifier"`
	Name                string   `json:"name"`
	Version             string   `json:"version"`
	Description         string   `json:"description"`
	Author              string   `json:"author"`
	Icon                string   `json:"icon"`
	MinimumTibokVersion string   `json:"minimum_tibok_version"`
	PluginType          string   `json:"plugin_type"`
	Permissions         []string `json:"permissions"`
	TrustTier           string   `json:"trust_tier"`
	EntryPoint          string   `json:"entry_point"`
}

// Canonical returns the canonical JSON form of the manifest without its
// signature. Permissions are sorted and the trust tier is resolved.
func (m *Manifest) Canonical() ([]byte, error) {
	return json.Marshal(canonicalManifest{
		Identifier:          m.Identifier,
		Name:                m.Name,
		Version:             m.Version,
		Description:         m.Description,
		Author:              m.Author,
		Icon:                m.Icon,
		MinimumTibokVersion: m.MinimumTibokVersion,
		PluginType:          string(m.PluginType),
		Permissions:         m.Permissions.Strings(),
		TrustTier:           string(m.ResolvedTrustTier()),
		EntryPoint:          m.EntryPoint,
	})
}
