package ai

// resolveAlias maps a generic model alias to a provider's concrete model
// name. Empty and "default" map to the provider default; "fast", "smart"
// and "code" come from the per-provider table; anything else is passed
// through unchanged, assumed already provider-specific.
func resolveAlias(alias, def string, table map[string]string) string {
	if alias == "" || alias == "default" {
		return def
	}
	if concrete, ok := table[alias]; ok && concrete != "" {
		return concrete
	}
	return alias
}

// mergeModelTable overlays configured alias overrides on a provider's
// built-in table.
func mergeModelTable(builtin, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(builtin)+len(overrides))
	for k, v := range builtin {
		out[k] = v
	}
	for k, v := range overrides {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
