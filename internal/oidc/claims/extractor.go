package claims

// Extractor selects the claims a grant is entitled to. The selection is
// the intersection of the claims unlocked by the granted scopes and the
// claims actually present for the user.
type Extractor struct {
	registry *Registry
}

// NewExtractor returns an Extractor backed by the given registry.
func NewExtractor(registry *Registry) *Extractor {
	return &Extractor{registry: registry}
}

// Extract walks the scopes in request order and copies every matching
// claim from available into the result. Unknown scopes are skipped, and
// a claim unlocked by multiple scopes takes the value seen last.
func (e *Extractor) Extract(scopes []string, available map[string]any) map[string]any {
	out := make(map[string]any)
	for _, scope := range scopes {
		set, ok := e.registry.Lookup(scope)
		if !ok {
			continue
		}
		for _, name := range set.Claims {
			if value, ok := available[name]; ok {
				out[name] = value
			}
		}
	}
	return out
}
