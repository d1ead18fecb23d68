package components

// Scoped is embedded by resources that can be restricted to a set of applications.
type Scoped struct {
	Scopes []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
}

// IsAppScoped reports whether appID may use the resource. An empty scope list
// allows every application; otherwise appID must match an entry exactly.
func (s Scoped) IsAppScoped(appID string) bool {
	if len(s.Scopes) == 0 {
		return true
	}
	for _, scope := range s.Scopes {
		if scope == appID {
			return true
		}
	}
	return false
}
