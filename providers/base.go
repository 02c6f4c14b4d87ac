package providers

// Base provides the fields shared by the live HTTP backends. Embed it to
// avoid repeating name, apiKey and baseURL handling.
type Base struct {
	name    string
	apiKey  string
	baseURL string
}

// Name returns the provider name.
func (b *Base) Name() string { return b.name }

// BaseURL returns the API root the backend talks to.
func (b *Base) BaseURL() string { return b.baseURL }

// HasCredential reports whether an API key was configured.
func (b *Base) HasCredential() bool { return b.apiKey != "" }
