package domain

import "context"

// Credential types understood by the injector's formatting rules.
const (
	CredentialBearerToken = "bearer-token"
	CredentialAPIKey      = "api-key"
)

// CredentialSpec describes a credential an agent may reference. Values are
// never part of the catalog; only the resolver sees them.
type CredentialSpec struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// AllowedCatalog is the per-agent capability snapshot: which operation
// kinds the agent may run, which API hosts it may call, and which
// credentials it may reference.
type AllowedCatalog struct {
	OperationKinds map[string]bool
	// APIs maps an allowed host to its known endpoint paths. An empty
	// endpoint list allows any path on the host.
	APIs        map[string][]string
	Credentials []CredentialSpec
}

// AllowsCredential reports whether the catalog lists the credential id.
func (c *AllowedCatalog) AllowsCredential(id string) bool {
	for _, spec := range c.Credentials {
		if spec.ID == id {
			return true
		}
	}
	return false
}

// CatalogProvider supplies the filtered catalog for an agent. Implemented
// by the semantic-search layer in production; read-only and thread-safe.
type CatalogProvider interface {
	GetAllowedCatalog(ctx context.Context, agentID string) (*AllowedCatalog, error)
}

// CredentialResolver maps a credential id to its plaintext value and type.
// Must only be called from inside the executor; resolved values never
// reach agents, audit events or cache keys.
type CredentialResolver interface {
	Resolve(ctx context.Context, credentialID string) (value string, credType string, err error)
}

// StaticCatalogProvider serves a fixed catalog per agent. Used by tests
// and the CLI fixture loader.
type StaticCatalogProvider struct {
	Catalogs map[string]*AllowedCatalog
}

// GetAllowedCatalog implements CatalogProvider.
func (p *StaticCatalogProvider) GetAllowedCatalog(_ context.Context, agentID string) (*AllowedCatalog, error) {
	cat, ok := p.Catalogs[agentID]
	if !ok {
		return nil, NewAuthorizationError("unknown agent", agentID)
	}
	return cat, nil
}

// StaticCredentialResolver resolves credentials from an in-memory table.
type StaticCredentialResolver struct {
	Credentials map[string]struct {
		Value string
		Type  string
	}
}

// Resolve implements CredentialResolver.
func (r *StaticCredentialResolver) Resolve(_ context.Context, credentialID string) (string, string, error) {
	c, ok := r.Credentials[credentialID]
	if !ok {
		return "", "", NewAuthorizationError("unknown credential", credentialID)
	}
	return c.Value, c.Type, nil
}
