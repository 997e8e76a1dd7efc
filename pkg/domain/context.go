package common

type ContextKey string

const (
	// Tenancy (internal)
	TenantIDKey ContextKey = "tenant_id"
	ClientIDKey ContextKey = "client_id"
	GroupIDKey  ContextKey = "group_id"
	UserIDKey   ContextKey = "user_id"

	// Parameters
	AccountIDParamKey ContextKey = "account_id"
	KeysetIDParamKey  ContextKey = "keyset_id"

	// Request (ie: msg header, meta)
	RequestIDKey            ContextKey = "x-request-id"
	ResourceOwnerIDParamKey ContextKey = "x-reso-id"

	// Auth
	AudienceKey      ContextKey = "audience"
	AuthenticatedKey ContextKey = "authenticated"
)
