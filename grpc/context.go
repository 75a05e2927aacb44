// Package grpc provides authentication interceptors and context utilities
// for exposing mailauth-protected services over gRPC. Clients present their
// bearer session token in the authorization metadata; validated identities
// travel to handlers via metadata keys.
package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// Default metadata keys for authentication context.
// These can be customized via Config if needed.
const (
	// DefaultMetadataKeyEmail is the default gRPC metadata key for the authenticated email
	DefaultMetadataKeyEmail = "x-user-email"

	// DefaultMetadataKeyName is the default gRPC metadata key for the authenticated display name
	DefaultMetadataKeyName = "x-user-name"

	// DefaultMetadataKeyAuthorization is the metadata key clients send their bearer token in
	DefaultMetadataKeyAuthorization = "authorization"
)

// Config holds the metadata key configuration for auth context.
type Config struct {
	// MetadataKeyEmail is the gRPC metadata key for the authenticated email.
	// Defaults to "x-user-email".
	MetadataKeyEmail string

	// MetadataKeyName is the gRPC metadata key for the display name.
	// Defaults to "x-user-name".
	MetadataKeyName string

	// MetadataKeyAuthorization is the metadata key carrying the bearer
	// token. Defaults to "authorization".
	MetadataKeyAuthorization string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyEmail:         DefaultMetadataKeyEmail,
		MetadataKeyName:          DefaultMetadataKeyName,
		MetadataKeyAuthorization: DefaultMetadataKeyAuthorization,
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyEmail == "" {
		c.MetadataKeyEmail = DefaultMetadataKeyEmail
	}
	if c.MetadataKeyName == "" {
		c.MetadataKeyName = DefaultMetadataKeyName
	}
	if c.MetadataKeyAuthorization == "" {
		c.MetadataKeyAuthorization = DefaultMetadataKeyAuthorization
	}
}

type identityContextKey string

const contextKeyIdentity identityContextKey = "mailauth_identity"

// EmailFromContext extracts the authenticated email from the gRPC context.
// Returns empty string if no user is authenticated.
func EmailFromContext(ctx context.Context) string {
	if email, _ := identityFromContext(ctx); email != "" {
		return email
	}
	return ""
}

// NameFromContext extracts the authenticated display name from the context.
func NameFromContext(ctx context.Context) string {
	_, name := identityFromContext(ctx)
	return name
}

// IsAuthenticated returns true if there is an authenticated user in the context.
func IsAuthenticated(ctx context.Context) bool {
	return EmailFromContext(ctx) != ""
}

// identityFromContext reads the identity installed by the interceptor, or
// falls back to incoming metadata for handlers invoked behind a trusted
// gateway that already validated the token.
func identityFromContext(ctx context.Context) (email, name string) {
	if v := ctx.Value(contextKeyIdentity); v != nil {
		if id, ok := v.([2]string); ok {
			return id[0], id[1]
		}
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", ""
	}
	if values := md.Get(DefaultMetadataKeyEmail); len(values) > 0 {
		email = values[0]
	}
	if values := md.Get(DefaultMetadataKeyName); len(values) > 0 {
		name = values[0]
	}
	return email, name
}

// withIdentity installs a validated identity into the context.
func withIdentity(ctx context.Context, email, name string) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, [2]string{email, name})
}

// TokenToOutgoingContext adds a bearer session token to outgoing gRPC
// context metadata, for clients calling a mailauth-protected service.
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyAuthorization, "Bearer "+token)
}

// EmailToOutgoingContext adds a pre-validated email to outgoing metadata,
// for trusted gateway-to-service hops.
func EmailToOutgoingContext(ctx context.Context, email string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyEmail, email)
}
