package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	ma "github.com/tanur/mailauth"
)

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	// Config holds the metadata key configuration.
	*Config

	// Auth validates presented bearer tokens against the user store.
	// Required.
	Auth *ma.Authenticator

	// RequireAuth when true rejects unauthenticated requests.
	// When false, requests proceed but EmailFromContext returns empty.
	RequireAuth bool

	// PublicMethods is a set of method names that don't require auth.
	// Only used when RequireAuth is true.
	// Keys should be full method names like "/package.Service/Method".
	PublicMethods map[string]bool
}

// DefaultInterceptorConfig returns a config that requires auth for all methods.
func DefaultInterceptorConfig(auth *ma.Authenticator) *InterceptorConfig {
	return &InterceptorConfig{
		Config:        DefaultConfig(),
		Auth:          auth,
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
}

// NewPublicMethodsConfig creates a config with the specified public methods.
func NewPublicMethodsConfig(auth *ma.Authenticator, publicMethods ...string) *InterceptorConfig {
	config := DefaultInterceptorConfig(auth)
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// OptionalAuthConfig returns a config that allows unauthenticated requests.
func OptionalAuthConfig(auth *ma.Authenticator) *InterceptorConfig {
	config := DefaultInterceptorConfig(auth)
	config.RequireAuth = false
	return config
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that validates the
// bearer session token in the authorization metadata and installs the
// resolved identity into the handler context.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	config.ensure()

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		identity := config.authenticate(ctx)

		if config.RequireAuth && !config.PublicMethods[info.FullMethod] {
			if identity == nil {
				return nil, status.Error(codes.Unauthenticated, "authentication required")
			}
		}

		if identity != nil {
			ctx = withIdentity(ctx, identity.Email, identity.Name)
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor returns a gRPC stream interceptor that validates the
// bearer session token in the authorization metadata.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	config.ensure()

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		identity := config.authenticate(ctx)

		if config.RequireAuth && !config.PublicMethods[info.FullMethod] {
			if identity == nil {
				return status.Error(codes.Unauthenticated, "authentication required")
			}
		}

		if identity != nil {
			ss = &identityServerStream{ServerStream: ss, ctx: withIdentity(ctx, identity.Email, identity.Name)}
		}
		return handler(srv, ss)
	}
}

// identityServerStream overrides Context with one carrying the identity.
type identityServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityServerStream) Context() context.Context {
	return s.ctx
}

func (c *InterceptorConfig) ensure() {
	if c.Config == nil {
		c.Config = DefaultConfig()
	}
	c.Config.EnsureDefaults()
	if c.PublicMethods == nil {
		c.PublicMethods = make(map[string]bool)
	}
}

// authenticate extracts the bearer token from metadata and validates it.
// Returns nil when no valid token is present.
func (c *InterceptorConfig) authenticate(ctx context.Context) *ma.Identity {
	if c.Auth == nil {
		return nil
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}

	for _, value := range md.Get(c.Config.MetadataKeyAuthorization) {
		token := strings.TrimSpace(strings.TrimPrefix(value, "Bearer "))
		if token == "" {
			continue
		}
		identity, err := c.Auth.Authenticate(ma.Credentials{BearerToken: token})
		if err == nil {
			return identity
		}
	}
	return nil
}
