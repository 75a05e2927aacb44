package grpc

import (
	"context"
	"testing"

	"google.golang.org/grpc/metadata"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.MetadataKeyEmail != DefaultMetadataKeyEmail {
		t.Errorf("expected MetadataKeyEmail %q, got %q", DefaultMetadataKeyEmail, config.MetadataKeyEmail)
	}
	if config.MetadataKeyName != DefaultMetadataKeyName {
		t.Errorf("expected MetadataKeyName %q, got %q", DefaultMetadataKeyName, config.MetadataKeyName)
	}
	if config.MetadataKeyAuthorization != DefaultMetadataKeyAuthorization {
		t.Errorf("expected MetadataKeyAuthorization %q, got %q", DefaultMetadataKeyAuthorization, config.MetadataKeyAuthorization)
	}
}

func TestEnsureDefaults(t *testing.T) {
	config := &Config{}
	config.EnsureDefaults()
	if config.MetadataKeyEmail != DefaultMetadataKeyEmail {
		t.Errorf("expected MetadataKeyEmail %q, got %q", DefaultMetadataKeyEmail, config.MetadataKeyEmail)
	}
	if config.MetadataKeyAuthorization != DefaultMetadataKeyAuthorization {
		t.Errorf("expected MetadataKeyAuthorization %q, got %q", DefaultMetadataKeyAuthorization, config.MetadataKeyAuthorization)
	}

	// set values are left alone
	config = &Config{MetadataKeyEmail: "x-custom-email"}
	config.EnsureDefaults()
	if config.MetadataKeyEmail != "x-custom-email" {
		t.Errorf("expected custom key to survive, got %q", config.MetadataKeyEmail)
	}
}

func TestEmailFromContext_NoMetadata(t *testing.T) {
	if email := EmailFromContext(context.Background()); email != "" {
		t.Errorf("expected empty email, got %q", email)
	}
	if IsAuthenticated(context.Background()) {
		t.Error("expected IsAuthenticated to be false")
	}
}

func TestEmailFromContext_InstalledIdentity(t *testing.T) {
	ctx := withIdentity(context.Background(), "alice@example.com", "Alice")

	if email := EmailFromContext(ctx); email != "alice@example.com" {
		t.Errorf("expected email %q, got %q", "alice@example.com", email)
	}
	if name := NameFromContext(ctx); name != "Alice" {
		t.Errorf("expected name %q, got %q", "Alice", name)
	}
	if !IsAuthenticated(ctx) {
		t.Error("expected IsAuthenticated to be true")
	}
}

func TestEmailFromContext_MetadataFallback(t *testing.T) {
	md := metadata.Pairs(
		DefaultMetadataKeyEmail, "bob@example.com",
		DefaultMetadataKeyName, "Bob",
	)
	ctx := metadata.NewIncomingContext(context.Background(), md)

	// no identity installed by an interceptor; the incoming metadata set by
	// a trusted gateway is honored
	if email := EmailFromContext(ctx); email != "bob@example.com" {
		t.Errorf("expected email %q, got %q", "bob@example.com", email)
	}
	if name := NameFromContext(ctx); name != "Bob" {
		t.Errorf("expected name %q, got %q", "Bob", name)
	}
}

func TestTokenToOutgoingContext(t *testing.T) {
	ctx := TokenToOutgoingContext(context.Background(), "some-token")

	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("expected outgoing metadata")
	}
	values := md.Get(DefaultMetadataKeyAuthorization)
	if len(values) != 1 || values[0] != "Bearer some-token" {
		t.Errorf("expected authorization %q, got %v", "Bearer some-token", values)
	}
}

func TestEmailToOutgoingContext(t *testing.T) {
	ctx := EmailToOutgoingContext(context.Background(), "alice@example.com")

	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("expected outgoing metadata")
	}
	values := md.Get(DefaultMetadataKeyEmail)
	if len(values) != 1 || values[0] != "alice@example.com" {
		t.Errorf("expected email metadata %q, got %v", "alice@example.com", values)
	}
}
