// Package mailauth provides passwordless, email-code based authentication
// for Go web applications.
//
// The flow is the following:
//
//  1. A user wants to log in and provides their email.
//  2. CodeIssuer mints a one-time 6-digit login code, stores its secured
//     form with a 5-minute expiration and hands the plaintext to a Notifier
//     for out-of-band delivery (email, console, AWS SES).
//  3. The user presents the code (typed in, or via the emailed magic link
//     carrying it in the login_code query parameter).
//  4. Authenticator validates and consumes the code; TokenIssuer then mints
//     a long-lived bearer token (1 year) so the session survives reloads.
//  5. On later visits the stored token re-authenticates silently; logout
//     discards only the client's copy of the token.
//
// # Architecture
//
// UserRecord: an account keyed by email, owning its outstanding login codes
// and session tokens. UserStore implementations persist records with atomic
// per-key read-modify-write.
//
// SecretCodec: the deterministic one-way transform securing codes and tokens
// for storage. Plaintext secrets are never stored and never logged.
//
// SessionController: the UI-facing state machine reacting to "email
// submitted", "code presented", "page navigated", "restore" and "logout"
// events, producing the current view and the client-held session context.
//
// # Basic Usage
//
// Set up a store, a codec and the issuers:
//
//	store := stores.NewFSUserStore(storagePath)
//	codec, _ := mailauth.NewHMACCodec(key)
//	codes := &mailauth.CodeIssuer{Store: store, Codec: codec, Notifier: &mailauth.ConsoleNotifier{}}
//	tokens := &mailauth.TokenIssuer{Store: store, Codec: codec}
//	auth := &mailauth.Authenticator{Store: store, Codec: codec}
//
// Drive them through the state machine:
//
//	ctrl := &mailauth.SessionController{Codes: codes, Tokens: tokens, Auth: auth,
//		Contexts: stores.NewFSContextStore(storagePath)}
//	ctrl.Restore()
//	ctrl.SubmitEmail(ctx, "ann@example.com")
//	ctrl.SubmitCode(ctx, "482913")
//
// or mount the HTTP surface:
//
//	codeAuth := &mailauth.CodeAuth{Codes: codes, Tokens: tokens, Auth: auth,
//		HandleUser: func(identity *mailauth.Identity, token string, w http.ResponseWriter, r *http.Request) {
//			// Create session cookies and respond
//		}}
//	mux.Handle("/auth/request-code", http.HandlerFunc(codeAuth.HandleRequestCode))
//	mux.Handle("/auth/login", codeAuth)
//
// # Store Implementations
//
// The stores package provides a file-based user store suitable for
// development and small applications; stores/gorm backs the same interface
// with any database GORM supports.
//
// # Security
//
// Codes and tokens are stored as HMAC-SHA256 values under a server-side key
// and compared in constant time. Login codes are 6 uniform decimal digits
// valid for 5 minutes and deleted on first use. Bearer tokens carry at least
// 128 bits of entropy and are shown in plaintext exactly once, at issuance.
package mailauth
