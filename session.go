package mailauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
)

// SessionState is the authentication state of a client session.
type SessionState string

const (
	// StateLoggedOut is the initial state: no email submitted, no identity.
	StateLoggedOut SessionState = "logged_out"

	// StateAwaitingCode means an email was submitted and a code was issued;
	// the client is expected to present it.
	StateAwaitingCode SessionState = "awaiting_code"

	// StateLoggedIn means a code or token authenticated successfully.
	StateLoggedIn SessionState = "logged_in"
)

// SessionContext is the client-held session: the bearer token plus the
// identity it proved. It is a cache of a subset of server state; the raw
// token is kept here and only its secured form server-side.
type SessionContext struct {
	Token    string    `json:"token,omitempty"`
	Identity *Identity `json:"identity,omitempty"`
}

// ContextStore persists a SessionContext across restarts, standing in for
// the client's local storage.
type ContextStore interface {
	// Load returns the stored context, or nil if none is stored.
	Load() (*SessionContext, error)

	// Save stores the context (upsert).
	Save(sc *SessionContext) error

	// Clear removes the stored context. Clearing an empty store is a no-op.
	Clear() error
}

// View is what the session controller exposes after each event: the current
// state, the identity when logged in, and a user-visible message.
type View struct {
	State    SessionState
	Identity *Identity
	Message  string
}

// SessionController is the UI-facing state machine tying login events to
// authentication state. Events are processed one at a time; a second event
// arriving while one is in flight waits for it to finish.
//
// It is a long-running reactive machine with no terminal state.
type SessionController struct {
	// Codes issues login codes on SubmitEmail. Required.
	Codes *CodeIssuer

	// Tokens mints the persistent bearer token after a code succeeds.
	// Required.
	Tokens *TokenIssuer

	// Auth validates presented codes and tokens. Required.
	Auth *Authenticator

	// Contexts persists the client session. Optional; without it the
	// session does not survive restarts.
	Contexts ContextStore

	mu       sync.Mutex
	state    SessionState
	identity *Identity
	token    string
}

// SubmitEmail requests a login code for email. On success the controller
// moves to AwaitingCode; an unknown email (or an issuance failure) leaves the
// current state untouched and only reports an error message.
func (sc *SessionController) SubmitEmail(ctx context.Context, email string) View {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	_, status, err := sc.Codes.Issue(ctx, email)
	if err == ErrUnknownEmail {
		// Issuance failed; whatever state we were in is untouched.
		return sc.view("Email not found in the database.")
	}
	if err != nil {
		slog.Error("failed to issue login code", "email", email, "err", err)
		return sc.view("Something went wrong. Please try again.")
	}

	sc.state = StateAwaitingCode
	if status == NotifyFailed {
		// The code was issued and is valid; only delivery failed.
		return sc.view("Failed to send email.")
	}
	return sc.view("A login code has been sent to your email. Please enter the code below or click the link in the email.")
}

// SubmitCode presents a login code. On success the controller mints a
// persistent bearer token, saves the session context and moves to LoggedIn;
// on failure it stays where it was with an error message.
func (sc *SessionController) SubmitCode(ctx context.Context, code string) View {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.loginWithCode(code)
}

// HandleURL reacts to a page navigation. If the URL carries a login_code
// query parameter the code is presented exactly as if typed in, from any
// state, so emailed magic links work with no further user action.
func (sc *SessionController) HandleURL(ctx context.Context, rawURL string) View {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	u, err := url.Parse(rawURL)
	if err != nil {
		return sc.view("")
	}
	code := u.Query().Get(LoginCodeParam)
	if code == "" {
		return sc.view("")
	}
	return sc.loginWithCode(code)
}

// Restore attempts silent re-authentication from a stored session context.
// Call it on startup. A missing, invalid or expired token falls back to
// LoggedOut with no user-visible error, clearing the stale context.
func (sc *SessionController) Restore() View {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.Contexts == nil {
		sc.toLoggedOut()
		return sc.view("")
	}

	stored, err := sc.Contexts.Load()
	if err != nil {
		slog.Warn("failed to load session context", "err", err)
		sc.toLoggedOut()
		return sc.view("")
	}
	if stored == nil || stored.Token == "" {
		sc.toLoggedOut()
		return sc.view("")
	}

	identity, err := sc.Auth.Authenticate(Credentials{BearerToken: stored.Token})
	if err != nil {
		// Silent failure: discard the stale context and start logged out.
		if err := sc.Contexts.Clear(); err != nil {
			slog.Warn("failed to clear session context", "err", err)
		}
		sc.toLoggedOut()
		return sc.view("")
	}

	sc.state = StateLoggedIn
	sc.identity = identity
	sc.token = stored.Token
	return sc.view("")
}

// Logout discards the client-held session. The server-side token record is
// not deleted; only the client's copy of the token is forgotten.
func (sc *SessionController) Logout() View {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.Contexts != nil {
		if err := sc.Contexts.Clear(); err != nil {
			slog.Warn("failed to clear session context", "err", err)
		}
	}
	sc.toLoggedOut()
	return sc.view("")
}

// View returns the current view without processing an event.
func (sc *SessionController) View() View {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.view("")
}

// Context returns a copy of the current client session context.
func (sc *SessionController) Context() SessionContext {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return SessionContext{Token: sc.token, Identity: sc.identity}
}

// loginWithCode is the shared code-presentation path. Caller must hold mu.
func (sc *SessionController) loginWithCode(code string) View {
	identity, err := sc.Auth.Authenticate(Credentials{LoginCode: code})
	if err != nil {
		return sc.view("Invalid or expired login code.")
	}

	token, err := sc.Tokens.Issue(identity.Email)
	if err != nil {
		slog.Error("failed to issue bearer token", "email", identity.Email, "err", err)
		return sc.view("Something went wrong. Please try again.")
	}

	sc.state = StateLoggedIn
	sc.identity = identity
	sc.token = token

	if sc.Contexts != nil {
		if err := sc.Contexts.Save(&SessionContext{Token: token, Identity: identity}); err != nil {
			slog.Warn("failed to save session context", "err", err)
		}
	}

	return sc.view(fmt.Sprintf("Welcome, %s!", identity.Name))
}

// toLoggedOut resets to the logged out state. Caller must hold mu.
func (sc *SessionController) toLoggedOut() {
	sc.state = StateLoggedOut
	sc.identity = nil
	sc.token = ""
}

// view builds the current View. Caller must hold mu.
func (sc *SessionController) view(message string) View {
	state := sc.state
	if state == "" {
		state = StateLoggedOut
	}
	return View{State: state, Identity: sc.identity, Message: message}
}
