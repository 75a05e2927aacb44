package mailauth

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// HandleUserFunc is called after successful authentication with the resolved
// identity and the freshly minted (or re-validated) bearer token.
type HandleUserFunc func(identity *Identity, token string, w http.ResponseWriter, r *http.Request)

// AuthErrorHandler handles an authentication error. Return true if the error
// was handled (e.g. a redirect was issued); false falls back to a JSON body.
type AuthErrorHandler func(err *AuthError, w http.ResponseWriter, r *http.Request) bool

// CodeAuth exposes the passwordless login flow over HTTP.
//
// Mount HandleRequestCode where the email form posts, and the CodeAuth
// itself (or HandleLogin) where the code form posts. Wrap page handlers with
// MagicLink so emailed links carrying ?login_code=... log in on navigation.
type CodeAuth struct {
	// Codes issues login codes for submitted emails. Required.
	Codes *CodeIssuer

	// Tokens mints the persistent bearer token after a code succeeds.
	// Required.
	Tokens *TokenIssuer

	// Auth validates presented codes and tokens. Required.
	Auth *Authenticator

	// Handler called after successful authentication. Required.
	HandleUser HandleUserFunc

	// Form field names
	EmailField string
	CodeField  string

	// OnLoginError is called when login fails. If nil, returns JSON error.
	OnLoginError AuthErrorHandler
}

// HandleRequestCode handles the email submission: issues a login code and
// reports whether delivery worked. The code stays valid even when delivery
// fails, so the response distinguishes the two.
func (a *CodeAuth) HandleRequestCode(w http.ResponseWriter, r *http.Request) {
	if a.Codes == nil {
		http.Error(w, `{"error": "Login not configured"}`, http.StatusInternalServerError)
		return
	}

	email, err := a.parseField(r, a.getEmailField())
	if err != nil || email == "" {
		a.handleLoginError(NewAuthError(ErrCodeMissingField, "Email required", "email"), w, r)
		return
	}

	_, status, err := a.Codes.Issue(r.Context(), email)
	if err == ErrUnknownEmail {
		a.handleLoginError(NewAuthError(ErrCodeUnknownEmail, "Email not found in the database.", "email"), w, r)
		return
	}
	if err != nil {
		log.Println("error issuing login code: ", err)
		a.handleLoginError(NewAuthError(ErrCodeServerError, "Failed to issue login code", ""), w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if status == NotifyFailed {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"status":  string(status),
			"message": "Failed to send email.",
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"status":  string(status),
		"message": "A login code has been sent to your email. Please enter the code below or click the link in the email.",
	})
}

// ServeHTTP handles login requests: a presented code is verified, consumed
// and exchanged for a bearer token handed to HandleUser.
func (a *CodeAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.Auth == nil || a.Tokens == nil {
		http.Error(w, `{"error": "Login not configured"}`, http.StatusInternalServerError)
		return
	}

	code, err := a.parseField(r, a.getCodeField())
	if err != nil || code == "" {
		a.handleLoginError(NewAuthError(ErrCodeMissingField, "Login code required", "code"), w, r)
		return
	}

	a.loginWithCode(code, w, r)
}

// HandleLogin is ServeHTTP under a method name, for explicit route tables.
func (a *CodeAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	a.ServeHTTP(w, r)
}

// MagicLink wraps next so a login_code query parameter on any request logs
// the user in before the page renders, with no further user action. Requests
// without the parameter pass straight through.
func (a *CodeAuth) MagicLink(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get(LoginCodeParam)
		if code == "" {
			next.ServeHTTP(w, r)
			return
		}
		a.loginWithCode(code, w, r)
	})
}

// loginWithCode verifies and consumes a code, mints the persistent token and
// hands both to HandleUser.
func (a *CodeAuth) loginWithCode(code string, w http.ResponseWriter, r *http.Request) {
	identity, err := a.Auth.Authenticate(Credentials{LoginCode: code})
	if err != nil {
		a.handleLoginError(NewAuthError(ErrCodeInvalidCode, "Invalid or expired login code.", "code"), w, r)
		return
	}

	token, err := a.Tokens.Issue(identity.Email)
	if err != nil {
		log.Println("error issuing bearer token: ", err)
		a.handleLoginError(NewAuthError(ErrCodeServerError, "Failed to create session", ""), w, r)
		return
	}

	a.HandleUser(identity, token, w, r)
}

// parseField extracts a single field from a form or JSON body.
func (a *CodeAuth) parseField(r *http.Request, field string) (string, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/json") {
		var data map[string]any
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return "", fmt.Errorf("invalid post body")
		}
		if v, ok := data[field].(string); ok {
			return v, nil
		}
		return "", nil
	}

	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("error parsing form")
	}
	return r.FormValue(field), nil
}

func (a *CodeAuth) getEmailField() string {
	if a.EmailField != "" {
		return a.EmailField
	}
	return "email"
}

func (a *CodeAuth) getCodeField() string {
	if a.CodeField != "" {
		return a.CodeField
	}
	return "code"
}

// handleLoginError handles login errors using the configured handler or default JSON
func (a *CodeAuth) handleLoginError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnLoginError != nil && a.OnLoginError(err, w, r) {
		return
	}
	// Default: return JSON error
	w.Header().Set("Content-Type", "application/json")
	statusCode := http.StatusUnauthorized
	if err.Code == ErrCodeMissingField || err.Code == ErrCodeUnknownEmail {
		statusCode = http.StatusBadRequest
	}
	if err.Code == ErrCodeServerError {
		statusCode = http.StatusInternalServerError
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(err)
}
