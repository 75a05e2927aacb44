package mailauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type userParamNameKey string

// Middleware extracts the logged in user from requests, looking at the scs
// session first and falling back to bearer tokens in headers or cookies.
type Middleware struct {
	AuthTokenHeaderName string
	AuthTokenCookieName string
	UserParamName       string
	CallbackURLParam    string
	SessionGetter       func(r *http.Request, param string) any
	GetRedirURL         func(r *http.Request) string
	VerifyToken         func(tokenString string) (loggedInEmail string, token any, err error)
}

/**
 * Ensures that config values have reasonable defaults.
 */
func (a *Middleware) EnsureReasonableDefaults() {
	if a.UserParamName == "" {
		a.UserParamName = SessionVarEmail
	}
	if a.CallbackURLParam == "" {
		a.CallbackURLParam = "callbackURL"
	}
	if a.AuthTokenHeaderName == "" {
		a.AuthTokenHeaderName = "Authorization"
	}
}

// GetLoggedInEmail returns the email of the logged in user for the current
// request, checking the request context, the session, and finally any auth
// tokens in the header or cookies.
func (a *Middleware) GetLoggedInEmail(r *http.Request) string {
	v := r.Context().Value(userParamNameKey(a.UserParamName))
	if v != nil {
		if email := v.(string); email != "" {
			return email
		}
	}

	if email := a.getSessionEmail(r); email != "" {
		return email
	}

	if a.VerifyToken == nil {
		slog.Warn("No auth token verifier found.  Please set one")
		return ""
	}

	// Otherwise check the Auth header and cookies
	authTokens := r.Header.Values(a.AuthTokenHeaderName)
	for _, cookie := range r.CookiesNamed(a.AuthTokenCookieName) {
		if len(cookie.Value) > 0 {
			// see if a cookie was sent instead - as we may be making non-api calls
			authTokens = append(authTokens, cookie.Value)
		}
	}

	for _, authToken := range authTokens {
		authToken = strings.TrimPrefix(authToken, "Bearer ")
		email, _, err := a.VerifyToken(authToken)
		if err == nil && email != "" {
			return email
		} else if err != nil {
			slog.Warn("Error verifying token", "error", err)
		}
	}

	return ""
}

/**
 * Fetches the user from the request and makes the logged in email available
 * to other handlers.
 *
 * Note this does not perform any redirects if a valid user does not exist.
 * To also enforce a user exists, use the EnsureUser handler which both
 * extracts the user and ensures that user is logged in.
 */
func (a *Middleware) ExtractUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			email := a.GetLoggedInEmail(r)
			next.ServeHTTP(w, a.setLoggedInEmail(email, r))
		},
	)
}

func (a *Middleware) EnsureUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			email := a.GetLoggedInEmail(r)
			if email == "" {
				// Redirect to a login if user not logged in
				redirUrl := ""
				if a.GetRedirURL != nil {
					redirUrl = a.GetRedirURL(r)
				}
				if redirUrl != "" {
					originalUrl := r.URL.Path
					encodedUrl := strings.Replace(url.QueryEscape(originalUrl), "+", "%20", -1)
					fullRedirUrl := fmt.Sprintf("%s?%s=%s", redirUrl, a.CallbackURLParam, encodedUrl)
					http.Redirect(w, r, fullRedirUrl, http.StatusFound)
				} else {
					// otherwise a 401
					http.Error(w, "Login Required", http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, a.setLoggedInEmail(email, r))
		},
	)
}

// Gets the logged in email from the session first
func (a *Middleware) getSessionEmail(r *http.Request) string {
	if a.SessionGetter == nil {
		return ""
	}
	out := a.SessionGetter(r, a.UserParamName)
	if out == nil {
		return ""
	}
	email, _ := out.(string)
	return email
}

// Set the logged in email into the request's variable set
// This will make it available to all other handlers downstream
func (a *Middleware) setLoggedInEmail(email string, r *http.Request) *http.Request {
	contextWithUser := context.WithValue(r.Context(), userParamNameKey(a.UserParamName), email)
	return r.WithContext(contextWithUser)
}
