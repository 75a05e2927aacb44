package mailauth

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// Session variable names used by MailAuth.
const (
	SessionVarToken = "sessionToken"
	SessionVarEmail = "loggedInEmail"
	SessionVarName  = "loggedInName"
)

// MailAuth bundles the login handlers, cookie/session management and auth
// middleware into one mountable unit for browser-facing apps. The client's
// SessionContext (bearer token + identity) lives in the scs-managed session,
// which persists across page loads and is cleared on logout; the server-side
// token record is never deleted by logout.
type MailAuth struct {
	router  *mux.Router
	Session *scs.SessionManager

	Middleware Middleware

	// Optional name that can be used as a prefix for all required vars
	AppName string

	// CodeAuth powers the login endpoints. Its HandleUser is installed by
	// Handler() if unset.
	CodeAuth *CodeAuth

	// Auth re-validates bearer tokens when restoring a session.
	Auth *Authenticator

	// All the domains where the auth cookies will be set on a login success or logout
	CookieDomains []string

	// JWT related fields
	JwtIssuer    string
	JWTSecretKey string

	// Name of the cookie carrying the signed identity assertion
	AuthTokenCookieName string

	// How long is a session cookie valid for.  Defaults to 1 day
	SessionTimeoutInSeconds int
}

func New(appName string) *MailAuth {
	return (&MailAuth{AppName: appName}).EnsureDefaults()
}

func (a *MailAuth) EnsureDefaults() *MailAuth {
	// ensure some defaults
	if a.AppName == "" {
		a.AppName = "MailAuth"
	}
	if a.SessionTimeoutInSeconds <= 0 {
		a.SessionTimeoutInSeconds = 86400
	}
	if a.JwtIssuer == "" {
		a.JwtIssuer = fmt.Sprintf("%s-Issuer", a.AppName)
	}
	if a.AuthTokenCookieName == "" {
		a.AuthTokenCookieName = fmt.Sprintf("%sAuthToken", a.AppName)
	}
	if a.JWTSecretKey == "" {
		a.JWTSecretKey = strings.TrimSpace(os.Getenv("MAILAUTH_JWT_SECRET_KEY"))
	}
	if a.Session == nil {
		a.Session = scs.New()
		a.Session.Lifetime = time.Duration(a.SessionTimeoutInSeconds) * time.Second
	}
	if a.Middleware.AuthTokenCookieName == "" {
		a.Middleware.AuthTokenCookieName = a.AuthTokenCookieName
	}
	if a.Middleware.SessionGetter == nil {
		a.Middleware.SessionGetter = func(r *http.Request, param string) any {
			return a.Session.GetString(r.Context(), param)
		}
	}
	if a.Middleware.VerifyToken == nil {
		a.Middleware.VerifyToken = a.verifyToken
	}
	return a
}

// Handler returns the mountable auth handler. Routes:
//
//	POST /request-code  - submit an email, get a login code sent
//	POST /login         - submit a login code, establish the session
//	     /logout        - discard the client session
//
// The returned handler includes the scs session middleware; wrap your page
// routes with it too (via Session.LoadAndSave) so the session is visible to
// RestoreSession and the auth middleware.
func (a *MailAuth) Handler() http.Handler {
	a.EnsureDefaults()
	return a.Session.LoadAndSave(a.setupRoutes().router)
}

func (a *MailAuth) setupRoutes() *MailAuth {
	if a.router == nil {
		if a.CodeAuth.HandleUser == nil {
			a.CodeAuth.HandleUser = a.SaveSessionAndRedirect
		}
		a.router = mux.NewRouter()
		a.router.HandleFunc("/request-code", a.CodeAuth.HandleRequestCode).Methods("POST")
		a.router.Handle("/login", a.CodeAuth).Methods("POST")
		a.router.HandleFunc("/logout", a.onLogout)
	}
	return a
}

// RestoreSession wraps next so a stored session token silently re-validates
// on each request. A token that no longer authenticates (expired, revoked)
// clears the session without any user-visible error.
func (a *MailAuth) RestoreSession(next http.Handler) http.Handler {
	a.EnsureDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := a.Session.GetString(r.Context(), SessionVarToken)
		if token != "" && a.Auth != nil {
			if _, err := a.Auth.Authenticate(Credentials{BearerToken: token}); err != nil {
				slog.Info("stored session token no longer valid, clearing session")
				a.setLoggedInUser(nil, "", w, r)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// LoggedInIdentity returns the identity held by the current session, or nil.
func (a *MailAuth) LoggedInIdentity(r *http.Request) *Identity {
	email := a.Session.GetString(r.Context(), SessionVarEmail)
	if email == "" {
		return nil
	}
	return &Identity{
		Email: email,
		Name:  a.Session.GetString(r.Context(), SessionVarName),
	}
}

func (a *MailAuth) onLogout(w http.ResponseWriter, r *http.Request) {
	log.Println("Logging out user...")
	a.setLoggedInUser(nil, "", w, r)
	toUrl := r.URL.Query()["to"]
	if len(toUrl) == 0 || toUrl[0] == "" {
		fmt.Fprintf(w, "Logged Out")
	} else {
		http.Redirect(w, r, toUrl[0], http.StatusFound)
	}
}

/**
 * Called by CodeAuth with the identity and bearer token after a successful
 * login. Stores the session context and sends the user back to where they
 * were headed.
 */
func (a *MailAuth) SaveSessionAndRedirect(identity *Identity, token string, w http.ResponseWriter, r *http.Request) {
	a.setLoggedInUser(identity, token, w, r)

	callbackURL := "/"
	if cookie, _ := r.Cookie("authCallbackURL"); cookie != nil && cookie.Value != "" {
		callbackURL = cookie.Value
		// delete it too so it wont be used for subsequent redirects
		http.SetCookie(w, &http.Cookie{
			Name:   "authCallbackURL",
			Value:  "",
			Path:   "/",
			MaxAge: -1, Expires: time.Now(),
		})
	}
	log.Println("Redirecting to CallbackURL: ", callbackURL)
	http.Redirect(w, r, callbackURL, http.StatusFound)
}

// Generic helper method to set the session context and auth cookies on the
// cookie domains we care about. Pass a nil identity to "unset/logout" the
// logged in user; only the client-held state is discarded, stored token
// records stay in the user store.
func (a *MailAuth) setLoggedInUser(identity *Identity, token string, w http.ResponseWriter, r *http.Request) {
	a.EnsureDefaults()
	domains := a.CookieDomains
	if slices.Index(a.CookieDomains, "") < 0 { // default domain
		domains = append(domains, "")
	}
	for _, cookieDomain := range domains {
		if identity != nil {
			a.Session.Put(r.Context(), SessionVarToken, token)
			a.Session.Put(r.Context(), SessionVarEmail, identity.Email)
			a.Session.Put(r.Context(), SessionVarName, identity.Name)

			jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub":  identity.Email,
				"name": identity.Name,
				"iss":  a.JwtIssuer,
				"exp":  time.Now().Add(time.Hour).Unix(),
				"iat":  time.Now().Unix(),
			})
			tokenString, err := jwtToken.SignedString([]byte(a.JWTSecretKey))
			if err != nil {
				slog.Info("error signing token", "err", err)
			}

			http.SetCookie(w, &http.Cookie{
				Name:    a.AuthTokenCookieName,
				Value:   tokenString,
				Domain:  cookieDomain,
				Path:    "/",
				Expires: time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)), MaxAge: a.SessionTimeoutInSeconds,
			})
		} else {
			// clear the session and cookie values
			if err := a.Session.Clear(r.Context()); err != nil {
				slog.Warn("error clearing session ", "err", err)
			}
			http.SetCookie(w, &http.Cookie{
				Name:    a.AuthTokenCookieName,
				Domain:  cookieDomain,
				Path:    "/",
				MaxAge:  -1,
				Expires: time.Now(),
			})
		}
	}
}

// verifyToken is the default Middleware.VerifyToken: bearer session tokens
// validate against the user store, anything else is tried as a signed JWT.
func (a *MailAuth) verifyToken(tokenString string) (loggedInEmail string, token any, err error) {
	if a.Auth != nil {
		if identity, err := a.Auth.Authenticate(Credentials{BearerToken: tokenString}); err == nil {
			return identity.Email, identity, nil
		}
	}
	return a.verifyJWT(tokenString)
}

func (a *MailAuth) verifyJWT(tokenString string) (loggedInEmail string, t any, err error) {
	// Parse the token with the secret key
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(a.JWTSecretKey), nil
	})

	// Check for verification errors
	if err != nil {
		return "", nil, err
	}

	// Check if the token is valid
	if !token.Valid {
		return "", nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", nil, fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if sub == "" {
		return "", nil, fmt.Errorf("subject not found")
	} else if err != nil {
		return "", nil, err
	}
	return sub, token, nil
}
