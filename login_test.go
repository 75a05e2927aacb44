package mailauth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	ma "github.com/tanur/mailauth"
)

// setupCodeAuth wires a CodeAuth over a seeded temp store with a HandleUser
// that reports the identity as JSON.
func setupCodeAuth(t *testing.T) (*ma.CodeAuth, *recordingNotifier, string) {
	store, tmpDir := setupTestStore(t)
	codec := testCodec(t)
	notifier := &recordingNotifier{}

	codeAuth := &ma.CodeAuth{
		Codes:  &ma.CodeIssuer{Store: store, Codec: codec, Notifier: notifier},
		Tokens: &ma.TokenIssuer{Store: store, Codec: codec},
		Auth:   &ma.Authenticator{Store: store, Codec: codec},
		HandleUser: func(identity *ma.Identity, token string, w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"email":   identity.Email,
				"name":    identity.Name,
				"token":   token,
			})
		},
	}
	return codeAuth, notifier, tmpDir
}

func postForm(handler http.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func TestHandleRequestCode(t *testing.T) {
	codeAuth, notifier, tmpDir := setupCodeAuth(t)
	defer cleanup(t, tmpDir)

	tests := []struct {
		name           string
		email          string
		expectedStatus int
		checkError     string
	}{
		{
			name:           "known email",
			email:          "alice@example.com",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown email",
			email:          "nobody@example.com",
			expectedStatus: http.StatusBadRequest,
			checkError:     "unknown_email",
		},
		{
			name:           "missing email",
			email:          "",
			expectedStatus: http.StatusBadRequest,
			checkError:     "missing_field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			if tt.email != "" {
				form.Set("email", tt.email)
			}
			rr := postForm(codeAuth.HandleRequestCode, "/auth/request-code", form)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.expectedStatus, rr.Code, rr.Body.String())
			}
			if tt.checkError != "" {
				var authErr ma.AuthError
				if err := json.NewDecoder(rr.Body).Decode(&authErr); err != nil {
					t.Fatalf("Failed to decode error body: %v", err)
				}
				if authErr.Code != tt.checkError {
					t.Errorf("Expected error code %q, got %q", tt.checkError, authErr.Code)
				}
			}
		})
	}

	if len(notifier.Codes) != 1 {
		t.Errorf("Expected exactly one delivered code, got %d", len(notifier.Codes))
	}
}

func TestHandleRequestCodeJSONBody(t *testing.T) {
	codeAuth, notifier, tmpDir := setupCodeAuth(t)
	defer cleanup(t, tmpDir)

	req := httptest.NewRequest(http.MethodPost, "/auth/request-code", strings.NewReader(`{"email": "alice@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	codeAuth.HandleRequestCode(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["status"] != "sent" {
		t.Errorf("Expected status sent, got %v", resp["status"])
	}
	if len(notifier.Codes) != 1 {
		t.Errorf("Expected one delivered code, got %d", len(notifier.Codes))
	}
}

func TestHandleRequestCodeNotifyFailure(t *testing.T) {
	codeAuth, notifier, tmpDir := setupCodeAuth(t)
	defer cleanup(t, tmpDir)

	notifier.Fail = true
	rr := postForm(codeAuth.HandleRequestCode, "/auth/request-code", url.Values{"email": {"alice@example.com"}})

	// delivery failure is not a request failure: the code was issued
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["status"] != "failed" {
		t.Errorf("Expected status failed, got %v", resp["status"])
	}
	if resp["message"] != "Failed to send email." {
		t.Errorf("Unexpected message %v", resp["message"])
	}
}

func TestHandleLogin(t *testing.T) {
	codeAuth, notifier, tmpDir := setupCodeAuth(t)
	defer cleanup(t, tmpDir)

	postForm(codeAuth.HandleRequestCode, "/auth/request-code", url.Values{"email": {"alice@example.com"}})
	code := notifier.LastCode(t)

	tests := []struct {
		name           string
		code           string
		expectedStatus int
		checkError     string
	}{
		{
			name:           "missing code",
			code:           "",
			expectedStatus: http.StatusBadRequest,
			checkError:     "missing_field",
		},
		{
			name:           "wrong code",
			code:           "0000000",
			expectedStatus: http.StatusUnauthorized,
			checkError:     "invalid_code",
		},
		{
			name:           "valid code",
			code:           code,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "replayed code",
			code:           code,
			expectedStatus: http.StatusUnauthorized,
			checkError:     "invalid_code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			if tt.code != "" {
				form.Set("code", tt.code)
			}
			rr := postForm(codeAuth.HandleLogin, "/auth/login", form)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.expectedStatus, rr.Code, rr.Body.String())
			}
			if tt.checkError != "" {
				var authErr ma.AuthError
				if err := json.NewDecoder(rr.Body).Decode(&authErr); err != nil {
					t.Fatalf("Failed to decode error body: %v", err)
				}
				if authErr.Code != tt.checkError {
					t.Errorf("Expected error code %q, got %q", tt.checkError, authErr.Code)
				}
			} else {
				var resp map[string]any
				if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
					t.Fatalf("Failed to decode response: %v", err)
				}
				if resp["email"] != "alice@example.com" {
					t.Errorf("Expected alice, got %v", resp["email"])
				}
				if token, _ := resp["token"].(string); token == "" {
					t.Error("Expected a bearer token in the response")
				}
			}
		})
	}
}

func TestMagicLinkMiddleware(t *testing.T) {
	codeAuth, notifier, tmpDir := setupCodeAuth(t)
	defer cleanup(t, tmpDir)

	postForm(codeAuth.HandleRequestCode, "/auth/request-code", url.Values{"email": {"alice@example.com"}})
	code := notifier.LastCode(t)

	pageServed := false
	page := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pageServed = true
		w.WriteHeader(http.StatusOK)
	})
	handler := codeAuth.MagicLink(page)

	// plain navigation passes straight through
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if !pageServed {
		t.Error("Expected request without login_code to reach the page")
	}

	// navigation with the emailed link logs in
	pageServed = false
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?login_code="+code, nil))
	if pageServed {
		t.Error("Login navigation should be intercepted")
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected magic link login to succeed, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["email"] != "alice@example.com" {
		t.Errorf("Expected alice, got %v", resp["email"])
	}
}
