// A small host app demonstrating the email login-code flow end to end.
//
// Run with a config.yaml (or MAILAUTH_* env vars) providing at minimum
// codec.passphrase. Users must already exist in the store; add one with:
//
//	mailauth-demo -adduser alice@example.com -name "Alice"
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/tanur/mailauth"
	"github.com/tanur/mailauth/notifiers/ses"
	"github.com/tanur/mailauth/stores"
)

func main() {
	configName := flag.String("config", "config", "config file name (without extension)")
	addUser := flag.String("adduser", "", "add a user with the given email and exit")
	userName := flag.String("name", "", "display name for -adduser")
	flag.Parse()

	v, err := LoadConfig(*configName)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg, err := ParseConfig(v)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	codec, err := mailauth.NewHMACCodecFromPassphrase(cfg.Codec.Passphrase, cfg.Codec.Salt)
	if err != nil {
		log.Fatalf("Failed to create secret codec: %v", err)
	}

	userStore := stores.NewFSUserStore(cfg.Storage.Path)
	if err := userStore.Validate(); err != nil {
		log.Fatalf("User store failed validation, refusing to start: %v", err)
	}

	if *addUser != "" {
		rec := &mailauth.UserRecord{Email: mailauth.NormalizeEmail(*addUser), Name: *userName}
		if err := userStore.Save(rec); err != nil {
			log.Fatalf("Failed to add user: %v", err)
		}
		fmt.Printf("Added user %s\n", rec.Email)
		return
	}

	var notifier mailauth.Notifier
	switch cfg.Email.Mode {
	case "ses":
		notifier, err = ses.New(context.Background(), cfg.Email.SESRegion, cfg.Email.SESSender, cfg.Server.BaseURL)
		if err != nil {
			log.Fatalf("Failed to create SES notifier: %v", err)
		}
	default:
		notifier = &mailauth.ConsoleNotifier{}
	}

	codes := &mailauth.CodeIssuer{Store: userStore, Codec: codec, Notifier: notifier}
	tokens := &mailauth.TokenIssuer{Store: userStore, Codec: codec}
	auth := &mailauth.Authenticator{Store: userStore, Codec: codec}

	ma := mailauth.New(cfg.Server.SiteName)
	ma.CodeAuth = &mailauth.CodeAuth{Codes: codes, Tokens: tokens, Auth: auth}
	ma.Auth = auth
	ma.JWTSecretKey = cfg.Sessions.JWTSecretKey
	ma.SessionTimeoutInSeconds = cfg.Sessions.TimeoutInSeconds

	mux := http.NewServeMux()
	mux.Handle("/auth/", http.StripPrefix("/auth", ma.Handler()))

	index := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := ma.LoggedInIdentity(r)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if identity != nil {
			fmt.Fprintf(w, indexLoggedIn, identity.Name)
		} else {
			fmt.Fprint(w, indexLoggedOut)
		}
	})
	// magic-link clicks land on the index page with ?login_code=...
	mux.Handle("/", ma.Session.LoadAndSave(ma.RestoreSession(ma.CodeAuth.MagicLink(index))))

	slog.Info("Starting demo server", "addr", cfg.Server.Addr, "baseURL", cfg.Server.BaseURL)
	if err := http.ListenAndServe(cfg.Server.Addr, mux); err != nil {
		slog.Error("Server exited", "err", err)
		os.Exit(1)
	}
}

const indexLoggedOut = `<html><body>
<h1>Welcome, Guest!</h1>
<form method="POST" action="/auth/request-code">
  <input type="email" name="email" placeholder="Enter your email" required>
  <button type="submit">Send Login Code</button>
</form>
<form method="POST" action="/auth/login">
  <input type="text" name="code" placeholder="Enter your code">
  <button type="submit">Submit Code</button>
</form>
</body></html>`

const indexLoggedIn = `<html><body>
<h1>Welcome, %s!</h1>
<form method="POST" action="/auth/logout">
  <button type="submit">Log Out</button>
</form>
</body></html>`
