// ABOUTME: Browser OAuth flow that mints a Google Ads refresh token
// ABOUTME: Prints the token for LEADSYNC_ADS_REFRESH_TOKEN; nothing is written to disk
package cli

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/harperreed/leadsync/ads"
	"github.com/harperreed/leadsync/config"
)

// AuthCommand runs the installed-app OAuth flow against localhost:8080.
func AuthCommand(args []string) error {
	fs := flag.NewFlagSet("auth", flag.ExitOnError)
	timeout := fs.Duration("timeout", 5*time.Minute, "How long to wait for the browser callback")
	noBrowser := fs.Bool("no-browser", false, "Print the URL without opening a browser")
	_ = fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Ads.ClientID == "" || cfg.Ads.ClientSecret == "" {
		return fmt.Errorf("set LEADSYNC_ADS_CLIENT_ID and LEADSYNC_ADS_CLIENT_SECRET before running auth")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	oauthConfig := ads.OAuthConfig(cfg.Ads.ClientID, cfg.Ads.ClientSecret)
	state := uuid.NewString()

	// Start local server for OAuth callback
	callbackChan := make(chan *oauth2.Token, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errChan <- fmt.Errorf("state mismatch in OAuth callback")
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			errChan <- fmt.Errorf("no authorization code received")
			return
		}

		token, err := oauthConfig.Exchange(ctx, code)
		if err != nil {
			errChan <- fmt.Errorf("failed to exchange code: %w", err)
			return
		}

		callbackChan <- token
		_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
	})

	server := &http.Server{Addr: ":8080", Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	defer func() { _ = server.Shutdown(context.Background()) }()

	// Force a consent prompt so Google always returns a refresh token.
	authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Println("Opening browser for Google Ads OAuth...")
	fmt.Printf("\nIf browser doesn't open, visit this URL:\n%s\n\n", authURL)

	if !*noBrowser {
		_ = openBrowser(authURL)
	}

	select {
	case token := <-callbackChan:
		if token.RefreshToken == "" {
			return fmt.Errorf("google did not return a refresh token; revoke the app's access and retry")
		}

		fmt.Printf("\n✓ Authenticated successfully\n\n")
		fmt.Println("Add this to your environment or .env:")
		fmt.Printf("  LEADSYNC_ADS_REFRESH_TOKEN=%s\n\n", token.RefreshToken)
		fmt.Println("Ready to sync! Run 'leadsync sync conversions' to upload enrollments.")
		return nil

	case err := <-errChan:
		return fmt.Errorf("OAuth flow failed: %w", err)

	case <-ctx.Done():
		return fmt.Errorf("OAuth flow timed out after %s", *timeout)
	}
}

// openBrowser attempts to open URL in default browser
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}

	return exec.Command(cmd, args...).Start()
}
