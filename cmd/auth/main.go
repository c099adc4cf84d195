// Package main provides the authentication helper. It opens the remote
// service's login page in a browser, receives the token on a local
// callback, and stores it where the daemon will find it.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/yskmt/nagara/internal/infra/browser"
	"github.com/yskmt/nagara/internal/infra/storage"
)

var (
	app         = kingpin.New("nagara-auth", "Authentication tool for nagara")
	apiBaseURL  = app.Flag("api", "Remote API base URL").Envar("NAGARA_API_BASE_URL").Required().String()
	storagePath = app.Flag("storage", "Path to the daemon's database").Envar("NAGARA_STORAGE_PATH").Default("nagara.db").String()
	port        = app.Flag("port", "Callback server port").Default("8845").Int()
	noBrowser   = app.Flag("no-browser", "Print the login URL instead of opening a browser").Bool()
)

type callbackResult struct {
	token string
	errc  string
}

func main() {
	_ = godotenv.Load()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	ch := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		res := callbackResult{
			token: r.URL.Query().Get("token"),
			errc:  r.URL.Query().Get("error"),
		}
		if res.token == "" && res.errc == "" {
			res.errc = "no_token"
		}
		if res.errc != "" {
			http.Error(w, "Authentication failed: "+res.errc, http.StatusForbidden)
		} else {
			fmt.Fprintln(w, "Authentication complete. You can close this window and return to the terminal.")
		}
		ch <- res
	})

	server := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", *port), Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start callback server: %v", err)
		}
	}()

	loginURL := fmt.Sprintf("%s/auth/login", *apiBaseURL)
	if *noBrowser {
		fmt.Println("Please visit the following URL to sign in:")
		fmt.Println("")
		fmt.Println(loginURL)
	} else {
		fmt.Println("Opening browser for sign-in...")
		if err := browser.Open(loginURL); err != nil {
			fmt.Println("Could not open browser; please visit:")
			fmt.Println(loginURL)
		}
	}
	fmt.Println("")
	fmt.Println("Waiting for authentication...")

	res := <-ch

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown callback server: %v", err)
	}

	switch res.errc {
	case "":
	case "no_code":
		log.Fatal("Authentication failed: the provider returned no authorization code")
	case "no_token":
		log.Fatal("Authentication failed: no token was issued")
	default:
		log.Fatalf("Authentication failed: %s", res.errc)
	}

	store, err := storage.Open(*storagePath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	if err := store.SaveToken(res.token); err != nil {
		log.Fatalf("Failed to save token: %v", err)
	}

	fmt.Println("")
	fmt.Println("=== Authentication Successful ===")
	fmt.Printf("Token stored in %s\n", *storagePath)
	fmt.Println("Restart the daemon (or let it pick the token up on its next sync).")
}
