package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/term"

	"csvdash/internal/config"
	"csvdash/internal/handlers/backup"
	"csvdash/internal/handlers/dashboard"
	"csvdash/internal/handlers/explorer"
	"csvdash/internal/services/datasets"
	"csvdash/internal/services/metrics"
	"csvdash/internal/services/storage"
	"csvdash/internal/templates"
	"csvdash/internal/version"
)

var (
	cfg          *config.Config
	store        *storage.Storage
	datasetStore *datasets.Store
	renderer     *templates.Renderer
)

func main() {
	showVersion := flag.Bool("version", false, "Print version information and exit")
	encrypt := flag.Bool("encrypt", false, "Encrypt the stored datasets and exit")
	decrypt := flag.Bool("decrypt", false, "Decrypt the stored datasets and exit")
	flag.Parse()

	info := version.Get()
	if *showVersion {
		fmt.Println(info.String())
		return
	}

	// Load configuration
	cfg = config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	log.Printf("Starting %s on %s", info.String(), cfg.ListenAddr)
	if warning := info.Check(); warning != "" {
		log.Print(warning)
	}
	log.Printf("Data directory: %s", cfg.DataDirectory)

	var err error
	store, err = storage.New(cfg.UploadsDirectory)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}

	switch {
	case *encrypt:
		if err := runEncrypt(); err != nil {
			log.Fatalf("Encryption failed: %v", err)
		}
		return
	case *decrypt:
		if err := runDecrypt(); err != nil {
			log.Fatalf("Decryption failed: %v", err)
		}
		return
	}

	if store.IsEncrypted() {
		if err := unlock(); err != nil {
			log.Fatalf("Failed to unlock storage: %v", err)
		}
		log.Println("Storage unlocked")
	}

	if err := SetupDependencies(cfg); err != nil {
		log.Fatalf("Failed to setup dependencies: %v", err)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.ListenAddr)
	log.Fatal(server.ListenAndServe())
}

// SetupDependencies builds the services on top of the opened storage and
// hands them to the handler packages
func SetupDependencies(c *config.Config) error {
	cfg = c
	if store == nil {
		var err error
		store, err = storage.New(cfg.UploadsDirectory)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
	}

	datasetStore = datasets.New(store, datasets.Options{
		MaxRows:   cfg.MaxRows,
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
	})

	var err error
	renderer, err = templates.New(cfg.TemplatesDirectory, cfg.Debug)
	if err != nil {
		log.Printf("Warning: could not load templates: %v", err)
		renderer = nil
	}

	explorer.Initialize(cfg, datasetStore, renderer)
	dashboard.Initialize(cfg, datasetStore, renderer, metrics.New())
	backup.Initialize(cfg, datasetStore)
	return nil
}

// SetupRouter creates the chi router with middleware and every route
func SetupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	fileServer := http.FileServer(http.Dir(cfg.StaticDirectory))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	explorer.RegisterRoutes(r)
	dashboard.RegisterRoutes(r)
	backup.RegisterRoutes(r)

	return r
}

// password returns the configured password, prompting on the terminal when
// none is set
func password(prompt string) (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("storage is encrypted: set CSVDASH_PASSWORD or run from a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(pw)), nil
}

func unlock() error {
	pw, err := password("Password: ")
	if err != nil {
		return err
	}
	return store.Unlock(pw)
}

func runEncrypt() error {
	pw, err := password("New password: ")
	if err != nil {
		return err
	}
	if cfg.Password == "" {
		confirm, err := password("Confirm password: ")
		if err != nil {
			return err
		}
		if confirm != pw {
			return errors.New("passwords do not match")
		}
	}
	if err := store.EnableEncryption(pw); err != nil {
		return err
	}
	log.Printf("Encrypted datasets in %s", store.BaseDir())
	return nil
}

func runDecrypt() error {
	pw, err := password("Password: ")
	if err != nil {
		return err
	}
	if err := store.DisableEncryption(pw); err != nil {
		return err
	}
	log.Printf("Decrypted datasets in %s", store.BaseDir())
	return nil
}
