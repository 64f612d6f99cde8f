package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"classboard/internal/app"
	"classboard/internal/config"
	"classboard/internal/evaluator"
	"classboard/internal/googleauth"
	"classboard/internal/meet"
	"classboard/internal/server"
	"classboard/internal/usertoken"
	"classboard/internal/util"
	"classboard/pkg/ai"
	"classboard/pkg/storage"
	"classboard/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	tokenTTL, err := config.ParseTokenTTL(cfg.TokenTTL)
	if err != nil {
		log.Fatalf("failed to parse token TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	blobs, uploadsDir, err := buildBlobStore(cfg)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}

	var (
		generator  ai.TextGenerator
		summarizer ai.TextGenerator
		audio      ai.AudioSummarizer
	)
	if cfg.GeminiAPIKey != "" {
		client, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
		if err != nil {
			log.Fatalf("failed to init gemini client: %v", err)
		}
		gemini := ai.NewGeminiGenerator(client, cfg.GeminiModel)
		generator = gemini
		summarizer = gemini
		audio = gemini
	} else {
		slog.Warn("no gemini api key configured, ai grading and summaries run on local fallbacks")
	}

	var google *googleauth.Verifier
	if cfg.GoogleClientID != "" {
		google, err = googleauth.NewVerifier(cfg.GoogleClientID)
		if err != nil {
			log.Fatalf("failed to init google verifier: %v", err)
		}
	}

	tokens, err := usertoken.NewManager(usertoken.Config{
		Secret: cfg.JWTSecret,
		TTL:    tokenTTL,
	})
	if err != nil {
		log.Fatalf("failed to init token manager: %v", err)
	}

	captions := meet.NewCaptionStore()
	hub := meet.NewHub(captions)

	appCore := app.New(app.Options{
		Store:           db,
		Blobs:           blobs,
		Evaluator:       evaluator.New(generator),
		Summarizer:      summarizer,
		Audio:           audio,
		Hub:             hub,
		Captions:        captions,
		Google:          google,
		FrontendBaseURL: cfg.FrontendBaseURL,
		ContactEmail:    cfg.ContactEmail,
	})

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		Tokens:                     tokens,
		Hub:                        hub,
		UploadsDir:                 uploadsDir,
		MaxUploadBytes:             cfg.MaxUploadBytes,
		AllowedExtensions:          cfg.AllowedExtensions,
		AIConfigured:               generator != nil,
		AllowedOrigin:              cfg.FrontendBaseURL,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		TrustedProxyCIDRs:          cfg.TrustedProxyCIDRs,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	// No global read/write timeouts: /ws connections are long-lived.
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	slog.Info("server listening", "addr", addr, "storage", cfg.StorageBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

// buildBlobStore picks the configured upload backend. The local backend also
// reports its directory so the server can serve /uploads/ statically.
func buildBlobStore(cfg config.FileConfig) (storage.BlobStore, string, error) {
	if cfg.StorageBackend == "minio" {
		blobs, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, "", err
		}
		return blobs, "", nil
	}
	blobs, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		return nil, "", err
	}
	return blobs, blobs.Dir(), nil
}
