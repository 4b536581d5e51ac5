package config

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// ErrFirebaseNotConfigured means no credentials were supplied
var ErrFirebaseNotConfigured = errors.New("firebase credentials not configured")

// InitFirebase initializes the Firebase Admin SDK used for push delivery
func InitFirebase(cfg *AppConfig) (*firebase.App, error) {
	ctx := context.Background()

	var fbConfig *firebase.Config
	if cfg.FirebaseProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}

	// Check for base64 encoded credentials first
	if cfg.FirebaseCredsB64 != "" {
		log.Printf("Using Firebase credentials from base64 environment variable")
		decoded, err := base64.StdEncoding.DecodeString(cfg.FirebaseCredsB64)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 credentials: %w", err)
		}
		return firebase.NewApp(ctx, fbConfig, option.WithCredentialsJSON(decoded))
	}

	// Fallback to file-based credentials
	if cfg.FirebaseCredsFile == "" {
		return nil, ErrFirebaseNotConfigured
	}
	if _, err := os.Stat(cfg.FirebaseCredsFile); err != nil {
		return nil, fmt.Errorf("firebase service account file: %w", err)
	}

	log.Printf("Using Firebase credentials file: %s", cfg.FirebaseCredsFile)
	return firebase.NewApp(ctx, fbConfig, option.WithCredentialsFile(cfg.FirebaseCredsFile))
}
