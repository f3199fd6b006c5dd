package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config values from environment variables. An optional
// .env file in the working directory is loaded first; a missing file is not
// an error. Malformed values panic, same as the JSON overlay.
func parseEnv(config *Config) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("skipping .env file: %v", err)
	}

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				panic(err)
			}
			*dst = d
		}
	}

	setString("ADDRESS", &config.EndpointAddr)
	setString("DATABASE_DSN", &config.DatabaseDSN)
	setString("SECRET_KEY", &config.SecretKey)
	setDuration("TOKEN_VALIDITY", &config.TokenValidityDuration)
	setDuration("TYPING_TTL", &config.TypingTTL)
	setDuration("PRESENCE_THRESHOLD", &config.PresenceThreshold)
	setString("S3_ROOT_USER", &config.S3RootUser)
	setString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	setString("S3_BUCKET", &config.S3Bucket)
	setString("S3_REGION", &config.S3Region)
	setString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	setDuration("UPLOAD_URL_VALIDITY", &config.UploadURLValidity)
	setDuration("DOWNLOAD_URL_VALIDITY", &config.DownloadURLValidity)

	if v := os.Getenv("ALLOW_UNSCOPED_HISTORY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(err)
		}
		config.AllowUnscopedHistory = b
	}
}
