package config

import (
	"encoding/json"
	"os"

	"github.com/parleyhq/parley/internal/flagx"
	"github.com/parleyhq/parley/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "30s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddr          string         `json:"endpoint_addr"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	TypingTTL             timex.Duration `json:"typing_ttl"`
	PresenceThreshold     timex.Duration `json:"presence_threshold"`
	AllowUnscopedHistory  bool           `json:"allow_unscoped_history"`
	S3RootUser            string         `json:"s3_root_user"`
	S3RootPassword        string         `json:"s3_root_password"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
	UploadURLValidity     timex.Duration `json:"upload_url_validity"`
	DownloadURLValidity   timex.Duration `json:"download_url_validity"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c / -config command-line
// flags; when neither is set, no JSON file is loaded. An unreadable file or
// invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.TokenValidityDuration = c.TokenValidityDuration.Duration
	config.TypingTTL = c.TypingTTL.Duration
	config.PresenceThreshold = c.PresenceThreshold.Duration
	config.AllowUnscopedHistory = c.AllowUnscopedHistory
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.UploadURLValidity = c.UploadURLValidity.Duration
	config.DownloadURLValidity = c.DownloadURLValidity.Duration
}
