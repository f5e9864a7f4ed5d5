// Package config loads the service configuration from the environment.
//
// NAIS_CLUSTER_NAME selects a profile (dev-gcp, prod-gcp, anything else is
// local) that provides defaults for the EF sak URL and scope. Every value can
// be overridden by its environment variable. A .env file in the working
// directory is read by the application before Load is called.
//
// Environment Variables:
//
// Application:
//   - RAPID_APP_NAME: Name on the rapid (default: tiltakspenger-overgangsstonad)
//   - PORT: Health and metrics port (default: 8080)
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - SECURE_LOG_FILE: File for the secure log (default: stdout)
//   - BEHOV_TIMEOUT: Upper bound for handling one need (default: 60s)
//
// EF sak:
//   - EF_SAK_URL: Base URL (profile default)
//   - EF_SAK_SCOPE: Token scope (profile default)
//   - EF_SAK_TIMEOUT: HTTP timeout (default: 30s)
//
// Azure AD:
//   - AZURE_APP_CLIENT_ID, AZURE_APP_CLIENT_SECRET, AZURE_APP_WELL_KNOWN_URL (required)
//   - HTTP_PROXY: Proxy for calls to the identity provider
//   - TOKEN_EXPIRY_MARGIN: Refresh tokens this long before expiry (default: 60s)
//
// Kafka:
//   - KAFKA_BROKERS: Comma separated bootstrap servers (default: localhost:9092)
//   - KAFKA_RAPID_TOPIC (default: tpts.rapid.v1)
//   - KAFKA_CONSUMER_GROUP_ID (default: tiltakspenger-overgangsstonad-v1)
//   - KAFKA_RESET_POLICY (default: latest)
//   - KAFKA_REDELIVERY_BACKOFF: Pause before a failed message is read again (default: 5s)
//   - KAFKA_SECURITY_PROTOCOL: PLAINTEXT or SSL (default: SSL when a keystore
//     or certificate is mounted)
//   - KAFKA_CA_PATH, KAFKA_CERTIFICATE_PATH, KAFKA_PRIVATE_KEY_PATH,
//     KAFKA_KEYSTORE_PATH, KAFKA_CREDSTORE_PASSWORD: SSL material from NAIS
package config

import (
	"os"
	"strings"
	"time"

	"tiltakspenger-overgangsstonad/internal/common/errors"
	"tiltakspenger-overgangsstonad/internal/common/logging"
	"tiltakspenger-overgangsstonad/internal/common/validation"
)

// Profile is the environment the service runs in.
type Profile string

const (
	ProfileLocal Profile = "LOCAL"
	ProfileDev   Profile = "DEV"
	ProfileProd  Profile = "PROD"
)

type profileDefaults struct {
	efSakURL   string
	efSakScope string
}

var profiles = map[Profile]profileDefaults{
	ProfileLocal: {
		efSakURL:   "https://familie-ef-sak.intern.nav.no",
		efSakScope: "api://dev-gcp.teamfamilie.familie-ef-sak/.default",
	},
	ProfileDev: {
		efSakURL:   "https://familie-ef-sak.intern.dev.nav.no",
		efSakScope: "api://dev-gcp.teamfamilie.familie-ef-sak/.default",
	},
	ProfileProd: {
		efSakURL:   "https://familie-ef-sak.intern.nav.no",
		efSakScope: "api://prod-gcp.teamfamilie.familie-ef-sak/.default",
	},
}

// ProfileFor maps a NAIS cluster name to a profile.
func ProfileFor(cluster string) Profile {
	switch cluster {
	case "dev-gcp":
		return ProfileDev
	case "prod-gcp":
		return ProfileProd
	default:
		return ProfileLocal
	}
}

// Config holds all configuration values.
type Config struct {
	Profile Profile

	AppName       string        `env:"RAPID_APP_NAME" validate:"required"`
	Instance      string        `env:"HOSTNAME"`
	Image         string        `env:"NAIS_APP_IMAGE"`
	Port          string        `env:"PORT" validate:"required,numeric"`
	LogLevel      string        `env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	SecureLogFile string        `env:"SECURE_LOG_FILE"`
	BehovTimeout  time.Duration `env:"BEHOV_TIMEOUT" validate:"gt=0"`

	EFSak EFSakConfig
	Azure AzureConfig
	Kafka KafkaConfig
}

// EFSakConfig configures the case API client.
type EFSakConfig struct {
	URL     string        `env:"EF_SAK_URL" validate:"required,url"`
	Scope   string        `env:"EF_SAK_SCOPE" validate:"required"`
	Timeout time.Duration `env:"EF_SAK_TIMEOUT" validate:"gt=0"`
}

// AzureConfig holds the client credentials injected by NAIS.
type AzureConfig struct {
	ClientID          string        `env:"AZURE_APP_CLIENT_ID" validate:"required"`
	ClientSecret      string        `env:"AZURE_APP_CLIENT_SECRET" validate:"required"`
	WellKnownURL      string        `env:"AZURE_APP_WELL_KNOWN_URL" validate:"required,url"`
	HTTPProxy         string        `env:"HTTP_PROXY" validate:"omitempty,url"`
	TokenExpiryMargin time.Duration `env:"TOKEN_EXPIRY_MARGIN" validate:"gte=0"`
}

// KafkaConfig configures the rapid connection.
type KafkaConfig struct {
	Brokers           []string      `env:"KAFKA_BROKERS" validate:"required,min=1,dive,required"`
	Topic             string        `env:"KAFKA_RAPID_TOPIC" validate:"required"`
	GroupID           string        `env:"KAFKA_CONSUMER_GROUP_ID" validate:"required"`
	ResetPolicy       string        `env:"KAFKA_RESET_POLICY" validate:"oneof=earliest latest"`
	SecurityProtocol  string        `env:"KAFKA_SECURITY_PROTOCOL" validate:"omitempty,oneof=PLAINTEXT SSL"`
	RedeliveryBackoff time.Duration `env:"KAFKA_REDELIVERY_BACKOFF" validate:"gt=0"`
	CAPath            string        `env:"KAFKA_CA_PATH"`
	CertificatePath   string        `env:"KAFKA_CERTIFICATE_PATH"`
	PrivateKeyPath    string        `env:"KAFKA_PRIVATE_KEY_PATH"`
	KeystorePath      string        `env:"KAFKA_KEYSTORE_PATH"`
	CredstorePassword string        `env:"KAFKA_CREDSTORE_PASSWORD"`
}

// Protocol returns KAFKA_SECURITY_PROTOCOL, or SSL when NAIS has mounted
// client credentials.
func (k KafkaConfig) Protocol() string {
	if k.SecurityProtocol != "" {
		return k.SecurityProtocol
	}
	if k.KeystorePath != "" || k.CertificatePath != "" {
		return "SSL"
	}
	return "PLAINTEXT"
}

// Load reads the configuration from the environment.
func Load() *Config {
	profile := ProfileFor(os.Getenv("NAIS_CLUSTER_NAME"))
	defaults := profiles[profile]

	return &Config{
		Profile:       profile,
		AppName:       getEnv("RAPID_APP_NAME", "tiltakspenger-overgangsstonad"),
		Instance:      getEnv("HOSTNAME", ""),
		Image:         getEnv("NAIS_APP_IMAGE", ""),
		Port:          getEnv("PORT", "8080"),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		SecureLogFile: getEnv("SECURE_LOG_FILE", ""),
		BehovTimeout:  getDurationEnv("BEHOV_TIMEOUT", 60*time.Second),

		EFSak: EFSakConfig{
			URL:     getEnv("EF_SAK_URL", defaults.efSakURL),
			Scope:   getEnv("EF_SAK_SCOPE", defaults.efSakScope),
			Timeout: getDurationEnv("EF_SAK_TIMEOUT", 30*time.Second),
		},

		Azure: AzureConfig{
			ClientID:          getEnv("AZURE_APP_CLIENT_ID", ""),
			ClientSecret:      getEnv("AZURE_APP_CLIENT_SECRET", ""),
			WellKnownURL:      getEnv("AZURE_APP_WELL_KNOWN_URL", ""),
			HTTPProxy:         getEnv("HTTP_PROXY", ""),
			TokenExpiryMargin: getDurationEnv("TOKEN_EXPIRY_MARGIN", 60*time.Second),
		},

		Kafka: KafkaConfig{
			Brokers:           splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:             getEnv("KAFKA_RAPID_TOPIC", "tpts.rapid.v1"),
			GroupID:           getEnv("KAFKA_CONSUMER_GROUP_ID", "tiltakspenger-overgangsstonad-v1"),
			ResetPolicy:       strings.ToLower(getEnv("KAFKA_RESET_POLICY", "latest")),
			SecurityProtocol:  strings.ToUpper(getEnv("KAFKA_SECURITY_PROTOCOL", "")),
			RedeliveryBackoff: getDurationEnv("KAFKA_REDELIVERY_BACKOFF", 5*time.Second),
			CAPath:            getEnv("KAFKA_CA_PATH", ""),
			CertificatePath:   getEnv("KAFKA_CERTIFICATE_PATH", ""),
			PrivateKeyPath:    getEnv("KAFKA_PRIVATE_KEY_PATH", ""),
			KeystorePath:      getEnv("KAFKA_KEYSTORE_PATH", ""),
			CredstorePassword: getEnv("KAFKA_CREDSTORE_PASSWORD", ""),
		},
	}
}

// IsNais reports whether the service runs in a NAIS cluster.
func (c *Config) IsNais() bool {
	return c.Profile != ProfileLocal
}

// Validate checks all values. Every failing field is reported.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return errors.ConfigError(err.Error())
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration, using default",
			logging.Field{Key: "key", Value: key},
			logging.Field{Key: "value", Value: value},
			logging.Field{Key: "default", Value: defaultValue.String()},
		)
		return defaultValue
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
