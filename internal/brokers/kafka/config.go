package kafka

import (
	"strings"
	"time"

	"github.com/samber/lo"
	"tiltakspenger-overgangsstonad/internal/brokers"
	"tiltakspenger-overgangsstonad/internal/common/errors"
)

// Config configures the rapid's Kafka connection. On NAIS the SSL paths and
// credstore password are injected by the platform.
type Config struct {
	Brokers          []string
	ClientID         string
	GroupID          string
	SecurityProtocol string
	// ResetPolicy is auto.offset.reset for a group without committed offsets.
	ResetPolicy string

	CAPath          string
	CertificatePath string
	PrivateKeyPath  string
	KeystorePath    string

	// CredstorePassword unlocks the keystore.
	CredstorePassword string

	Timeout        time.Duration
	SessionTimeout time.Duration
	// PollTimeout bounds each poll so cancellation is noticed.
	PollTimeout time.Duration
	// RedeliveryBackoff is the pause before a failed message is read again.
	RedeliveryBackoff time.Duration
}

var (
	validProtocols     = []string{"PLAINTEXT", "SSL"}
	validResetPolicies = []string{"earliest", "latest"}
)

// Validate checks the config and fills in defaults.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.ConfigError("Kafka brokers are required")
	}

	for _, broker := range c.Brokers {
		if strings.TrimSpace(broker) == "" {
			return errors.ConfigError("empty Kafka broker address")
		}
	}

	if c.GroupID == "" {
		return errors.ConfigError("Kafka consumer group id is required")
	}

	if c.ClientID == "" {
		c.ClientID = c.GroupID
	}

	if c.SecurityProtocol == "" {
		c.SecurityProtocol = "PLAINTEXT"
	}
	c.SecurityProtocol = strings.ToUpper(c.SecurityProtocol)
	if !lo.Contains(validProtocols, c.SecurityProtocol) {
		return errors.ConfigError("invalid security protocol: " + c.SecurityProtocol)
	}

	if c.ResetPolicy == "" {
		c.ResetPolicy = "latest"
	}
	c.ResetPolicy = strings.ToLower(c.ResetPolicy)
	if !lo.Contains(validResetPolicies, c.ResetPolicy) {
		return errors.ConfigError("invalid reset policy: " + c.ResetPolicy)
	}

	if c.SecurityProtocol == "SSL" {
		pem := c.CertificatePath != "" && c.PrivateKeyPath != ""
		keystore := c.KeystorePath != "" && c.CredstorePassword != ""
		if !pem && !keystore {
			return errors.ConfigError("SSL requires a certificate and key or a keystore with credstore password")
		}
	}

	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 30 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = time.Second
	}
	if c.RedeliveryBackoff <= 0 {
		c.RedeliveryBackoff = brokers.DefaultRedeliveryBackoff
	}

	return nil
}

// GetType returns the broker type.
func (c *Config) GetType() string {
	return "kafka"
}

// GetConnectionString returns the bootstrap servers.
func (c *Config) GetConnectionString() string {
	return strings.Join(c.Brokers, ",")
}

// connectionConfig holds the settings shared by producer and consumer.
func (c *Config) connectionConfig() map[string]interface{} {
	m := map[string]interface{}{
		"bootstrap.servers": c.GetConnectionString(),
		"client.id":         c.ClientID,
	}

	if c.SecurityProtocol == "SSL" {
		m["security.protocol"] = "ssl"
		if c.CAPath != "" {
			m["ssl.ca.location"] = c.CAPath
		}
		if c.CertificatePath != "" && c.PrivateKeyPath != "" {
			m["ssl.certificate.location"] = c.CertificatePath
			m["ssl.key.location"] = c.PrivateKeyPath
		} else {
			m["ssl.keystore.location"] = c.KeystorePath
			m["ssl.keystore.password"] = c.CredstorePassword
		}
	}
	return m
}

// DefaultConfig returns a local development config.
func DefaultConfig() *Config {
	return &Config{
		Brokers:          []string{"localhost:9092"},
		ClientID:         "tiltakspenger-overgangsstonad",
		GroupID:          "tiltakspenger-overgangsstonad-v1",
		SecurityProtocol: "PLAINTEXT",
		ResetPolicy:      "latest",
		Timeout:          30 * time.Second,
		SessionTimeout:   30 * time.Second,
		PollTimeout:      time.Second,

		RedeliveryBackoff: brokers.DefaultRedeliveryBackoff,
	}
}
