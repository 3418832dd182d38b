package main

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"

	"AdDeck/internal/jobs"
	"AdDeck/internal/notify"
	"AdDeck/internal/store"
	"AdDeck/pkg/adsapi"
)

// Config represents a complete configuration
type Config struct {
	Host   string        `toml:"host,omitempty"`
	Port   uint16        `toml:"port,omitempty"`
	Log    LogConfig     `toml:"log,omitempty"`
	TLS    TLSConfig     `toml:"tls,omitempty"`
	Redis  store.Config  `toml:"redis"`
	API    adsapi.Config `toml:"api"`
	Notify notify.Config `toml:"notify,omitempty"`
	Jobs   jobs.Config   `toml:"jobs,omitempty"`

	// LandingURL is the public URL of this agent the backend redirects
	// the Instagram flow back to, e.g. https://agent.example.com/connect/instagram
	LandingURL string `toml:"landing_URL"`

	LandingPath string

	tlsConfig *tls.Config
}

// LogConfig represents a configuration for the global logger
type LogConfig struct {
	Level string `toml:"level,omitempty"`
	Path  string `toml:"path,omitempty"`
}

// TLSConfig represents a configuration for TLS of the HTTP server
type TLSConfig struct {
	ServerName      string `toml:"server_name,omitempty"`
	CertificatePath string `toml:"certificate_path,omitempty"`
	PrivateKeyPath  string `toml:"private_key_path,omitempty"`
}

// LoadConfig loads a configuration from the given TOML file
func LoadConfig(path string) (c Config) {
	f, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}
	if err = toml.Unmarshal(f, &c); err != nil {
		log.Fatalf("failed to parse config file: %v", err)
	}

	c.setupLogger()
	if err = c.setupHTTPServer(); err != nil {
		log.Fatal(err)
	}
	return
}

// setupLogger sets up the global logger configuration
func (c *Config) setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		log.Fatalf("failed to parse log level: %v", err)
	}
	log.SetLevel(level)
	log.Debugf("log level set to %s", strings.ToUpper(level.String()))
	if level >= log.DebugLevel {
		log.SetReportCaller(true)
	}

	if c.Log.Path != "" {
		f, err := os.OpenFile(c.Log.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}
}

// setupHTTPServer sets up the HTTP server configuration
func (c *Config) setupHTTPServer() error {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 8080
	}

	if c.API.BaseURL == "" {
		return fmt.Errorf("missing backend API base URL (`base_URL`) in config")
	}

	if c.LandingURL == "" {
		return fmt.Errorf("missing OAuth landing URL (`landing_URL`) in config")
	}
	u, err := url.Parse(c.LandingURL)
	if err != nil {
		return fmt.Errorf("invalid OAuth landing URL: %v", err)
	}
	c.LandingPath = u.Path
	if c.LandingPath == "" || c.LandingPath == "/" {
		return fmt.Errorf("OAuth landing URL must carry a non-root path")
	}

	if c.TLS.ServerName != "" && c.TLS.CertificatePath != "" && c.TLS.PrivateKeyPath != "" {
		u, err := url.Parse(c.TLS.ServerName)
		if err != nil {
			return fmt.Errorf("failed to parse TLS server name: %v", err)
		}

		cert, err := tls.LoadX509KeyPair(c.TLS.CertificatePath, c.TLS.PrivateKeyPath)
		if err != nil {
			return fmt.Errorf("failed to load TLS certificate: %v", err)
		}

		c.tlsConfig = &tls.Config{
			ServerName:   u.Hostname(),
			Certificates: []tls.Certificate{cert},
		}
	}
	return nil
}
