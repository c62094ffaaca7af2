package config

import (
	"fmt"
	"strings"

	"github.com/taskline/taskline/internal/domain"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all server configuration.
type Config struct {
	HTTPAddress    string
	AllowedOrigins string

	MongoURI      string
	MongoDatabase string

	// EncryptionSecret is the shared secret the credential cipher key is
	// derived from. Rotating it makes every stored credential undecryptable.
	EncryptionSecret string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleAuthEndpoint string
	TokenEndpoint      string

	// AuthCallbackAddress receives loopback OAuth redirects during
	// interactive authorization.
	AuthCallbackAddress string

	AnthropicAPIKey string
	AgentModel      string
}

// Load reads configuration from an optional yaml file and the environment.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envMappings := map[string]string{
		"HTTPAddress":         "HTTP_ADDRESS",
		"AllowedOrigins":      "ALLOWED_ORIGINS",
		"MongoURI":            "MONGO_URI",
		"MongoDatabase":       "MONGO_DATABASE",
		"EncryptionSecret":    "SECRET_KEY",
		"GoogleClientID":      "GOOGLE_CLIENT_ID",
		"GoogleClientSecret":  "GOOGLE_CLIENT_SECRET",
		"GoogleAuthEndpoint":  "GOOGLE_AUTH_ENDPOINT",
		"TokenEndpoint":       "GOOGLE_TOKEN_ENDPOINT",
		"AuthCallbackAddress": "AUTH_CALLBACK_ADDRESS",
		"AnthropicAPIKey":     "ANTHROPIC_API_KEY",
		"AgentModel":          "AGENT_MODEL",
	}

	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, configKey)
		}
	}

	v.SetConfigName("taskline_config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.taskline")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTPAddress", ":8080")
	v.SetDefault("AllowedOrigins", "http://localhost:3000")
	v.SetDefault("MongoDatabase", "taskline")
	v.SetDefault("GoogleAuthEndpoint", "https://accounts.google.com/o/oauth2/auth")
	v.SetDefault("TokenEndpoint", "https://oauth2.googleapis.com/token")
	v.SetDefault("AuthCallbackAddress", "localhost:8002")
}

func validate(config *Config) error {
	// The encryption secret has no default.
	if config.EncryptionSecret == "" {
		return fmt.Errorf("%w: set SECRET_KEY", domain.ErrMissingEncryptionSecret)
	}

	if config.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}

	if config.GoogleClientID == "" || config.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}

	if config.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}

	return nil
}
