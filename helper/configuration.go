package helper

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// ServerConfiguration holds the process level settings of the assistant.
type ServerConfiguration struct {
	Port          string
	DataDir       string
	ModelDir      string
	SettingsFile  string
	AdminUsername string
	AdminPassword string
	JWTSecret     string
	OpenAIKey     string
	OpenAIBaseURL string
	ChatModel     string
	ChatRPS       float64
}

// NewServerConfiguration reads the server configuration from the environment.
func NewServerConfiguration() (*ServerConfiguration, error) {
	_ = godotenv.Load()

	config := &ServerConfiguration{
		Port:          getEnv("LEGALRAG_PORT", "8000"),
		DataDir:       getEnv("LEGALRAG_DATA_DIR", "./data"),
		ModelDir:      getEnv("LEGALRAG_MODEL_DIR", DefaultModelDir),
		SettingsFile:  os.Getenv("LEGALRAG_SETTINGS_FILE"),
		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET_KEY"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		ChatModel:     getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		ChatRPS:       2,
	}

	if rps := os.Getenv("LEGALRAG_CHAT_RPS"); rps != "" {
		value, err := strconv.ParseFloat(rps, 64)
		if err != nil || value <= 0 {
			return nil, NewError("server configuration", fmt.Errorf("invalid LEGALRAG_CHAT_RPS %q", rps))
		}
		config.ChatRPS = value
	}

	return config, nil
}

// AuthEnabled reports whether admin credentials and a signing key are configured.
func (c *ServerConfiguration) AuthEnabled() bool {
	return c.AdminUsername != "" && c.AdminPassword != "" && c.JWTSecret != ""
}
