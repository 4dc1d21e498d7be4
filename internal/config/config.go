package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port              string        `env:"PORT" envDefault:"8080"`
	SocketURL         string        `env:"SOCKET_URL" envDefault:"ws://localhost:8080/ws"`
	APIBaseURL        string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	APIToken          string        `env:"API_TOKEN"`
	QuestionTime      time.Duration `env:"QUESTION_TIME" envDefault:"30s"`
	FeedbackDwell     time.Duration `env:"FEEDBACK_DWELL" envDefault:"1s"`
	InviteTTL         time.Duration `env:"INVITE_TTL" envDefault:"30s"`
	NextStageCooldown time.Duration `env:"NEXT_STAGE_COOLDOWN" envDefault:"5s"`
	MinCompatibility  int           `env:"MIN_COMPATIBILITY" envDefault:"40"`
	ExportEnabled     bool          `env:"EXPORT_ENABLED" envDefault:"false"`
	ExportFile        string        `env:"EXPORT_FILE" envDefault:"data/results.txt"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
}

// FromEnv loads configuration from the environment, reading a .env file
// first when one exists.
func FromEnv() (Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	return c, nil
}
