// Package config provides Viper-based configuration loading for the quiz server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/mathrace/internal/game/question"
)

// ServerConfig holds the listener settings.
type ServerConfig struct {
	// Host is the bind address for the WebSocket listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the WebSocket listener. PORT overrides it.
	Port int `mapstructure:"port"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WebSocketConfig holds per-connection transport settings.
type WebSocketConfig struct {
	// ReadLimit is the largest inbound frame in bytes.
	ReadLimit int64 `mapstructure:"read_limit"`
	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PongTimeout is how long a connection may stay silent before it is dropped.
	PongTimeout time.Duration `mapstructure:"pong_timeout"`
	// PingInterval is the period of server pings; must be shorter than PongTimeout.
	PingInterval time.Duration `mapstructure:"ping_interval"`
	// SendBuffer is the number of queued outbound messages per client.
	SendBuffer int `mapstructure:"send_buffer"`
}

// GameConfig holds room and round settings.
type GameConfig struct {
	// BroadcastInterval is the period of the room snapshot broadcast.
	BroadcastInterval time.Duration `mapstructure:"broadcast_interval"`
	// MaxPlayers caps every room's roster.
	MaxPlayers int `mapstructure:"max_players"`
	// QuestionLevel selects the operators of each room's batch (0 custom, 1 easy, 2 medium).
	QuestionLevel int `mapstructure:"question_level"`
	// QuestionCount is the number of questions generated per room.
	QuestionCount int `mapstructure:"question_count"`
	// OperandMin and OperandMax bound operands to [OperandMin, OperandMax).
	OperandMin int `mapstructure:"operand_min"`
	OperandMax int `mapstructure:"operand_max"`
	// MaxIDAttempts bounds room id draws.
	MaxIDAttempts int `mapstructure:"max_id_attempts"`
	// MaxQuestionAttempts bounds redraws for a single question.
	MaxQuestionAttempts int `mapstructure:"max_question_attempts"`
	// ReplyErrors sends rejected requests an "error" message instead of staying silent.
	ReplyErrors bool `mapstructure:"reply_errors"`
	// EnforceOwner restricts start and finish to the room owner.
	EnforceOwner bool `mapstructure:"enforce_owner"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Game      GameConfig      `mapstructure:"game"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, err := range []error{
		validateServer(c.Server),
		validateWebSocket(c.WebSocket),
		validateGame(c.Game),
		validateLogging(c.Logging),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", s.Port)
	}
	return nil
}

func validateWebSocket(w WebSocketConfig) error {
	var errs []string
	if w.ReadLimit < 1 {
		errs = append(errs, fmt.Sprintf("websocket.read_limit must be >= 1, got %d", w.ReadLimit))
	}
	if w.WriteTimeout <= 0 {
		errs = append(errs, "websocket.write_timeout must be positive")
	}
	if w.PongTimeout <= 0 {
		errs = append(errs, "websocket.pong_timeout must be positive")
	}
	if w.PingInterval <= 0 || w.PingInterval >= w.PongTimeout {
		errs = append(errs, fmt.Sprintf("websocket.ping_interval must be positive and below pong_timeout (%s), got %s", w.PongTimeout, w.PingInterval))
	}
	if w.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("websocket.send_buffer must be >= 1, got %d", w.SendBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.BroadcastInterval <= 0 {
		errs = append(errs, "game.broadcast_interval must be positive")
	}
	if g.MaxPlayers < 1 {
		errs = append(errs, fmt.Sprintf("game.max_players must be >= 1, got %d", g.MaxPlayers))
	}
	if g.QuestionLevel < 0 || g.QuestionLevel > 2 {
		errs = append(errs, fmt.Sprintf("game.question_level must be one of [0, 1, 2], got %d", g.QuestionLevel))
	}
	if g.QuestionCount < 0 {
		errs = append(errs, fmt.Sprintf("game.question_count must be >= 0, got %d", g.QuestionCount))
	}
	if g.OperandMin >= g.OperandMax {
		errs = append(errs, fmt.Sprintf("game.operand_min (%d) must be below game.operand_max (%d)", g.OperandMin, g.OperandMax))
	}
	if g.OperandMin < -question.MaxOperand || g.OperandMax > question.MaxOperand {
		errs = append(errs, fmt.Sprintf("game.operand_min and game.operand_max must lie within [%d, %d]", -question.MaxOperand, question.MaxOperand))
	}
	if g.QuestionLevel == 2 && g.OperandMin < 1 {
		errs = append(errs, "game.operand_min must be >= 1 for question_level 2")
	}
	if g.MaxIDAttempts < 1 {
		errs = append(errs, fmt.Sprintf("game.max_id_attempts must be >= 1, got %d", g.MaxIDAttempts))
	}
	if g.MaxQuestionAttempts < 1 {
		errs = append(errs, fmt.Sprintf("game.max_question_attempts must be >= 1, got %d", g.MaxQuestionAttempts))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// New returns a Viper instance with defaults and environment bindings applied.
//
// Environment variables use the QUIZ_ prefix with "." replaced by "_"
// (QUIZ_GAME_MAX_PLAYERS). PORT is honoured for server.port.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("QUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "QUIZ_SERVER_PORT", "PORT")

	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9090)

	v.SetDefault("websocket.read_limit", 4096)
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.ping_interval", "54s")
	v.SetDefault("websocket.send_buffer", 64)

	v.SetDefault("game.broadcast_interval", "500ms")
	v.SetDefault("game.max_players", 5)
	v.SetDefault("game.question_level", 1)
	v.SetDefault("game.question_count", 10)
	v.SetDefault("game.operand_min", 2)
	v.SetDefault("game.operand_max", 10)
	v.SetDefault("game.max_id_attempts", 64)
	v.SetDefault("game.max_question_attempts", 1000)
	v.SetDefault("game.reply_errors", false)
	v.SetDefault("game.enforce_owner", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
