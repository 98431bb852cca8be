package cmd

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/interview-conductor/internal/checkpoint"
	"github.com/spigell/interview-conductor/internal/evaluator"
	"github.com/spigell/interview-conductor/internal/lifecycle"
	"github.com/spigell/interview-conductor/internal/scheduler"
)

const (
	app = "interview-conductor"
)

type Config struct {
	Interview  *InterviewConfig  `mapstructure:"interview" validate:"required"`
	Scheduler  scheduler.Policy  `mapstructure:"scheduler"`
	Evaluator  evaluator.Policy  `mapstructure:"evaluator"`
	Lifecycle  lifecycle.Policy  `mapstructure:"lifecycle"`
	Checkpoint checkpoint.Config `mapstructure:"checkpoint"`
	AI         *AIConfig         `mapstructure:"ai" validate:"required"`
}

type InterviewConfig struct {
	Budget    time.Duration `mapstructure:"budget" validate:"gte=1m"`
	Job       string        `mapstructure:"job"`
	Candidate string        `mapstructure:"candidate"`
	// Templates optionally replaces the built-in fallback questions.
	Templates          string `mapstructure:"templates"`
	GenerationAttempts int    `mapstructure:"generation-attempts" validate:"gte=1"`
}

type AIConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Provider       string        `mapstructure:"provider" validate:"omitempty,oneof=gemini"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	Gemini         *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interview-conductor runs adaptive technical interviews in the terminal",
	}

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := bindEnv(); err != nil {
		log.Fatal(err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interview-conductor.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func bindEnv() error {
	for key, env := range map[string]string{
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"checkpoint.dir":         "INTERVIEW_CHECKPOINT_DIR",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s environment variable: %w", env, err)
		}
	}
	return nil
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every setting has a default, so only an explicitly given file is mandatory.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		Interview: &InterviewConfig{
			Budget:             30 * time.Minute,
			GenerationAttempts: 2,
		},
		Scheduler:  scheduler.DefaultPolicy(),
		Evaluator:  evaluator.DefaultPolicy(),
		Lifecycle:  lifecycle.DefaultPolicy(),
		Checkpoint: checkpoint.Config{Backend: checkpoint.BackendFile},
		AI: &AIConfig{
			Enabled:        true,
			Provider:       "gemini",
			RequestTimeout: 90 * time.Second,
			Gemini:         &GeminiConfig{MaxLogLength: 500},
		},
	}
}

// getConfig decodes viper settings over the defaults.
func getConfig() (*Config, error) {
	config := defaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	if config.AI != nil && config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}

	if err := validate.Struct(config); err != nil {
		return nil, err
	}
	return config, nil
}
