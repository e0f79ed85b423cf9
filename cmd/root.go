package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "rfp-evaluator"
)

type Config struct {
	AI         *AIConfig         `mapstructure:"ai"`
	Extraction *ExtractionConfig `mapstructure:"extraction"`
	Evaluation *EvaluationConfig `mapstructure:"evaluation"`
	Store      *StoreConfig      `mapstructure:"store"`
	Telemetry  *TelemetryConfig  `mapstructure:"telemetry"`
	// Report is the default output path of the evaluate command.
	Report string `mapstructure:"report"`
}

type AIConfig struct {
	Provider  string           `mapstructure:"provider"`
	Timeout   time.Duration    `mapstructure:"timeout"`
	Gemini    *GeminiConfig    `mapstructure:"gemini"`
	Anthropic *AnthropicConfig `mapstructure:"anthropic"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type AnthropicConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxTokens  int64  `mapstructure:"max-tokens"`
}

type ExtractionConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type EvaluationConfig struct {
	Concurrency            int     `mapstructure:"concurrency"`
	ComparisonLog          string  `mapstructure:"comparison-log"`
	QualificationThreshold float64 `mapstructure:"qualification-threshold"`
	UseRFPPassMark         bool    `mapstructure:"use-rfp-pass-mark"`
	FocusRadius            int     `mapstructure:"focus-radius"`
	ChunkMaxTokens         int     `mapstructure:"chunk-max-tokens"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp-endpoint"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "rfp-evaluator scores procurement proposals against an Arabic RFP and ranks them",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.anthropic.api-key-file", "ANTHROPIC_API_KEY_FILE"); err != nil {
		log.Fatalf("binding ANTHROPIC_API_KEY_FILE environment variable: %v", err)
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is rfp-evaluator.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.timeout", "5m")
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.gemini.max-log-length", 2000)
	viper.SetDefault("ai.anthropic.model", "claude-sonnet-4-5")
	viper.SetDefault("ai.anthropic.max-tokens", 4096)
	viper.SetDefault("extraction.timeout", "15m")
	viper.SetDefault("evaluation.concurrency", 4)
	viper.SetDefault("evaluation.comparison-log", "comparison_log.json")
	viper.SetDefault("evaluation.qualification-threshold", 70)
	viper.SetDefault("store.path", "rfp-evaluator.db")
}

func initConfig() {
	// Only the commands below read the config. Others skip initialization.
	if evaluateCmd.CalledAs() == "" && criteriaCmd.CalledAs() == "" &&
		summarizeCmd.CalledAs() == "" && historyCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && (cfgFile != "" || !errors.As(err, &notFound)) {
		// We can't proceed if the config file parsed with error.
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
