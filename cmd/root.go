package cmd

import (
	"log"

	"github.com/nofone/solmatch/internal/matching"
	"github.com/nofone/solmatch/internal/pipeline"
	"github.com/nofone/solmatch/internal/solicitation"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "solmatch"
)

type Config struct {
	Directory    *DirectoryConfig    `mapstructure:"directory"`
	Match        *MatchConfig        `mapstructure:"match"`
	Enrichment   *EnrichmentConfig   `mapstructure:"enrichment"`
	Website      *WebsiteConfig      `mapstructure:"website"`
	AI           *AIConfig           `mapstructure:"ai"`
	Pipeline     *pipeline.Config    `mapstructure:"pipeline"`
	Solicitation *solicitation.Input `mapstructure:"solicitation"`
}

type DirectoryConfig struct {
	File        string `mapstructure:"file"`
	PostgresDSN string `mapstructure:"postgres-dsn"`
}

type MatchConfig struct {
	Weights *matching.Weights `mapstructure:"weights"`
}

type EnrichmentConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Awards  *AwardsConfig `mapstructure:"awards"`
	Cache   *CacheConfig  `mapstructure:"cache"`
}

type AwardsConfig struct {
	APIURL    string `mapstructure:"api-url"`
	UserAgent string `mapstructure:"user-agent"`
}

type CacheConfig struct {
	RedisAddr     string `mapstructure:"redis-addr"`
	RedisPassword string `mapstructure:"redis-password"`
	RedisDB       int    `mapstructure:"redis-db"`
	TTL           string `mapstructure:"ttl"`
}

type WebsiteConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	UserAgent string `mapstructure:"user-agent"`
	Timeout   string `mapstructure:"timeout"`
}

type AIConfig struct {
	Provider     string        `mapstructure:"provider"`
	MaxTokens    int           `mapstructure:"max-tokens"`
	Temperature  float32       `mapstructure:"temperature"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
	OpenAI       *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "solmatch matches federal solicitations against a company directory and writes alignment reports",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is solmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
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
