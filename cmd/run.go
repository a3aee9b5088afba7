package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nofone/solmatch/internal/ai"
	"github.com/nofone/solmatch/internal/ai/gemini"
	"github.com/nofone/solmatch/internal/ai/openai"
	"github.com/nofone/solmatch/internal/company"
	"github.com/nofone/solmatch/internal/directory"
	"github.com/nofone/solmatch/internal/enrichment"
	"github.com/nofone/solmatch/internal/logger"
	"github.com/nofone/solmatch/internal/matching"
	"github.com/nofone/solmatch/internal/narrative"
	"github.com/nofone/solmatch/internal/pipeline"
	"github.com/nofone/solmatch/internal/report"
	"github.com/nofone/solmatch/internal/secrets"
	"github.com/nofone/solmatch/internal/solicitation"
	"github.com/nofone/solmatch/internal/website"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptShowReports    = "Show full reports"
	PromptShowSWOT       = "Show SWOT breakdown"
	PromptDumpToFile     = "Dump result to file"
	PromptExit           = "Exit"
	defaultAwardsURL     = "https://api.usaspending.gov/api/v2"
	defaultCacheTTL      = 24 * time.Hour
	defaultAwardsTimeout = 15 * time.Second
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Next?",
	Items: []string{PromptShowReports, PromptShowSWOT, PromptDumpToFile, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the alignment pipeline for one solicitation",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("input", "i", "", "a JSON file with the solicitation. Overrides the config's solicitation block.")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not prompt; print the summary and exit")
	runCmd.Flags().StringP("output", "o", "", "write the full result JSON to this file and skip the prompt")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting solmatch", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	input, err := loadSolicitation(cmd, config)
	if err != nil {
		logger.Fatal("loading the solicitation", zap.Error(err))
	}

	dir, closeDir, err := buildDirectory(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening the company directory", zap.Error(err))
	}
	defer closeDir()

	weights := matching.DefaultWeights()
	if config.Match != nil && config.Match.Weights != nil {
		weights = *config.Match.Weights
	}
	if err := weights.Validate(); err != nil {
		logger.Fatal("validating match weights", zap.Error(err))
	}

	enricher, err := buildEnricher(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the enrichment layer", zap.Error(err))
	}

	webval, err := buildWebsiteValidator(config, logger)
	if err != nil {
		logger.Fatal("building the website validator", zap.Error(err))
	}

	gen, err := buildGenerator(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the narrative generator", zap.Error(err))
	}

	var narGen *narrative.Generator
	if gen != nil {
		maxTokens, temperature, maxLogLen := 0, float32(0), 0
		if config.AI != nil {
			maxTokens = config.AI.MaxTokens
			temperature = config.AI.Temperature
			maxLogLen = config.AI.MaxLogLength
		}
		narGen = narrative.NewGenerator(gen, maxTokens, temperature, maxLogLen, logger)
		logger.Info("narrative generation enabled", zap.String("model", gen.Model()))
	} else {
		logger.Info("no generative provider configured; narratives will be synthesized deterministically")
	}

	pipeCfg := pipeline.Config{}
	if config.Pipeline != nil {
		pipeCfg = *config.Pipeline
	}

	pipe, err := pipeline.New(
		dir,
		matching.New(weights, logger),
		enricher,
		webval,
		narGen,
		narrative.NewValidator(logger),
		report.NewAggregator(logger),
		pipeCfg,
		logger,
	)
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}

	result, err := pipe.Run(ctx, input)
	if err != nil {
		var inputErr *solicitation.InputError
		if errors.As(err, &inputErr) {
			logger.Fatal("solicitation rejected", zap.String("reason", inputErr.Reason))
		}
		logger.Fatal("pipeline run failed", zap.Error(err))
	}

	printSummary(result)

	if outPath := cmd.Flag("output").Value.String(); outPath != "" {
		if err := dumpResult(result, outPath); err != nil {
			logger.Fatal("writing the result", zap.Error(err))
		}
		logger.Info("result written", zap.String("filename", outPath))
		return
	}

	if cmd.Flag("auto-approve").Value.String() == "true" {
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, result, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, result *pipeline.Result, logger *zap.Logger) error {
	switch action {
	case PromptShowReports:
		for _, c := range result.Companies {
			fmt.Printf("\n=== %s (%s) - score %.2f, risk %s ===\n%s\n", c.CompanyName, c.CompanyID, c.Score, c.Risk, c.Narrative.Text())
		}
		return nil
	case PromptShowSWOT:
		pretty, err := json.MarshalIndent(swotByCompany(result), "", "  ")
		if err != nil {
			return fmt.Errorf("render SWOT breakdown: %w", err)
		}
		fmt.Println(string(pretty))
		return nil
	case PromptDumpToFile:
		filename, err := dumpResultToTmpFile(result)
		if err != nil {
			return fmt.Errorf("dump result to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func swotByCompany(result *pipeline.Result) map[string]report.SWOT {
	out := make(map[string]report.SWOT, len(result.Companies))
	for _, c := range result.Companies {
		out[c.CompanyName] = c.SWOT
	}
	return out
}

func printSummary(result *pipeline.Result) {
	fmt.Printf("\nRun %s - %q (%s)\n", result.RunID, result.Request.Title, result.Request.Agency)
	fmt.Printf("Directory: %d companies, shortlisted: %d, completed: %d, fallback narratives: %d\n\n",
		result.Diagnostics.Candidates, result.Diagnostics.Shortlisted,
		result.Diagnostics.Completed, result.Diagnostics.FallbackUsed)

	for i, c := range result.Companies {
		fmt.Printf("%2d. %-30s score %.2f  risk %-6s  %s\n", i+1, c.CompanyName, c.Score, c.Risk, c.RecommendedAction)
	}

	for _, failure := range result.Diagnostics.Failures {
		fmt.Printf("    failure: %s\n", failure)
	}
	fmt.Println()
}

func loadSolicitation(cmd *cobra.Command, config *Config) (*solicitation.Input, error) {
	if path := cmd.Flag("input").Value.String(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read solicitation file %s: %w", path, err)
		}
		var input solicitation.Input
		if err := json.Unmarshal(data, &input); err != nil {
			return nil, fmt.Errorf("parse solicitation file %s: %w", path, err)
		}
		return &input, nil
	}

	if config.Solicitation != nil {
		return config.Solicitation, nil
	}

	return nil, errors.New("no solicitation given: use --input or the 'solicitation' block in the configuration file")
}

func buildDirectory(ctx context.Context, config *Config, logger *zap.Logger) (company.Directory, func(), error) {
	noop := func() {}

	if config.Directory == nil {
		return nil, noop, errors.New("the 'directory' block is required in the configuration file")
	}

	if dsn := config.Directory.PostgresDSN; dsn != "" {
		pg, err := directory.NewPostgresDirectory(ctx, dsn, logger)
		if err != nil {
			return nil, noop, err
		}
		return pg, pg.Close, nil
	}

	if config.Directory.File == "" {
		return nil, noop, errors.New("directory.file or directory.postgres-dsn is required")
	}

	fd, err := directory.NewFileDirectory(config.Directory.File, logger)
	if err != nil {
		return nil, noop, err
	}
	return fd, noop, nil
}

func buildEnricher(ctx context.Context, config *Config, logger *zap.Logger) (*enrichment.Enricher, error) {
	if config.Enrichment == nil || !config.Enrichment.Enabled {
		return enrichment.New(nil, nil, false, logger), nil
	}

	apiURL := defaultAwardsURL
	userAgent := ""
	if config.Enrichment.Awards != nil {
		if config.Enrichment.Awards.APIURL != "" {
			apiURL = config.Enrichment.Awards.APIURL
		}
		userAgent = config.Enrichment.Awards.UserAgent
	}

	sources := []enrichment.Source{
		enrichment.NewAwardClient(apiURL, userAgent, defaultAwardsTimeout, logger),
	}

	var cache enrichment.Cache
	if cacheCfg := config.Enrichment.Cache; cacheCfg != nil && cacheCfg.RedisAddr != "" {
		ttl := defaultCacheTTL
		if cacheCfg.TTL != "" {
			parsed, err := time.ParseDuration(cacheCfg.TTL)
			if err != nil {
				return nil, fmt.Errorf("parse enrichment.cache.ttl: %w", err)
			}
			ttl = parsed
		}
		redisCache, err := enrichment.NewRedisCache(ctx, cacheCfg.RedisAddr, cacheCfg.RedisPassword, cacheCfg.RedisDB, ttl, logger)
		if err != nil {
			return nil, err
		}
		cache = redisCache
	}

	return enrichment.New(sources, cache, true, logger), nil
}

func buildWebsiteValidator(config *Config, logger *zap.Logger) (*website.Validator, error) {
	if config.Website == nil || !config.Website.Enabled {
		return nil, nil
	}

	timeout := time.Duration(0)
	if config.Website.Timeout != "" {
		parsed, err := time.ParseDuration(config.Website.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse website.timeout: %w", err)
		}
		timeout = parsed
	}

	return website.NewValidator(config.Website.UserAgent, timeout, logger), nil
}

func buildGenerator(ctx context.Context, config *Config, logger *zap.Logger) (ai.Generator, error) {
	if config.AI == nil || config.AI.Provider == "" || config.AI.Provider == "none" {
		return nil, nil
	}

	switch config.AI.Provider {
	case "gemini":
		cfg := config.AI.Gemini
		if cfg == nil {
			cfg = &GeminiConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, err
		}
		return gemini.NewGenerator(ctx, apiKey, cfg.Model, cfg.MaxRetries, logger)
	case "openai":
		cfg := config.AI.OpenAI
		if cfg == nil {
			cfg = &OpenAIConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, err
		}
		return openai.NewGenerator(apiKey, cfg.Model, cfg.MaxRetries, logger)
	default:
		return nil, fmt.Errorf("unknown ai provider %q: want gemini, openai, or none", config.AI.Provider)
	}
}

func dumpResult(result *pipeline.Result, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func dumpResultToTmpFile(result *pipeline.Result) (string, error) {
	f, err := os.CreateTemp("", app+"-result-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return "", err
	}
	return f.Name(), nil
}
