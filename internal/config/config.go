package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"claimflow/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Log       LogConfig
	CORS      CORSConfig
	Storage   StorageConfig
	Vision    ProviderConfig
	Reasoning ReasoningConfig
	Foundry   FoundryConfig
	Search    SearchConfig
	Batch     BatchConfig
	Results   ResultsConfig
}

// ProviderConfig holds settings for a single model provider. For Azure
// OpenAI, Model is the deployment name.
type ProviderConfig struct {
	Provider    string `mapstructure:"provider"`
	APIKey      string `mapstructure:"api_key"`
	Endpoint    string `mapstructure:"endpoint"`
	APIVersion  string `mapstructure:"api_version"`
	Model       string `mapstructure:"model"`
	MaxTokens   int    `mapstructure:"max_tokens"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

// Configured reports whether a provider has been selected.
func (p *ProviderConfig) Configured() bool {
	return p.Provider != ""
}

// ReasoningConfig holds the reasoning providers in fallback order.
type ReasoningConfig struct {
	Primary     ProviderConfig `mapstructure:"primary"`
	Secondary   ProviderConfig `mapstructure:"secondary"`
	Temperature float32        `mapstructure:"temperature"`
}

// SecondaryConfig returns the secondary provider config, or nil if not configured.
func (r *ReasoningConfig) SecondaryConfig() *ProviderConfig {
	if r.Secondary.Configured() {
		return &r.Secondary
	}
	return nil
}

// FoundryConfig addresses the project that registers retrieval index assets.
type FoundryConfig struct {
	ProjectEndpoint string `mapstructure:"project_endpoint"`
	ConnectionID    string `mapstructure:"connection_id"`
	IndexAssetName  string `mapstructure:"index_asset_name"`
	IndexVersion    string `mapstructure:"index_version"`
	APIVersion      string `mapstructure:"api_version"`
	AgentName       string `mapstructure:"agent_name"`
	EnsureCacheSecs int    `mapstructure:"ensure_cache_secs"`
}

// AssetName returns the index asset name, defaulting to the search index name.
func (f *FoundryConfig) AssetName(search *SearchConfig) string {
	if f.IndexAssetName != "" {
		return f.IndexAssetName
	}
	return search.IndexName
}

// ConnectionName extracts the connection name from a full connection
// resource ID (".../connections/<name>"). A bare name is returned unchanged.
func (f *FoundryConfig) ConnectionName() string {
	id := strings.TrimRight(f.ConnectionID, "/")
	if i := strings.LastIndex(id, "/connections/"); i >= 0 {
		return id[i+len("/connections/"):]
	}
	return id
}

// SearchConfig holds retrieval service settings.
type SearchConfig struct {
	Endpoint              string `mapstructure:"endpoint"`
	APIKey                string `mapstructure:"api_key"`
	APIVersion            string `mapstructure:"api_version"`
	IndexName             string `mapstructure:"index_name"`
	SemanticConfiguration string `mapstructure:"semantic_configuration"`
	QueryType             string `mapstructure:"query_type"`
	TopK                  int    `mapstructure:"top_k"`
	IDField               string `mapstructure:"id_field"`
	TitleField            string `mapstructure:"title_field"`
	ContentField          string `mapstructure:"content_field"`
	ReferenceField        string `mapstructure:"reference_field"`
}

// Semantic reports whether semantic ranking is requested.
func (s *SearchConfig) Semantic() bool {
	return strings.EqualFold(s.QueryType, "semantic")
}

// StorageConfig selects the artifact/output storage backend.
type StorageConfig struct {
	Provider     string       `mapstructure:"provider"`
	Container    string       `mapstructure:"container"`
	InputPrefix  string       `mapstructure:"input_prefix"`
	OutputPrefix string       `mapstructure:"output_prefix"`
	LocalDir     string       `mapstructure:"local_dir"`
	AzBlob       AzBlobConfig `mapstructure:"azblob"`
	S3           S3Config     `mapstructure:"s3"`
	MaxUploadMB  int64        `mapstructure:"max_upload_mb"`
}

// AzBlobConfig holds Azure Blob Storage settings. A connection string takes
// precedence over the account URL, which authenticates with the default
// Azure credential chain.
type AzBlobConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	AccountURL       string `mapstructure:"account_url"`
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// BatchConfig holds settings for concurrent multi-claim runs.
type BatchConfig struct {
	Concurrency      int     `mapstructure:"concurrency"`
	RatePerSecond    float64 `mapstructure:"rate_per_second"`
	MaxAttempts      int     `mapstructure:"max_attempts"`
	ClaimTimeoutSecs int     `mapstructure:"claim_timeout_secs"`
}

// ClaimTimeout returns the per-claim deadline.
func (b *BatchConfig) ClaimTimeout() time.Duration {
	return time.Duration(b.ClaimTimeoutSecs) * time.Second
}

// ResultsConfig selects where run outcomes are persisted.
type ResultsConfig struct {
	Store string `mapstructure:"store"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envBindings maps nested keys to their environment variables. Keys with
// more than one variable also accept the names used by existing deployments.
var envBindings = map[string][]string{
	"server.port":          {"CLAIMFLOW_SERVER_PORT"},
	"server.read_timeout":  {"CLAIMFLOW_SERVER_READ_TIMEOUT"},
	"server.write_timeout": {"CLAIMFLOW_SERVER_WRITE_TIMEOUT"},
	"server.environment":   {"CLAIMFLOW_SERVER_ENVIRONMENT"},

	"db.host":     {"CLAIMFLOW_DB_HOST"},
	"db.port":     {"CLAIMFLOW_DB_PORT"},
	"db.user":     {"CLAIMFLOW_DB_USER"},
	"db.password": {"CLAIMFLOW_DB_PASSWORD"},
	"db.name":     {"CLAIMFLOW_DB_NAME"},
	"db.sslmode":  {"CLAIMFLOW_DB_SSLMODE"},
	"db.max_open": {"CLAIMFLOW_DB_MAX_OPEN"},
	"db.max_idle": {"CLAIMFLOW_DB_MAX_IDLE"},

	"log.level":            {"CLAIMFLOW_LOG_LEVEL"},
	"log.format":           {"CLAIMFLOW_LOG_FORMAT"},
	"cors.allowed_origins": {"CLAIMFLOW_CORS_ALLOWED_ORIGINS"},

	"storage.provider":                 {"CLAIMFLOW_STORAGE_PROVIDER"},
	"storage.container":                {"CLAIMFLOW_STORAGE_CONTAINER"},
	"storage.input_prefix":             {"CLAIMFLOW_STORAGE_INPUT_PREFIX"},
	"storage.output_prefix":            {"CLAIMFLOW_STORAGE_OUTPUT_PREFIX"},
	"storage.local_dir":                {"CLAIMFLOW_STORAGE_LOCAL_DIR"},
	"storage.max_upload_mb":            {"CLAIMFLOW_STORAGE_MAX_UPLOAD_MB"},
	"storage.azblob.connection_string": {"CLAIMFLOW_STORAGE_AZBLOB_CONNECTION_STRING", "AZURE_STORAGE_CONNECTION_STRING"},
	"storage.azblob.account_url":       {"CLAIMFLOW_STORAGE_AZBLOB_ACCOUNT_URL"},
	"storage.s3.region":                {"CLAIMFLOW_STORAGE_S3_REGION"},
	"storage.s3.endpoint":              {"CLAIMFLOW_STORAGE_S3_ENDPOINT"},
	"storage.s3.access_key":            {"CLAIMFLOW_STORAGE_S3_ACCESS_KEY"},
	"storage.s3.secret_key":            {"CLAIMFLOW_STORAGE_S3_SECRET_KEY"},

	"vision.provider":     {"CLAIMFLOW_VISION_PROVIDER"},
	"vision.api_key":      {"CLAIMFLOW_VISION_API_KEY", "AZURE_OPENAI_API_KEY"},
	"vision.endpoint":     {"CLAIMFLOW_VISION_ENDPOINT", "AZURE_OPENAI_ENDPOINT"},
	"vision.api_version":  {"CLAIMFLOW_VISION_API_VERSION"},
	"vision.model":        {"CLAIMFLOW_VISION_MODEL", "AZURE_OPENAI_DEPLOYMENT_NAME"},
	"vision.max_tokens":   {"CLAIMFLOW_VISION_MAX_TOKENS"},
	"vision.timeout_secs": {"CLAIMFLOW_VISION_TIMEOUT_SECS"},

	"reasoning.temperature":            {"CLAIMFLOW_REASONING_TEMPERATURE"},
	"reasoning.primary.provider":       {"CLAIMFLOW_REASONING_PRIMARY_PROVIDER"},
	"reasoning.primary.api_key":        {"CLAIMFLOW_REASONING_PRIMARY_API_KEY", "AZURE_OPENAI_API_KEY"},
	"reasoning.primary.endpoint":       {"CLAIMFLOW_REASONING_PRIMARY_ENDPOINT", "AZURE_OPENAI_ENDPOINT"},
	"reasoning.primary.api_version":    {"CLAIMFLOW_REASONING_PRIMARY_API_VERSION"},
	"reasoning.primary.model":          {"CLAIMFLOW_REASONING_PRIMARY_MODEL", "MODEL_DEPLOYMENT_NAME"},
	"reasoning.primary.max_tokens":     {"CLAIMFLOW_REASONING_PRIMARY_MAX_TOKENS"},
	"reasoning.primary.timeout_secs":   {"CLAIMFLOW_REASONING_PRIMARY_TIMEOUT_SECS"},
	"reasoning.secondary.provider":     {"CLAIMFLOW_REASONING_SECONDARY_PROVIDER"},
	"reasoning.secondary.api_key":      {"CLAIMFLOW_REASONING_SECONDARY_API_KEY"},
	"reasoning.secondary.endpoint":     {"CLAIMFLOW_REASONING_SECONDARY_ENDPOINT"},
	"reasoning.secondary.api_version":  {"CLAIMFLOW_REASONING_SECONDARY_API_VERSION"},
	"reasoning.secondary.model":        {"CLAIMFLOW_REASONING_SECONDARY_MODEL"},
	"reasoning.secondary.max_tokens":   {"CLAIMFLOW_REASONING_SECONDARY_MAX_TOKENS"},
	"reasoning.secondary.timeout_secs": {"CLAIMFLOW_REASONING_SECONDARY_TIMEOUT_SECS"},

	"foundry.project_endpoint":  {"CLAIMFLOW_FOUNDRY_PROJECT_ENDPOINT", "AI_FOUNDRY_PROJECT_ENDPOINT"},
	"foundry.connection_id":     {"CLAIMFLOW_FOUNDRY_CONNECTION_ID", "AZURE_AI_CONNECTION_ID"},
	"foundry.index_asset_name":  {"CLAIMFLOW_FOUNDRY_INDEX_ASSET_NAME", "AI_SEARCH_INDEX_ASSET_NAME"},
	"foundry.index_version":     {"CLAIMFLOW_FOUNDRY_INDEX_VERSION", "AI_SEARCH_INDEX_VERSION"},
	"foundry.api_version":       {"CLAIMFLOW_FOUNDRY_API_VERSION"},
	"foundry.agent_name":        {"CLAIMFLOW_FOUNDRY_AGENT_NAME"},
	"foundry.ensure_cache_secs": {"CLAIMFLOW_FOUNDRY_ENSURE_CACHE_SECS"},

	"search.endpoint":               {"CLAIMFLOW_SEARCH_ENDPOINT", "AI_SEARCH_ENDPOINT"},
	"search.api_key":                {"CLAIMFLOW_SEARCH_API_KEY", "AI_SEARCH_API_KEY"},
	"search.api_version":            {"CLAIMFLOW_SEARCH_API_VERSION"},
	"search.index_name":             {"CLAIMFLOW_SEARCH_INDEX_NAME", "AI_SEARCH_INDEX_NAME"},
	"search.semantic_configuration": {"CLAIMFLOW_SEARCH_SEMANTIC_CONFIGURATION"},
	"search.query_type":             {"CLAIMFLOW_SEARCH_QUERY_TYPE"},
	"search.top_k":                  {"CLAIMFLOW_SEARCH_TOP_K"},
	"search.id_field":               {"CLAIMFLOW_SEARCH_ID_FIELD"},
	"search.title_field":            {"CLAIMFLOW_SEARCH_TITLE_FIELD"},
	"search.content_field":          {"CLAIMFLOW_SEARCH_CONTENT_FIELD"},
	"search.reference_field":        {"CLAIMFLOW_SEARCH_REFERENCE_FIELD"},

	"batch.concurrency":        {"CLAIMFLOW_BATCH_CONCURRENCY"},
	"batch.rate_per_second":    {"CLAIMFLOW_BATCH_RATE_PER_SECOND"},
	"batch.max_attempts":       {"CLAIMFLOW_BATCH_MAX_ATTEMPTS"},
	"batch.claim_timeout_secs": {"CLAIMFLOW_BATCH_CLAIM_TIMEOUT_SECS"},

	"results.store": {"CLAIMFLOW_RESULTS_STORE"},
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "300s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "claimflow")
	v.SetDefault("db.password", "claimflow_secret")
	v.SetDefault("db.name", "claimflow_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 10)
	v.SetDefault("db.max_idle", 5)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:8501,http://127.0.0.1:8501")

	// Storage defaults
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.container", "statements")
	v.SetDefault("storage.input_prefix", "")
	v.SetDefault("storage.output_prefix", "results")
	v.SetDefault("storage.local_dir", ".")
	v.SetDefault("storage.max_upload_mb", 20)
	v.SetDefault("storage.s3.region", "us-east-1")

	// Vision defaults
	v.SetDefault("vision.provider", "azure-openai")
	v.SetDefault("vision.api_version", "2024-10-21")
	v.SetDefault("vision.model", "gpt-4o")
	v.SetDefault("vision.max_tokens", 2000)
	v.SetDefault("vision.timeout_secs", 120)

	// Reasoning defaults
	v.SetDefault("reasoning.temperature", 0.1)
	v.SetDefault("reasoning.primary.provider", "azure-openai")
	v.SetDefault("reasoning.primary.api_version", "2024-10-21")
	v.SetDefault("reasoning.primary.model", "gpt-4o-mini")
	v.SetDefault("reasoning.primary.max_tokens", 4096)
	v.SetDefault("reasoning.primary.timeout_secs", 120)
	v.SetDefault("reasoning.secondary.provider", "")
	v.SetDefault("reasoning.secondary.max_tokens", 4096)
	v.SetDefault("reasoning.secondary.timeout_secs", 120)

	// Retrieval defaults
	v.SetDefault("foundry.index_version", "1")
	v.SetDefault("foundry.api_version", "2025-05-01")
	v.SetDefault("foundry.agent_name", "PolicyEvaluationAgent")
	v.SetDefault("foundry.ensure_cache_secs", 600)
	v.SetDefault("search.api_version", "2024-07-01")
	v.SetDefault("search.index_name", "insurance-documents-index")
	v.SetDefault("search.semantic_configuration", "default")
	v.SetDefault("search.query_type", "semantic")
	v.SetDefault("search.top_k", 5)
	v.SetDefault("search.id_field", "id")
	v.SetDefault("search.title_field", "title")
	v.SetDefault("search.content_field", "content")
	v.SetDefault("search.reference_field", "source")

	// Batch defaults
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.rate_per_second", 0)
	v.SetDefault("batch.max_attempts", 1)
	v.SetDefault("batch.claim_timeout_secs", 300)

	v.SetDefault("results.store", "none")
}

// Load reads configuration from an optional claimflow.yaml in the working
// directory and from environment variables with the CLAIMFLOW_ prefix.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("claimflow")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CLAIMFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		_ = v.BindEnv(args...)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Container platforms set a PORT env var. Use it if the server port was not set explicitly.
	if port := os.Getenv("PORT"); port != "" && os.Getenv("CLAIMFLOW_SERVER_PORT") == "" {
		cfg.Server.Port = ":" + port
	}

	// CORS origins arrive as a comma-separated string from the environment.
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{AllowedOrigins: corsOrigins}

	return cfg, nil
}

// ValidateExtraction checks the settings the extraction stage needs.
func (c *Config) ValidateExtraction() error {
	return requireProvider("vision", &c.Vision)
}

// ValidateStructuring checks the settings the structuring stage needs.
func (c *Config) ValidateStructuring() error {
	return requireProvider("reasoning.primary", &c.Reasoning.Primary)
}

// ValidateEvaluation checks the settings the policy evaluation stage needs.
func (c *Config) ValidateEvaluation() error {
	if err := c.ValidateStructuring(); err != nil {
		return err
	}
	missing := missingKeys(map[string]string{
		"foundry.project_endpoint": c.Foundry.ProjectEndpoint,
		"foundry.connection_id":    c.Foundry.ConnectionID,
		"foundry.index_version":    c.Foundry.IndexVersion,
		"search.endpoint":          c.Search.Endpoint,
		"search.index_name":        c.Search.IndexName,
	})
	if len(missing) > 0 {
		return eris.Wrapf(domain.ErrMissingConfig, "config: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateStorage checks the settings the configured storage backend needs.
func (c *Config) ValidateStorage() error {
	var missing []string
	switch c.Storage.Provider {
	case "local":
		missing = missingKeys(map[string]string{"storage.local_dir": c.Storage.LocalDir})
	case "azblob":
		if c.Storage.AzBlob.ConnectionString == "" && c.Storage.AzBlob.AccountURL == "" {
			missing = []string{"storage.azblob.connection_string or storage.azblob.account_url"}
		}
		missing = append(missing, missingKeys(map[string]string{"storage.container": c.Storage.Container})...)
	case "s3":
		missing = missingKeys(map[string]string{
			"storage.container": c.Storage.Container,
			"storage.s3.region": c.Storage.S3.Region,
		})
	default:
		return eris.Wrapf(domain.ErrMissingConfig, "config: unknown storage provider %q", c.Storage.Provider)
	}
	if len(missing) > 0 {
		return eris.Wrapf(domain.ErrMissingConfig, "config: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateResults checks the settings the configured results store needs.
func (c *Config) ValidateResults() error {
	switch c.Results.Store {
	case "", "none":
		return nil
	case "postgres":
		missing := missingKeys(map[string]string{"db.host": c.DB.Host, "db.name": c.DB.Name})
		if len(missing) > 0 {
			return eris.Wrapf(domain.ErrMissingConfig, "config: %s", strings.Join(missing, ", "))
		}
		return nil
	default:
		return eris.Wrapf(domain.ErrMissingConfig, "config: unknown results store %q", c.Results.Store)
	}
}

func requireProvider(name string, p *ProviderConfig) error {
	if !p.Configured() {
		return eris.Wrapf(domain.ErrMissingConfig, "config: %s.provider", name)
	}
	required := map[string]string{name + ".api_key": p.APIKey}
	if p.Provider == "azure-openai" {
		required[name+".endpoint"] = p.Endpoint
		required[name+".model"] = p.Model
	}
	if missing := missingKeys(required); len(missing) > 0 {
		return eris.Wrapf(domain.ErrMissingConfig, "config: %s", strings.Join(missing, ", "))
	}
	return nil
}

func missingKeys(values map[string]string) []string {
	var missing []string
	for k, v := range values {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return missing
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
