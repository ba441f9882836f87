package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimflow/internal/config"
	"claimflow/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.Equal(t, "statements", cfg.Storage.Container)
	assert.Equal(t, 2000, cfg.Vision.MaxTokens)
	assert.Equal(t, "gpt-4o-mini", cfg.Reasoning.Primary.Model)
	assert.InDelta(t, 0.1, cfg.Reasoning.Temperature, 1e-6)
	assert.Equal(t, "insurance-documents-index", cfg.Search.IndexName)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.True(t, cfg.Search.Semantic())
	assert.Equal(t, "1", cfg.Foundry.IndexVersion)
	assert.Equal(t, "PolicyEvaluationAgent", cfg.Foundry.AgentName)
	assert.Equal(t, 1, cfg.Batch.MaxAttempts)
	assert.Equal(t, 300*time.Second, cfg.Batch.ClaimTimeout())
	assert.Equal(t, "none", cfg.Results.Store)
	assert.Equal(t, []string{"http://localhost:8501", "http://127.0.0.1:8501"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_PrefixedEnvironment(t *testing.T) {
	t.Setenv("CLAIMFLOW_STORAGE_PROVIDER", "azblob")
	t.Setenv("CLAIMFLOW_REASONING_PRIMARY_PROVIDER", "anthropic")
	t.Setenv("CLAIMFLOW_BATCH_CONCURRENCY", "9")
	t.Setenv("CLAIMFLOW_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "azblob", cfg.Storage.Provider)
	assert.Equal(t, "anthropic", cfg.Reasoning.Primary.Provider)
	assert.Equal(t, 9, cfg.Batch.Concurrency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_DeploymentAliases(t *testing.T) {
	t.Setenv("AI_FOUNDRY_PROJECT_ENDPOINT", "https://proj.services.ai.azure.com/api/projects/claims")
	t.Setenv("MODEL_DEPLOYMENT_NAME", "gpt-4o-mini-prod")
	t.Setenv("AZURE_AI_CONNECTION_ID", "/subscriptions/s/resourceGroups/r/providers/p/accounts/a/projects/claims/connections/policy-search")
	t.Setenv("AI_SEARCH_INDEX_NAME", "policies")
	t.Setenv("AI_SEARCH_INDEX_VERSION", "3")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://proj.services.ai.azure.com/api/projects/claims", cfg.Foundry.ProjectEndpoint)
	assert.Equal(t, "gpt-4o-mini-prod", cfg.Reasoning.Primary.Model)
	assert.Equal(t, "policy-search", cfg.Foundry.ConnectionName())
	assert.Equal(t, "policies", cfg.Search.IndexName)
	assert.Equal(t, "policies", cfg.Foundry.AssetName(&cfg.Search))
	assert.Equal(t, "3", cfg.Foundry.IndexVersion)
}

func TestLoad_PrefixedNameWinsOverAlias(t *testing.T) {
	t.Setenv("CLAIMFLOW_REASONING_PRIMARY_MODEL", "explicit")
	t.Setenv("MODEL_DEPLOYMENT_NAME", "alias")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "explicit", cfg.Reasoning.Primary.Model)
}

func TestLoad_PlatformPort(t *testing.T) {
	t.Setenv("PORT", "9000")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Port)
}

func TestFoundryConfig_ConnectionName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"/subscriptions/x/connections/search-conn", "search-conn"},
		{"/subscriptions/x/connections/search-conn/", "search-conn"},
		{"search-conn", "search-conn"},
		{"", ""},
	}
	for _, tt := range tests {
		f := config.FoundryConfig{ConnectionID: tt.id}
		assert.Equal(t, tt.want, f.ConnectionName(), tt.id)
	}
}

func TestFoundryConfig_AssetNameOverride(t *testing.T) {
	f := config.FoundryConfig{IndexAssetName: "policy-asset"}
	assert.Equal(t, "policy-asset", f.AssetName(&config.SearchConfig{IndexName: "idx"}))
}

func validConfig() *config.Config {
	return &config.Config{
		Vision: config.ProviderConfig{Provider: "openai", APIKey: "k"},
		Reasoning: config.ReasoningConfig{
			Primary: config.ProviderConfig{Provider: "azure-openai", APIKey: "k", Endpoint: "https://aoai", Model: "gpt-4o-mini"},
		},
		Foundry: config.FoundryConfig{ProjectEndpoint: "https://proj", ConnectionID: "conn", IndexVersion: "1"},
		Search:  config.SearchConfig{Endpoint: "https://search", IndexName: "idx"},
		Storage: config.StorageConfig{Provider: "local", LocalDir: "."},
	}
}

func TestValidate_Success(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.ValidateExtraction())
	assert.NoError(t, cfg.ValidateStructuring())
	assert.NoError(t, cfg.ValidateEvaluation())
	assert.NoError(t, cfg.ValidateStorage())
	assert.NoError(t, cfg.ValidateResults())
}

func TestValidateStructuring_MissingProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Reasoning.Primary = config.ProviderConfig{}

	err := cfg.ValidateStructuring()

	assert.ErrorIs(t, err, domain.ErrMissingConfig)
}

func TestValidateStructuring_AzureNeedsEndpointAndDeployment(t *testing.T) {
	cfg := validConfig()
	cfg.Reasoning.Primary.Endpoint = ""
	cfg.Reasoning.Primary.Model = ""

	err := cfg.ValidateStructuring()

	require.ErrorIs(t, err, domain.ErrMissingConfig)
	assert.Contains(t, err.Error(), "reasoning.primary.endpoint")
	assert.Contains(t, err.Error(), "reasoning.primary.model")
}

func TestValidateEvaluation_MissingRetrieval(t *testing.T) {
	cfg := validConfig()
	cfg.Foundry.ProjectEndpoint = ""
	cfg.Search.Endpoint = ""

	err := cfg.ValidateEvaluation()

	require.ErrorIs(t, err, domain.ErrMissingConfig)
	assert.Contains(t, err.Error(), "foundry.project_endpoint")
	assert.Contains(t, err.Error(), "search.endpoint")
}

func TestValidateStorage(t *testing.T) {
	cfg := validConfig()

	cfg.Storage = config.StorageConfig{Provider: "azblob", Container: "statements"}
	assert.ErrorIs(t, cfg.ValidateStorage(), domain.ErrMissingConfig)

	cfg.Storage.AzBlob.AccountURL = "https://acct.blob.core.windows.net"
	assert.NoError(t, cfg.ValidateStorage())

	cfg.Storage = config.StorageConfig{Provider: "s3", Container: "bucket", S3: config.S3Config{Region: "us-east-1"}}
	assert.NoError(t, cfg.ValidateStorage())

	cfg.Storage = config.StorageConfig{Provider: "ftp"}
	assert.ErrorIs(t, cfg.ValidateStorage(), domain.ErrMissingConfig)
}

func TestValidateResults(t *testing.T) {
	cfg := validConfig()

	cfg.Results.Store = "postgres"
	cfg.DB = config.DBConfig{Host: "localhost", Name: "claimflow"}
	assert.NoError(t, cfg.ValidateResults())

	cfg.Results.Store = "mongo"
	assert.ErrorIs(t, cfg.ValidateResults(), domain.ErrMissingConfig)
}

func TestDBConfig_DSN(t *testing.T) {
	db := config.DBConfig{User: "u", Password: "p", Host: "h", Port: 5432, Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", db.DSN())
}

func TestInitLogger(t *testing.T) {
	assert.NoError(t, config.InitLogger(config.LogConfig{Level: "debug", Format: "console"}))
	assert.NoError(t, config.InitLogger(config.LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, config.InitLogger(config.LogConfig{Level: "loud", Format: "json"}))
}
