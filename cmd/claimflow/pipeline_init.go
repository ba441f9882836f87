package main

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"claimflow/internal/domain"
	"claimflow/internal/extraction"
	"claimflow/internal/pipeline"
	"claimflow/internal/policy"
	"claimflow/internal/port"
	"claimflow/internal/reasoning"
	_ "claimflow/internal/reasoning/anthropic"
	_ "claimflow/internal/reasoning/openai"
	"claimflow/internal/repository/postgres"
	"claimflow/internal/search/azure"
	"claimflow/internal/service"
	"claimflow/internal/structuring"
)

// envOptions selects the stages a command needs.
type envOptions struct {
	Extract  bool
	Evaluate bool
	Results  bool
}

// pipelineEnv holds the collaborators shared by the processing commands.
type pipelineEnv struct {
	Adapter *extraction.Adapter
	Builder *structuring.Builder
	// Evaluator is nil when evaluation is skipped.
	Evaluator *policy.Evaluator
	// Runs is nil when no results store is configured.
	Runs port.ClaimRunRepository
	db   *sqlx.DB
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.db != nil {
		_ = pe.db.Close()
	}
}

// RunnerFactory returns a factory for orchestrators reading from the given
// artifact reader.
func (pe *pipelineEnv) RunnerFactory() service.RunnerFactory {
	return func(reader port.ArtifactReader) pipeline.Runner {
		var evaluator pipeline.PolicyEvaluator
		if pe.Evaluator != nil {
			evaluator = pe.Evaluator
		}
		return pipeline.NewOrchestrator(pe.Adapter.WithReader(reader), pe.Builder, evaluator, pipeline.Options{
			EvaluateEnabled: pe.Evaluator != nil,
		})
	}
}

// initPipeline validates configuration and builds the requested stages.
// Callers should defer env.Close().
func initPipeline(opts envOptions) (*pipelineEnv, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}

	env := &pipelineEnv{}
	var err error

	if opts.Extract {
		if env.Adapter, err = newAdapter(); err != nil {
			return nil, err
		}
	}
	if env.Builder, err = newBuilder(); err != nil {
		return nil, err
	}
	if opts.Evaluate {
		if env.Evaluator, err = newEvaluator(); err != nil {
			return nil, err
		}
	}
	if opts.Results {
		if env.Runs, env.db, err = openResults(); err != nil {
			return nil, err
		}
	}
	return env, nil
}

func validate(opts envOptions) error {
	if opts.Extract {
		if err := cfg.ValidateExtraction(); err != nil {
			return err
		}
	}
	if err := cfg.ValidateStructuring(); err != nil {
		return err
	}
	if opts.Evaluate {
		if err := cfg.ValidateEvaluation(); err != nil {
			return err
		}
	}
	if opts.Results {
		return cfg.ValidateResults()
	}
	return nil
}

func newAdapter() (*extraction.Adapter, error) {
	vision, err := reasoning.NewVisionExtractor(&cfg.Vision)
	if err != nil {
		return nil, eris.Wrap(err, "init vision extractor")
	}
	return extraction.NewAdapter(extraction.FileReader{}, vision), nil
}

func newBuilder() (*structuring.Builder, error) {
	reasoner, err := reasoning.NewFromConfig(&cfg.Reasoning)
	if err != nil {
		return nil, eris.Wrap(err, "init reasoner")
	}
	return structuring.NewBuilder(reasoner, structuring.Options{
		Model:       cfg.Reasoning.Primary.Model,
		Temperature: cfg.Reasoning.Temperature,
		MaxTokens:   cfg.Reasoning.Primary.MaxTokens,
	}), nil
}

func newEvaluator() (*policy.Evaluator, error) {
	reasoner, err := reasoning.NewFromConfig(&cfg.Reasoning)
	if err != nil {
		return nil, eris.Wrap(err, "init reasoner")
	}
	registry, err := azure.NewIndexClient(&cfg.Foundry, azure.Auth{})
	if err != nil {
		return nil, eris.Wrap(err, "init index registry")
	}
	retriever, err := azure.NewSearchClient(&cfg.Search, azure.Auth{})
	if err != nil {
		return nil, eris.Wrap(err, "init search client")
	}

	ttl := time.Duration(cfg.Foundry.EnsureCacheSecs) * time.Second
	ensurer := policy.NewEnsurer(registry, cfg.Foundry.ConnectionName(), cfg.Search.IndexName, ttl)
	return policy.NewEvaluator(ensurer, retriever, reasoner, policy.Options{
		AssetName:    cfg.Foundry.AssetName(&cfg.Search),
		AssetVersion: cfg.Foundry.IndexVersion,
		SearchIndex:  cfg.Search.IndexName,
		TopK:         cfg.Search.TopK,
		Semantic:     cfg.Search.Semantic(),
		Model:        cfg.Reasoning.Primary.Model,
		AgentName:    cfg.Foundry.AgentName,
		Temperature:  cfg.Reasoning.Temperature,
		MaxTokens:    cfg.Reasoning.Primary.MaxTokens,
	}), nil
}

// openResults connects the configured results store. It returns a nil
// repository when persistence is disabled.
func openResults() (port.ClaimRunRepository, *sqlx.DB, error) {
	if cfg.Results.Store != "postgres" {
		return nil, nil, nil
	}
	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	zap.L().Info("connected to results store", zap.String("host", cfg.DB.Host), zap.String("db", cfg.DB.Name))
	return postgres.NewClaimRunRepo(db), db, nil
}

// requireResults opens the results store and fails when none is configured.
func requireResults() (port.ClaimRunRepository, *sqlx.DB, error) {
	if err := cfg.ValidateResults(); err != nil {
		return nil, nil, err
	}
	runs, db, err := openResults()
	if err != nil {
		return nil, nil, err
	}
	if runs == nil {
		return nil, nil, eris.Wrap(domain.ErrMissingConfig, "results.store must be postgres")
	}
	return runs, db, nil
}
