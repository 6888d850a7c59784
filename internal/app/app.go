package app

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kyofin/kessan/internal/clients/edinet"
	"github.com/kyofin/kessan/internal/clients/jquants"
	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/server"
	"github.com/kyofin/kessan/internal/services/analysis"
	"github.com/kyofin/kessan/internal/services/filings"
	"github.com/kyofin/kessan/internal/services/master"
	badgerstore "github.com/kyofin/kessan/internal/storage/badger"
)

// App wires configuration, clients, services, and servers together. All
// dependencies are explicit; nothing reaches for ambient state.
type App struct {
	Config  *common.Config
	Logger  *common.Logger
	Storage *badgerstore.Store

	JQuants *jquants.Client
	EDINET  *edinet.Client

	Master   *master.Service
	Filings  *filings.Service
	Analysis *analysis.Service

	Server    *server.Server
	MCPServer *mcpserver.MCPServer
}

func New(cfg *common.Config) (*App, error) {
	logger := common.NewLoggerFromConfig(cfg.Logging)

	storage, err := badgerstore.NewStore(cfg.Storage.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	jq, err := jquants.NewClient(cfg.Clients.JQuants.APIKey,
		jquants.WithBaseURL(cfg.Clients.JQuants.BaseURL),
		jquants.WithRateLimit(cfg.Clients.JQuants.RateLimit),
		jquants.WithTimeout(cfg.Clients.JQuants.Timeout()),
		jquants.WithLogger(logger),
	)
	if err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("initialize jquants client: %w", err)
	}

	ed, err := edinet.NewClient(cfg.Clients.EDINET.APIKey, cfg.Storage.FilingCachePath,
		edinet.WithBaseURL(cfg.Clients.EDINET.BaseURL),
		edinet.WithWorkers(cfg.Clients.EDINET.Workers),
		edinet.WithLogger(logger),
	)
	if err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("initialize edinet client: %w", err)
	}

	masterSvc := master.NewService(jq, storage.Master(), master.WithLogger(logger))
	filingsSvc := filings.NewService(ed, cfg.Analysis.MaxYears,
		filings.WithLogger(logger),
		filings.WithDocumentDir(cfg.Storage.FilingDocumentPath),
	)
	analysisSvc := analysis.NewService(jq, filingsSvc, masterSvc, storage.Analysis(),
		cfg.Analysis, analysis.WithLogger(logger))

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Storage:  storage,
		JQuants:  jq,
		EDINET:   ed,
		Master:   masterSvc,
		Filings:  filingsSvc,
		Analysis: analysisSvc,
	}
	a.Server = server.NewServer(cfg.Server, analysisSvc, masterSvc, logger)
	a.MCPServer = a.buildMCPServer()
	return a, nil
}

func (a *App) buildMCPServer() *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("kessan", common.Version,
		mcpserver.WithToolCapabilities(true),
	)
	s.AddTool(createVersionTool(), handleGetVersion())
	s.AddTool(createAnalyzeEquityTool(), handleAnalyzeEquity(a.Analysis, a.Logger))
	s.AddTool(createSearchCompaniesTool(), handleSearchCompanies(a.Master, a.Logger))
	s.AddTool(createFinancialSummaryTool(), handleFinancialSummary(a.Analysis, a.Logger))
	return s
}

// Close releases resources in reverse dependency order.
func (a *App) Close() error {
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("storage close failed")
			return err
		}
	}
	a.Logger.Info().Msg("application closed")
	return nil
}
