package backend

import (
	"context"
	"fmt"

	"kakeibo/internal/auth"
	applog "kakeibo/internal/log"
	gsheet "kakeibo/internal/sheets/google"
	"kakeibo/internal/sheets/memory"
	"kakeibo/internal/storage"
)

// Factory builds stores from configuration.
type Factory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) *Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Factory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// CreateBackend opens the store cfg names. A sheets backend starts even when
// nobody has logged in yet; its requests fail with auth.ErrReauthorize until
// a token is stored.
func (f *Factory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(cfg)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, cfg)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

func (f *Factory) createSQLiteBackend(cfg Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)

	return &BackendResult{
		Store:   repo,
		Ready:   repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *Factory) createSheetsBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	oauthCfg, err := cfg.Credentials.ClientConfig()
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenStore(cfg.Credentials)
	if err != nil {
		return nil, err
	}
	src := auth.NewSource(ctx, oauthCfg, tokens)

	client, err := gsheet.NewWithTokenSource(ctx, cfg.Sheets, src)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	if _, err := src.Token(); err != nil {
		f.logger.Warn("No usable Google token; requests will ask for login", "error", err)
	}
	f.logger.Info("Initialized Google Sheets backend",
		"spreadsheet_id", cfg.Sheets.SpreadsheetID,
		"sheet", cfg.Sheets.SheetName)

	return &BackendResult{
		Store: client,
		Ready: func(context.Context) error {
			_, err := src.Token()
			return err
		},
		Logout: func(context.Context) error {
			return src.Logout()
		},
	}, nil
}

func (f *Factory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Info("Initialized memory backend")
	return &BackendResult{Store: memory.New()}, nil
}
