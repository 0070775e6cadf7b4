package backend

import (
	"errors"
	"fmt"

	"kakeibo/internal/auth"
	"kakeibo/internal/config"
	gsheet "kakeibo/internal/sheets/google"
)

// Config holds what CreateBackend needs for each backend type.
type Config struct {
	Type BackendType

	SQLiteDBPath string

	Sheets      gsheet.Config
	Credentials auth.Credentials
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		Sheets: gsheet.Config{
			SpreadsheetID: appConfig.GoogleSpreadsheetID,
			SheetName:     appConfig.GoogleSheetName,
		},
		Credentials: auth.Credentials{
			ClientJSON: appConfig.GoogleOAuthClientJSON,
			ClientFile: appConfig.GoogleOAuthClientFile,
			TokenJSON:  appConfig.GoogleOAuthTokenJSON,
			TokenFile:  appConfig.GoogleOAuthTokenFile,
		},
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case SheetsBackend:
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets backend")
		}
		if c.Credentials.ClientFile == "" && c.Credentials.ClientJSON == "" {
			return errors.New("either a client file or client JSON must be provided for sheets backend")
		}
		if c.Credentials.TokenFile == "" && c.Credentials.TokenJSON == "" {
			return errors.New("either a token file or token JSON must be provided for sheets backend")
		}
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, SheetsBackend, MemoryBackend}
}
