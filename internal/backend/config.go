package backend

import (
	"fmt"

	"saldo/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		PostgresHost:     appConfig.PostgresHost,
		PostgresPort:     appConfig.PostgresPort,
		PostgresUser:     appConfig.PostgresUser,
		PostgresPassword: appConfig.PostgresPassword,
		PostgresDB:       appConfig.PostgresDB,
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
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}

	case PostgresBackend:
		if c.PostgresHost == "" {
			return fmt.Errorf("Postgres host is required for postgres backend")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("Postgres user is required for postgres backend")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("Postgres database name is required for postgres backend")
		}

	case MemoryBackend:
		// Memory backend doesn't require additional configuration
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, PostgresBackend, MemoryBackend}
}
