package arcana

import (
	"fmt"

	"arcana/internal/config"
	"arcana/internal/source"
	"arcana/internal/storage"
)

// resolveSource maps a --source flag value to a concrete DataSource.
// Coinbase is the only exchange Arcana ships an adapter for today.
func resolveSource(name string) (source.DataSource, error) {
	switch name {
	case "", "coinbase":
		return source.NewCoinbase(), nil
	default:
		return nil, fmt.Errorf("unknown source %q (supported: coinbase)", name)
	}
}

func openStorage(cfg *config.Config) (storage.Storage, error) {
	return storage.Open(storage.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
	})
}
