package database

// Config holds settings for the embedded sqlite store.
type Config struct {
	// Path points at the sqlite database file; parent directories are created on connect.
	Path string `yaml:"path" envconfig:"DB_PATH"`
	// MigrationsDir overrides the default ./migrations location.
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}
