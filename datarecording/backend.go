package datarecording

import "fmt"

// Names of the supported backends.
const (
	SQLiteBackend     = "sqlite"
	ClickHouseBackend = "clickhouse"
)

// Config selects where the results go.
type Config struct {
	// Backend is SQLiteBackend or ClickHouseBackend. Empty means SQLite.
	Backend string

	// Path is the database file name without extension, for SQLite.
	Path string

	ClickHouse ClickHouseOptions
}

// NewWithConfig creates the recorder that the config asks for.
func NewWithConfig(c Config) (DataRecorder, error) {
	switch c.Backend {
	case "", SQLiteBackend:
		return New(c.Path), nil
	case ClickHouseBackend:
		return NewClickHouse(c.ClickHouse)
	default:
		return nil, fmt.Errorf("unknown recording backend %q", c.Backend)
	}
}
