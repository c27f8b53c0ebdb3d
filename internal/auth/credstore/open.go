package credstore

import "fmt"

// Open constructs the configured backend. backend is one of "memory",
// "sqlite", "postgres"; dsn is ignored for memory.
func Open(backend, dsn string) (Store, error) {
	switch backend {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		if dsn == "" {
			dsn = "virtrpcd-credentials.db"
		}
		return OpenSQLite(dsn)
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("credstore: postgres backend requires a dsn")
		}
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("credstore: unknown backend %q", backend)
	}
}
