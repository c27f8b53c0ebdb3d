package credstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	gpostgres "gorm.io/driver/postgres"

	gsqlite "github.com/glebarez/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// credentialRow is the gorm model backing both the sqlite and postgres
// backends; Record is the backend-neutral type callers see.
type credentialRow struct {
	Username     string `gorm:"primaryKey"`
	PasswordHash string
	Mechanism    string
	CreatedAt    time.Time
}

// SQL is a Store backed by gorm, usable with either the sqlite or postgres
// dialector depending on how it was opened.
type SQL struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if necessary) a SQLite-backed credential
// store at path, running pending migrations first.
func OpenSQLite(path string) (*SQL, error) {
	if err := runMigrations("sqlite3", "sqlite://"+path); err != nil {
		return nil, fmt.Errorf("migrate sqlite credstore: %w", err)
	}
	db, err := gorm.Open(gsqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite credstore: %w", err)
	}
	return &SQL{db: db}, nil
}

// OpenPostgres opens a PostgreSQL-backed credential store using dsn,
// running pending migrations first.
func OpenPostgres(dsn string) (*SQL, error) {
	if err := runMigrations("postgres", dsn); err != nil {
		return nil, fmt.Errorf("migrate postgres credstore: %w", err)
	}
	db, err := gorm.Open(gpostgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres credstore: %w", err)
	}
	return &SQL{db: db}, nil
}

func runMigrations(driver, dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance(driver+"-src", src, dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *SQL) Lookup(ctx context.Context, username string) (*Record, error) {
	var row credentialRow
	if err := s.db.WithContext(ctx).First(&row, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &Record{Username: row.Username, PasswordHash: row.PasswordHash, Mechanism: row.Mechanism, CreatedAt: row.CreatedAt}, nil
}

func (s *SQL) Put(ctx context.Context, rec *Record) error {
	row := credentialRow{Username: rec.Username, PasswordHash: rec.PasswordHash, Mechanism: rec.Mechanism, CreatedAt: rec.CreatedAt}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *SQL) Delete(ctx context.Context, username string) error {
	return s.db.WithContext(ctx).Delete(&credentialRow{}, "username = ?", username).Error
}

func (s *SQL) List(ctx context.Context) ([]*Record, error) {
	var rows []credentialRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, &Record{Username: row.Username, PasswordHash: row.PasswordHash, Mechanism: row.Mechanism, CreatedAt: row.CreatedAt})
	}
	return out, nil
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Store = (*SQL)(nil)
