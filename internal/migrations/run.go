// Package migrations применяет SQL-миграции схемы лиги из каталога migrations/.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// ErrDirty: предыдущий запуск упал посреди миграции, схему нужно починить вручную
// (migrate force <version>) до повторного запуска.
var ErrDirty = errors.New("schema is dirty")

// Result описывает версию схемы до и после применения миграций.
type Result struct {
	From    uint
	To      uint
	Applied bool
}

// Run применяет все новые миграции из path.
// Схема, уже находящаяся на последней версии, не считается ошибкой.
func Run(db *sql.DB, path string, log *slog.Logger) (Result, error) {
	const op = "migrations.Run"

	m, err := newMigrator(db, path)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	from, err := version(m)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	res := Result{From: from, To: from}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Debug("schema is up to date", slog.Uint64("version", uint64(from)))
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	res.To, err = version(m)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	res.Applied = true
	log.Info("migrations applied",
		slog.Uint64("from", uint64(res.From)),
		slog.Uint64("to", uint64(res.To)),
	)
	return res, nil
}

// newMigrator не закрывает m: Close закрыл бы переданный *sql.DB.
func newMigrator(db *sql.DB, path string) (*migrate.Migrate, error) {
	driver, err := pgxv5.WithInstance(db, &pgxv5.Config{})
	if err != nil {
		return nil, err
	}
	return migrate.NewWithDatabaseInstance("file://"+path, "pgx_v5", driver)
}

// version возвращает текущую версию схемы; 0 для пустой базы.
func version(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if dirty {
		return v, fmt.Errorf("%w at version %d", ErrDirty, v)
	}
	return v, nil
}
