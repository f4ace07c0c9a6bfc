package seeddb

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Zoned is implemented by models that live in a distribution zone
type Zoned interface {
	SeedZone() string
}

// Colocated is implemented by models whose rows are colocated by a key column
type Colocated interface {
	SeedColocateBy() string
}

// orm returns a gorm handle sharing the database connection
func (db *DB) orm() (*gorm.DB, error) {
	db.gormOnce.Do(func() {
		db.gormDB, db.gormErr = gorm.Open(sqlite.Dialector{Conn: db.sqlDB}, &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
	})
	if db.gormErr != nil {
		return nil, &DBError{
			Code:    CodeOpenFailed,
			Message: "failed to initialize model mapper",
			Err:     db.gormErr,
		}
	}
	return db.gormDB, nil
}

// ModelTable returns the table name a model maps to
func (db *DB) ModelTable(model any) (string, error) {
	g, err := db.orm()
	if err != nil {
		return "", err
	}
	stmt := &gorm.Statement{DB: g}
	if err := stmt.Parse(model); err != nil {
		return "", &DBError{
			Code:    CodeInvalidStatement,
			Message: fmt.Sprintf("failed to parse model %T", model),
			Err:     err,
		}
	}
	return stmt.Schema.Table, nil
}

// CreateModel creates the table for a gorm-tagged struct. A model
// implementing Zoned is bound to its zone, which must exist. An existing
// table yields an ALREADY_EXISTS error.
func (db *DB) CreateModel(ctx context.Context, model any) error {
	g, err := db.orm()
	if err != nil {
		return err
	}
	table, err := db.ModelTable(model)
	if err != nil {
		return err
	}

	migrator := g.WithContext(ctx).Migrator()
	if migrator.HasTable(model) {
		return &DBError{
			Code:    CodeAlreadyExists,
			Message: fmt.Sprintf("table already exists: %s", table),
		}
	}

	zone := ""
	if zoned, ok := model.(Zoned); ok {
		zone = zoned.SeedZone()
		exists, err := zoneExists(ctx, db.sqlDB, zone)
		if err != nil {
			return err
		}
		if !exists {
			return &DBError{
				Code:    CodeNotFound,
				Message: fmt.Sprintf("zone not found: %s", zone),
			}
		}
	}

	if err := migrator.CreateTable(model); err != nil {
		return translate(err, fmt.Sprintf("failed to create table %s", table))
	}

	if zone != "" {
		colocateBy := ""
		if colocated, ok := model.(Colocated); ok {
			colocateBy = colocated.SeedColocateBy()
		}
		_, err := db.sqlDB.ExecContext(ctx, `
			INSERT OR REPLACE INTO seed_table_zones (table_name, zone_name, colocate_by)
			VALUES (?, ?, ?)
		`, table, zone, colocateBy)
		if err != nil {
			return &DBError{
				Code:    CodeExecFailed,
				Message: "failed to bind table to zone",
				Err:     err,
			}
		}
	}
	return nil
}

// DropModel drops the table of a gorm-tagged struct and its zone binding
func (db *DB) DropModel(ctx context.Context, model any) error {
	g, err := db.orm()
	if err != nil {
		return err
	}
	table, err := db.ModelTable(model)
	if err != nil {
		return err
	}

	migrator := g.WithContext(ctx).Migrator()
	if !migrator.HasTable(model) {
		return &DBError{
			Code:    CodeNotFound,
			Message: fmt.Sprintf("table not found: %s", table),
		}
	}
	if err := migrator.DropTable(model); err != nil {
		return translate(err, fmt.Sprintf("failed to drop table %s", table))
	}
	if _, err := db.sqlDB.ExecContext(ctx, `DELETE FROM seed_table_zones WHERE table_name = ?`, table); err != nil {
		return &DBError{
			Code:    CodeExecFailed,
			Message: "failed to unbind table from zone",
			Err:     err,
		}
	}
	return nil
}
