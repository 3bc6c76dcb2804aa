package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// SQLStore реализует BackingStore поверх database/sql + MySQL/MariaDB.
// Grounded on the teacher's MariaPositionRepo: table-creation-on-open,
// INSERT ... ON DUPLICATE KEY UPDATE, transaction-scoped batch writes.
// There is no single-row lookup, so sql.ErrNoRows is never mapped.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore подключается к dsn и создаёт схему, если она отсутствует.
func NewSQLStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MySQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MySQL: %w", err)
	}

	s := &SQLStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pv_regions (
			region_id CHAR(36) PRIMARY KEY,
			cx DOUBLE NOT NULL,
			cy DOUBLE NOT NULL,
			cz DOUBLE NOT NULL,
			radius DOUBLE NOT NULL
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS pv_objects (
			uuid CHAR(36) PRIMARY KEY,
			region_id CHAR(36) NOT NULL,
			type VARCHAR(64) NOT NULL,
			x DOUBLE NOT NULL,
			y DOUBLE NOT NULL,
			z DOUBLE NOT NULL,
			payload_inline MEDIUMBLOB,
			payload_ref VARCHAR(36) NULL,
			INDEX idx_region (region_id)
		) ENGINE=InnoDB`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("ошибка создания схемы: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) ListRegions(ctx context.Context) ([]RegionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT region_id, cx, cy, cz, radius FROM pv_regions`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения реестра регионов: %w", err)
	}
	defer rows.Close()

	var result []RegionRecord
	for rows.Next() {
		var rec RegionRecord
		var regionIDStr string
		if err := rows.Scan(&regionIDStr, &rec.CX, &rec.CY, &rec.CZ, &rec.Radius); err != nil {
			return nil, fmt.Errorf("ошибка разбора строки региона: %w", err)
		}
		rec.RegionID, err = uuid.Parse(regionIDStr)
		if err != nil {
			return nil, fmt.Errorf("некорректный region_id %q в хранилище: %w", regionIDStr, err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *SQLStore) UpsertRegion(ctx context.Context, rec RegionRecord) error {
	query := `
		INSERT INTO pv_regions (region_id, cx, cy, cz, radius)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE cx = VALUES(cx), cy = VALUES(cy), cz = VALUES(cz), radius = VALUES(radius)
	`
	_, err := s.db.ExecContext(ctx, query, rec.RegionID.String(), rec.CX, rec.CY, rec.CZ, rec.Radius)
	if err != nil {
		return fmt.Errorf("ошибка сохранения региона %s: %w", rec.RegionID, err)
	}
	return nil
}

func (s *SQLStore) DeleteRegion(ctx context.Context, regionID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции удаления региона: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pv_objects WHERE region_id = ?`, regionID.String()); err != nil {
		return fmt.Errorf("ошибка удаления объектов региона %s: %w", regionID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pv_regions WHERE region_id = ?`, regionID.String()); err != nil {
		return fmt.Errorf("ошибка удаления региона %s: %w", regionID, err)
	}
	return tx.Commit()
}

func (s *SQLStore) LoadObjects(ctx context.Context, regionID uuid.UUID) ([]ObjectRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uuid, region_id, type, x, y, z, payload_inline, payload_ref
		FROM pv_objects WHERE region_id = ?
	`, regionID.String())
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения объектов региона %s: %w", regionID, err)
	}
	defer rows.Close()

	var result []ObjectRecord
	for rows.Next() {
		var rec ObjectRecord
		var objUUID, objRegionID string
		var payloadRef sql.NullString
		if err := rows.Scan(&objUUID, &objRegionID, &rec.Type, &rec.X, &rec.Y, &rec.Z, &rec.PayloadInline, &payloadRef); err != nil {
			return nil, fmt.Errorf("ошибка разбора строки объекта: %w", err)
		}
		if rec.UUID, err = uuid.Parse(objUUID); err != nil {
			return nil, fmt.Errorf("некорректный uuid %q в хранилище: %w", objUUID, err)
		}
		if rec.RegionID, err = uuid.Parse(objRegionID); err != nil {
			return nil, fmt.Errorf("некорректный region_id %q в хранилище: %w", objRegionID, err)
		}
		if payloadRef.Valid {
			rec.PayloadRef = payloadRef.String
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// UpsertObjectsTx фиксирует upsert'ы и удаления одного региона в одной
// транзакции — §4.5: "The store never observes a partial region."
func (s *SQLStore) UpsertObjectsTx(ctx context.Context, regionID uuid.UUID, records []ObjectRecord, tombstones []uuid.UUID) error {
	if len(records) == 0 && len(tombstones) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции чекпоинта региона %s: %w", regionID, err)
	}
	defer tx.Rollback()

	upsertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pv_objects (uuid, region_id, type, x, y, z, payload_inline, payload_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			region_id = VALUES(region_id), type = VALUES(type),
			x = VALUES(x), y = VALUES(y), z = VALUES(z),
			payload_inline = VALUES(payload_inline), payload_ref = VALUES(payload_ref)
	`)
	if err != nil {
		return fmt.Errorf("ошибка подготовки upsert-запроса: %w", err)
	}
	defer upsertStmt.Close()

	for _, rec := range records {
		var payloadRef interface{}
		if rec.PayloadRef != "" {
			payloadRef = rec.PayloadRef
		}
		_, err := upsertStmt.ExecContext(ctx, rec.UUID.String(), regionID.String(), rec.Type,
			rec.X, rec.Y, rec.Z, rec.PayloadInline, payloadRef)
		if err != nil {
			return fmt.Errorf("ошибка upsert объекта %s: %w", rec.UUID, err)
		}
	}

	if len(tombstones) > 0 {
		deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM pv_objects WHERE uuid = ? AND region_id = ?`)
		if err != nil {
			return fmt.Errorf("ошибка подготовки delete-запроса: %w", err)
		}
		defer deleteStmt.Close()

		for _, id := range tombstones {
			if _, err := deleteStmt.ExecContext(ctx, id.String(), regionID.String()); err != nil {
				return fmt.Errorf("ошибка удаления объекта %s: %w", id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции чекпоинта региона %s: %w", regionID, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
