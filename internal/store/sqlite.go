package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
)

// SQLiteDB implements Repository over a single SQLite file.
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens (creating if needed) the store at path and migrates
// the schema.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}
	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS blocks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			district TEXT,
			boundary TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS observations (
			block_id TEXT NOT NULL,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
			variable TEXT NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (block_id, year, month, variable)
		);

		CREATE TABLE IF NOT EXISTS features (
			block_id TEXT NOT NULL,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
			rainfall REAL NOT NULL,
			evapotranspiration REAL,
			vegetation_index REAL,
			rain_3m REAL,
			rain_anomaly REAL,
			et_rain_ratio REAL,
			PRIMARY KEY (block_id, year, month)
		);

		CREATE TABLE IF NOT EXISTS stress_indices (
			block_id TEXT NOT NULL,
			year INTEGER NOT NULL,
			flood_pressure REAL NOT NULL,
			gw_stress REAL NOT NULL,
			PRIMARY KEY (block_id, year)
		);

		CREATE INDEX IF NOT EXISTS idx_observations_variable ON observations(variable);
		CREATE INDEX IF NOT EXISTS idx_features_block ON features(block_id);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) SaveBlocks(ctx context.Context, blocks []domain.Block) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO blocks (id, name, district, boundary) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name=excluded.name, district=excluded.district, boundary=excluded.boundary`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, b := range blocks {
			boundary, err := json.Marshal(b.Boundary)
			if err != nil {
				return fmt.Errorf("encode boundary for %s: %w", b.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, b.ID, b.Name, b.District, string(boundary)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteDB) ListBlocks(ctx context.Context) ([]domain.Block, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, district, boundary FROM blocks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []domain.Block
	for rows.Next() {
		var b domain.Block
		var district sql.NullString
		var boundary string
		if err := rows.Scan(&b.ID, &b.Name, &district, &boundary); err != nil {
			return nil, err
		}
		b.District = district.String
		if err := json.Unmarshal([]byte(boundary), &b.Boundary); err != nil {
			return nil, fmt.Errorf("decode boundary for %s: %w", b.ID, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

func (s *SQLiteDB) SaveObservations(ctx context.Context, obs []domain.ClimateObservation) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO observations (block_id, year, month, variable, value) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(block_id, year, month, variable) DO UPDATE SET value=excluded.value`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, o := range obs {
			if _, err := stmt.ExecContext(ctx, o.BlockID, o.Year, o.Month, string(o.Variable), o.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteDB) ListObservations(ctx context.Context) ([]domain.ClimateObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT block_id, year, month, variable, value FROM observations ORDER BY block_id, year, month, variable`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var obs []domain.ClimateObservation
	for rows.Next() {
		var o domain.ClimateObservation
		var variable string
		if err := rows.Scan(&o.BlockID, &o.Year, &o.Month, &variable, &o.Value); err != nil {
			return nil, err
		}
		o.Variable = domain.Variable(variable)
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

func (s *SQLiteDB) SaveFeatures(ctx context.Context, featureRows []domain.FeatureRow) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO features
			   (block_id, year, month, rainfall, evapotranspiration, vegetation_index, rain_3m, rain_anomaly, et_rain_ratio)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(block_id, year, month) DO UPDATE SET
			   rainfall=excluded.rainfall,
			   evapotranspiration=excluded.evapotranspiration,
			   vegetation_index=excluded.vegetation_index,
			   rain_3m=excluded.rain_3m,
			   rain_anomaly=excluded.rain_anomaly,
			   et_rain_ratio=excluded.et_rain_ratio`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range featureRows {
			_, err := stmt.ExecContext(ctx, r.BlockID, r.Year, r.Month, r.Rainfall,
				nullable(r.Evapotranspiration), nullable(r.VegetationIndex),
				nullable(r.Rain3M), nullable(r.RainAnomaly), nullable(r.ETRainRatio))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteDB) ListFeatures(ctx context.Context) ([]domain.FeatureRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT block_id, year, month, rainfall, evapotranspiration, vegetation_index, rain_3m, rain_anomaly, et_rain_ratio
		 FROM features ORDER BY block_id, year, month`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FeatureRow
	for rows.Next() {
		var r domain.FeatureRow
		var et, ndvi, rain3m, anomaly, ratio sql.NullFloat64
		if err := rows.Scan(&r.BlockID, &r.Year, &r.Month, &r.Rainfall, &et, &ndvi, &rain3m, &anomaly, &ratio); err != nil {
			return nil, err
		}
		r.Evapotranspiration = fromNullable(et)
		r.VegetationIndex = fromNullable(ndvi)
		r.Rain3M = fromNullable(rain3m)
		r.RainAnomaly = fromNullable(anomaly)
		r.ETRainRatio = fromNullable(ratio)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) SaveStressIndices(ctx context.Context, indices []domain.StressIndex) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO stress_indices (block_id, year, flood_pressure, gw_stress) VALUES (?, ?, ?, ?)
			 ON CONFLICT(block_id, year) DO UPDATE SET
			   flood_pressure=excluded.flood_pressure, gw_stress=excluded.gw_stress`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, idx := range indices {
			if _, err := stmt.ExecContext(ctx, idx.BlockID, idx.Year, idx.FloodPressure, idx.GWStress); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteDB) ListStressIndices(ctx context.Context) ([]domain.StressIndex, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT block_id, year, flood_pressure, gw_stress FROM stress_indices ORDER BY block_id, year`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StressIndex
	for rows.Next() {
		var idx domain.StressIndex
		if err := rows.Scan(&idx.BlockID, &idx.Year, &idx.FloodPressure, &idx.GWStress); err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullable(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func fromNullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
