package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/FrenchMajesty/shoewall/pkg/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Postgres is the pgxpool-backed Store
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ Store = (*Postgres)(nil)

// Connect opens a pool for dsn and checks the connection
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info("postgres connected", "max_conns", cfg.MaxConns)
	return &Postgres{pool: pool, logger: logger}, nil
}

// Migrate applies every pending embedded migration
func (p *Postgres) Migrate(ctx context.Context) error {
	db := stdlib.OpenDB(*p.pool.Config().ConnConfig)
	defer db.Close()

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		p.logger.Info("migration applied", "source", r.Source.Path, "duration", r.Duration)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) GetProfile(ctx context.Context, userID string) (types.UserProfile, error) {
	var prof types.UserProfile
	err := p.pool.QueryRow(ctx,
		`SELECT arch_type, usage, weekly_mileage FROM profiles WHERE user_id = $1`, userID,
	).Scan(&prof.ArchType, &prof.Usage, &prof.WeeklyMileage)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.UserProfile{}, ErrNotFound
	}
	if err != nil {
		return types.UserProfile{}, fmt.Errorf("get profile %s: %w", userID, err)
	}
	return prof, nil
}

func (p *Postgres) UpsertProfile(ctx context.Context, userID string, prof types.UserProfile) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, arch_type, usage, weekly_mileage)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET arch_type = EXCLUDED.arch_type,
		    usage = EXCLUDED.usage,
		    weekly_mileage = EXCLUDED.weekly_mileage,
		    updated_at = now()`,
		userID, string(prof.ArchType), string(prof.Usage), prof.WeeklyMileage)
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", userID, err)
	}
	return nil
}

func (p *Postgres) ListShoes(ctx context.Context) ([]types.ShoeSpec, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT brand, model, terrain, stability, cushion, drop_mm, weight_g
		FROM shoes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list shoes: %w", err)
	}
	defer rows.Close()

	specs := []types.ShoeSpec{}
	for rows.Next() {
		var s types.ShoeSpec
		if err := rows.Scan(&s.Brand, &s.Model, &s.Terrain, &s.Stability, &s.Cushion, &s.DropMM, &s.WeightG); err != nil {
			return nil, fmt.Errorf("scan shoe: %w", err)
		}
		specs = append(specs, s)
	}
	return specs, rows.Err()
}

func (p *Postgres) UpsertShoe(ctx context.Context, s types.ShoeSpec) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO shoes (brand, model, terrain, stability, cushion, drop_mm, weight_g)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (brand, model) DO UPDATE
		SET terrain = EXCLUDED.terrain,
		    stability = EXCLUDED.stability,
		    cushion = EXCLUDED.cushion,
		    drop_mm = EXCLUDED.drop_mm,
		    weight_g = EXCLUDED.weight_g`,
		s.Brand, s.Model, s.Terrain, string(s.Stability), string(s.Cushion), s.DropMM, s.WeightG)
	if err != nil {
		return fmt.Errorf("upsert shoe %s %s: %w", s.Brand, s.Model, err)
	}
	return nil
}

func (p *Postgres) SaveScan(ctx context.Context, s Scan) error {
	vision, err := json.Marshal(s.Vision)
	if err != nil {
		return fmt.Errorf("encode vision result: %w", err)
	}
	recs, err := json.Marshal(s.Recommendations)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO scans (request_id, user_id, mime_type, image_bytes, vision, recommendations, fallback_needed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.RequestID, s.UserID, s.MimeType, s.ImageBytes, string(vision), string(recs), s.FallbackNeeded)
	if err != nil {
		return fmt.Errorf("save scan %s: %w", s.RequestID, err)
	}
	return nil
}

func (p *Postgres) GetScan(ctx context.Context, requestID string) (Scan, error) {
	s := Scan{RequestID: requestID}
	var vision, recs []byte
	err := p.pool.QueryRow(ctx, `
		SELECT user_id, mime_type, image_bytes, vision, recommendations, fallback_needed, created_at
		FROM scans WHERE request_id = $1`, requestID,
	).Scan(&s.UserID, &s.MimeType, &s.ImageBytes, &vision, &recs, &s.FallbackNeeded, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Scan{}, ErrNotFound
	}
	if err != nil {
		return Scan{}, fmt.Errorf("get scan %s: %w", requestID, err)
	}

	if err := json.Unmarshal(vision, &s.Vision); err != nil {
		return Scan{}, fmt.Errorf("decode vision result: %w", err)
	}
	if err := json.Unmarshal(recs, &s.Recommendations); err != nil {
		return Scan{}, fmt.Errorf("decode recommendations: %w", err)
	}
	return s, nil
}

// SeedShoes inserts specs when the catalog table is empty
func (p *Postgres) SeedShoes(ctx context.Context, specs []types.ShoeSpec) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM shoes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count shoes: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, s := range specs {
		batch.Queue(`
			INSERT INTO shoes (brand, model, terrain, stability, cushion, drop_mm, weight_g)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (brand, model) DO NOTHING`,
			s.Brand, s.Model, s.Terrain, string(s.Stability), string(s.Cushion), s.DropMM, s.WeightG)
	}
	br := tx.SendBatch(ctx, batch)
	for range specs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("seed shoes: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(specs), nil
}
