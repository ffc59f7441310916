package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("record not found")
var ErrConflict = errors.New("conflicting write")

// Store is the Postgres-backed persistence used by the match server. It serves
// as Match Directory, Room Directory, Rating Ledger, user store and catalog.
type Store struct {
	db     *gorm.DB
	addr   string
	logger *zap.Logger
}

type gormWriter struct{ *zap.SugaredLogger }

func (w gormWriter) Printf(format string, args ...any) { w.Infof(format, args...) }

// Open connects to Postgres. addr is this server's advertised address, used
// to claim and restore rooms.
func Open(dsn, addr string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(gormWriter{logger.Named("gorm").Sugar()}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return New(db, addr, logger), nil
}

func New(db *gorm.DB, addr string, logger *zap.Logger) *Store {
	return &Store{db: db, addr: addr, logger: logger.Named("store")}
}

func (s *Store) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) ListMatches(ctx context.Context, ids []string) ([]Match, error) {
	var matches []Match
	err := s.db.WithContext(ctx).
		Preload("RadiantTeam").
		Preload("DireTeam").
		Where("id IN ?", ids).
		Find(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", mapError(err))
	}
	return matches, nil
}

// ClaimRooms binds the unclaimed rooms among ids to this server and returns
// every room among ids that this server owns afterwards.
func (s *Store) ClaimRooms(ctx context.Context, ids []string) ([]Room, error) {
	var rooms []Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := claimUnowned(tx, ids, s.addr)
		if res.Error != nil {
			return res.Error
		}
		s.logger.Debug("claimed rooms", zap.Strings("ids", ids), zap.Int64("count", res.RowsAffected))
		return tx.Where("id IN ? AND match_server_url = ?", ids, s.addr).Find(&rooms).Error
	})
	if err != nil {
		return nil, fmt.Errorf("claiming rooms: %w", mapError(err))
	}
	return rooms, nil
}

// claimUnowned sets addr on the rooms among ids that no server owns. The
// ownership condition lives in the UPDATE so concurrent servers never steal
// each other's rooms.
func claimUnowned(tx *gorm.DB, ids []string, addr string) *gorm.DB {
	return tx.Model(&Room{}).
		Where("id IN ?", ids).
		Where("match_server_url = '' OR match_server_url IS NULL").
		Update("match_server_url", addr)
}

func (s *Store) RestoreRooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := s.db.WithContext(ctx).Where("match_server_url = ?", s.addr).Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("restoring rooms: %w", mapError(err))
	}
	return rooms, nil
}

func (s *Store) AdjustTeamRating(ctx context.Context, id string, delta int) error {
	return s.adjustRating(ctx, &Team{}, id, delta)
}

func (s *Store) AdjustUserRating(ctx context.Context, id string, delta int) error {
	return s.adjustRating(ctx, &User{}, id, delta)
}

func (s *Store) adjustRating(ctx context.Context, model any, id string, delta int) error {
	res := addRating(s.db.WithContext(ctx), model, id, delta)
	if res.Error != nil {
		return fmt.Errorf("adjusting rating of %s: %w", id, mapError(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("adjusting rating of %s: %w", id, ErrNotFound)
	}
	return nil
}

// addRating increments in SQL so concurrent settlements never lose updates.
func addRating(db *gorm.DB, model any, id string, delta int) *gorm.DB {
	return db.Model(model).
		Where("id = ?", id).
		UpdateColumn("rating", gorm.Expr("rating + ?", delta))
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return User{}, fmt.Errorf("getting user %s: %w", id, mapError(err))
	}
	return u, nil
}

func (s *Store) PunishForLeave(ctx context.Context, id string, until time.Time) error {
	res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("unban_at", until)
	if res.Error != nil {
		return fmt.Errorf("punishing user %s: %w", id, mapError(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("punishing user %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context) ([]Item, error) {
	var items []Item
	if err := s.db.WithContext(ctx).Order("id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("listing items: %w", mapError(err))
	}
	return items, nil
}

func (s *Store) ListCountries(ctx context.Context) ([]Country, error) {
	var countries []Country
	if err := s.db.WithContext(ctx).Order("name").Find(&countries).Error; err != nil {
		return nil, fmt.Errorf("listing countries: %w", mapError(err))
	}
	return countries, nil
}

// mapError translates driver errors into the package's sentinel errors while
// keeping the original in the chain.
func mapError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
	}
	return err
}
