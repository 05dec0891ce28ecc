package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-foodcart-dispatch/internal/domain"
	"github.com/tbourn/go-foodcart-dispatch/internal/geo"
)

// GetCoordinates returns the cache row for a normalized address, or ErrNotFound.
func GetCoordinates(ctx context.Context, db *gorm.DB, address string) (*domain.AddressCoordinates, error) {
	// Find+Limit instead of First: misses are routine here and should not be
	// reported by the GORM logger.
	var rows []domain.AddressCoordinates
	err := db.WithContext(ctx).
		Where("address = ?", address).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// UpsertCoordinates stores the lookup result for address, overwriting any
// previous row. A nil coord records a failed lookup as a NULL pair.
func UpsertCoordinates(ctx context.Context, db *gorm.DB, address string, coord *geo.Coordinate, at time.Time) error {
	row := &domain.AddressCoordinates{Address: address, UpdatedAt: at}
	if coord != nil {
		lat, lon := coord.Lat, coord.Lon
		row.Lat, row.Lon = &lat, &lon
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"lat", "lon", "updated_at"}),
		}).
		Create(row).Error
}

// CoordinateStore exposes the coordinate table as the key-value store the
// coordinate cache expects.
type CoordinateStore struct {
	DB *gorm.DB
}

// Get returns the row for address, or (nil, nil) when none exists.
func (s CoordinateStore) Get(ctx context.Context, address string) (*domain.AddressCoordinates, error) {
	row, err := GetCoordinates(ctx, s.DB, address)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return row, err
}

// Put overwrites the row for address.
func (s CoordinateStore) Put(ctx context.Context, address string, coord *geo.Coordinate, at time.Time) error {
	return UpsertCoordinates(ctx, s.DB, address, coord, at)
}
