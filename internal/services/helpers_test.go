package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-foodcart-dispatch/internal/domain"
	"github.com/tbourn/go-foodcart-dispatch/internal/events"
	"github.com/tbourn/go-foodcart-dispatch/internal/geo"
	"github.com/tbourn/go-foodcart-dispatch/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// repoShim proxies the package-level repo functions to the service interfaces.
type repoShim struct{}

func (repoShim) ListRestaurants(ctx context.Context, db *gorm.DB) ([]domain.Restaurant, error) {
	return repo.ListRestaurants(ctx, db)
}
func (repoShim) GetRestaurant(ctx context.Context, db *gorm.DB, id uint) (*domain.Restaurant, error) {
	return repo.GetRestaurant(ctx, db, id)
}
func (repoShim) RestaurantsByIDs(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.Restaurant, error) {
	return repo.RestaurantsByIDs(ctx, db, ids)
}
func (repoShim) ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	return repo.ListProducts(ctx, db)
}
func (repoShim) ListAvailableProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	return repo.ListAvailableProducts(ctx, db)
}
func (repoShim) ProductsByIDs(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.Product, error) {
	return repo.ProductsByIDs(ctx, db, ids)
}
func (repoShim) ListMenuItems(ctx context.Context, db *gorm.DB) ([]domain.MenuItem, error) {
	return repo.ListMenuItems(ctx, db)
}
func (repoShim) MenuItemsForProducts(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.MenuItem, error) {
	return repo.MenuItemsForProducts(ctx, db, ids)
}
func (repoShim) UpsertMenuItem(ctx context.Context, db *gorm.DB, rid, pid uint, available bool) (*domain.MenuItem, error) {
	return repo.UpsertMenuItem(ctx, db, rid, pid, available)
}
func (repoShim) CatalogStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return repo.CatalogStats(ctx, db)
}
func (repoShim) CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	return repo.CreateOrder(ctx, db, o)
}
func (repoShim) GetOrder(ctx context.Context, db *gorm.DB, id uint) (*domain.Order, error) {
	return repo.GetOrder(ctx, db, id)
}
func (repoShim) CountActiveOrders(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountActiveOrders(ctx, db)
}
func (repoShim) ListActiveOrdersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Order, error) {
	return repo.ListActiveOrdersPage(ctx, db, offset, limit)
}
func (repoShim) OrderTotals(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]decimal.Decimal, error) {
	return repo.OrderTotals(ctx, db, ids)
}
func (repoShim) UpdateOrderIf(ctx context.Context, db *gorm.DB, id uint, from domain.OrderStatus, updates map[string]any) error {
	return repo.UpdateOrderIf(ctx, db, id, from, updates)
}
func (repoShim) DispatcherStats(ctx context.Context, db *gorm.DB) (DispatcherSnapshot, error) {
	return repo.DispatcherStats(ctx, db)
}

type fixture struct {
	restaurants map[string]*domain.Restaurant
	products    map[string]*domain.Product
}

// seedCatalog creates restaurants X, Y, Z and products A, B, C:
// X stocks {A, B}, Y stocks {A}, Z stocks {A, B} with B unavailable.
func seedCatalog(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	ctx := context.Background()
	fx := fixture{restaurants: map[string]*domain.Restaurant{}, products: map[string]*domain.Product{}}
	addr := map[string]string{"X": "addr-x", "Y": "addr-y", "Z": "addr-z"}
	for _, name := range []string{"X", "Y", "Z"} {
		r := &domain.Restaurant{Name: name, Address: addr[name]}
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("seed restaurant: %v", err)
		}
		fx.restaurants[name] = r
	}
	prices := map[string]string{"A": "250.00", "B": "99.90", "C": "10.00"}
	for _, name := range []string{"A", "B", "C"} {
		p := &domain.Product{Name: name, Price: decimal.RequireFromString(prices[name])}
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("seed product: %v", err)
		}
		fx.products[name] = p
	}
	for _, m := range []struct {
		r, p  string
		avail bool
	}{
		{"X", "A", true}, {"X", "B", true},
		{"Y", "A", true},
		{"Z", "A", true}, {"Z", "B", false},
	} {
		if _, err := repo.UpsertMenuItem(ctx, db, fx.restaurants[m.r].ID, fx.products[m.p].ID, m.avail); err != nil {
			t.Fatalf("seed menu: %v", err)
		}
	}
	return fx
}

// fakeGeocoder answers from a fixed table and counts calls.
type fakeGeocoder struct {
	mu     sync.Mutex
	coords map[string]*geo.Coordinate
	errs   map[string]error
	calls  map[string]int
	delay  time.Duration
}

func newFakeGeocoder() *fakeGeocoder {
	return &fakeGeocoder{
		coords: map[string]*geo.Coordinate{},
		errs:   map[string]error{},
		calls:  map[string]int{},
	}
}

func (f *fakeGeocoder) Geocode(ctx context.Context, address string) (*geo.Coordinate, error) {
	f.mu.Lock()
	f.calls[address]++
	c, err := f.coords[address], f.errs[address]
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeGeocoder) Calls(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[address]
}

func (f *fakeGeocoder) Set(address string, lat, lon float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coords[address] = &geo.Coordinate{Lat: lat, Lon: lon}
}

// memStore is an in-memory CoordinateStore.
type memStore struct {
	mu     sync.Mutex
	rows   map[string]domain.AddressCoordinates
	getErr error
	putErr error
}

func newMemStore() *memStore { return &memStore{rows: map[string]domain.AddressCoordinates{}} }

func (m *memStore) Get(_ context.Context, address string) (*domain.AddressCoordinates, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	row, ok := m.rows[address]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *memStore) Put(_ context.Context, address string, coord *geo.Coordinate, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	row := domain.AddressCoordinates{Address: address, UpdatedAt: at}
	if coord != nil {
		lat, lon := coord.Lat, coord.Lon
		row.Lat, row.Lon = &lat, &lon
	}
	m.rows[address] = row
	return nil
}

// recordingPublisher keeps every event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
