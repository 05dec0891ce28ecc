package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-foodcart-dispatch/internal/geo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func migrateAll(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.AutoMigrate(
		&Restaurant{}, &ProductCategory{}, &Product{}, &MenuItem{},
		&Order{}, &OrderItem{}, &AddressCoordinates{}, &Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Restaurant{}).TableName():         "restaurants",
		(ProductCategory{}).TableName():    "product_categories",
		(Product{}).TableName():            "products",
		(MenuItem{}).TableName():           "menu_items",
		(Order{}).TableName():              "orders",
		(OrderItem{}).TableName():          "order_items",
		(AddressCoordinates{}).TableName(): "address_coordinates",
		(Idempotency{}).TableName():        "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_UniqueIndexes(t *testing.T) {
	db := newTestDB(t)
	migrateAll(t, db)
	m := db.Migrator()

	if !m.HasIndex(&MenuItem{}, "ux_menu_restaurant_product") {
		t.Fatalf("expected unique index ux_menu_restaurant_product")
	}
	if !m.HasIndex(&AddressCoordinates{}, "ux_coordinates_address") {
		t.Fatalf("expected unique index ux_coordinates_address")
	}

	r := &Restaurant{Name: "R", Address: "a"}
	p := &Product{Name: "P", Price: decimal.RequireFromString("10.50")}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("insert restaurant: %v", err)
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("insert product: %v", err)
	}
	if err := db.Create(&MenuItem{RestaurantID: r.ID, ProductID: p.ID, Availability: true}).Error; err != nil {
		t.Fatalf("insert menu item: %v", err)
	}
	if err := db.Create(&MenuItem{RestaurantID: r.ID, ProductID: p.ID}).Error; err == nil {
		t.Fatalf("expected unique violation for duplicate (restaurant, product)")
	}

	if err := db.Create(&AddressCoordinates{Address: "x"}).Error; err != nil {
		t.Fatalf("insert coordinates: %v", err)
	}
	if err := db.Create(&AddressCoordinates{Address: "x"}).Error; err == nil {
		t.Fatalf("expected unique violation for duplicate address")
	}
}

func TestMenuItem_FalseAvailabilityPersists(t *testing.T) {
	db := newTestDB(t)
	migrateAll(t, db)

	r := &Restaurant{Name: "R"}
	p := &Product{Name: "P", Price: decimal.NewFromInt(1)}
	db.Create(r)
	db.Create(p)
	mi := &MenuItem{RestaurantID: r.ID, ProductID: p.ID, Availability: false}
	if err := db.Create(mi).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	var got MenuItem
	if err := db.First(&got, mi.ID).Error; err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Availability {
		t.Fatalf("availability=false must be stored as false")
	}
}

func TestOrderItems_CascadeAndPriceRoundTrip(t *testing.T) {
	db := newTestDB(t)
	migrateAll(t, db)

	p := &Product{Name: "Pizza", Price: decimal.RequireFromString("499.90")}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("insert product: %v", err)
	}
	o := &Order{FirstName: "Ivan", PhoneNumber: "+79991234567", Address: "Moscow", Status: StatusNew, PaymentMethod: PaymentCash}
	if err := db.Create(o).Error; err != nil {
		t.Fatalf("insert order: %v", err)
	}
	it := &OrderItem{OrderID: o.ID, ProductID: p.ID, Quantity: 2, FixedPrice: p.Price}
	if err := db.Omit("Product").Create(it).Error; err != nil {
		t.Fatalf("insert item: %v", err)
	}

	var got OrderItem
	if err := db.First(&got, it.ID).Error; err != nil {
		t.Fatalf("read item: %v", err)
	}
	if !got.FixedPrice.Equal(decimal.RequireFromString("499.9")) {
		t.Fatalf("fixed price round trip: %s", got.FixedPrice)
	}

	if err := db.Create(&OrderItem{OrderID: o.ID, ProductID: p.ID, Quantity: 0, FixedPrice: p.Price}).Error; err == nil {
		t.Fatalf("expected check violation for zero quantity")
	}

	if err := db.Delete(&Order{}, o.ID).Error; err != nil {
		t.Fatalf("delete order: %v", err)
	}
	var n int64
	db.Model(&OrderItem{}).Where("order_id = ?", o.ID).Count(&n)
	if n != 0 {
		t.Fatalf("expected items to cascade, got %d", n)
	}
}

func TestOrder_ProductIDsAndTotal(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{ProductID: 2, Quantity: 1, FixedPrice: decimal.RequireFromString("10.10")},
		{ProductID: 1, Quantity: 3, FixedPrice: decimal.RequireFromString("0.30")},
		{ProductID: 2, Quantity: 2, FixedPrice: decimal.RequireFromString("10.10")},
	}}
	ids := o.ProductIDs()
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 1 {
		t.Fatalf("unexpected product ids: %v", ids)
	}
	if got := o.Total(); !got.Equal(decimal.RequireFromString("31.20")) {
		t.Fatalf("unexpected total: %s", got)
	}
}

func TestOrderStatus_RankAndValid(t *testing.T) {
	order := []OrderStatus{StatusNew, StatusRestaurant, StatusCourier, StatusCompleted}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Fatalf("%s must rank below %s", order[i-1], order[i])
		}
	}
	if OrderStatus("MANAGER").Valid() {
		t.Fatalf("unknown status must be invalid")
	}
	if !PaymentCard.Valid() || PaymentMethod("crypto").Valid() {
		t.Fatalf("payment method validity")
	}
}

func TestAddressCoordinates_Resolution(t *testing.T) {
	var nilRow *AddressCoordinates
	if nilRow.Resolution().Status != geo.Unresolved {
		t.Fatalf("nil row must be unresolved")
	}

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	failed := &AddressCoordinates{Address: "a", UpdatedAt: at}
	if r := failed.Resolution(); r.Status != geo.Failed || !r.ResolvedAt.Equal(at) {
		t.Fatalf("null pair must be failed, got %+v", r)
	}
	lat := 1.5
	half := &AddressCoordinates{Address: "a", Lat: &lat}
	if half.Resolution().Status != geo.Failed {
		t.Fatalf("half pair must be failed")
	}

	zero := 0.0
	row := &AddressCoordinates{Address: "a", Lat: &zero, Lon: &zero, UpdatedAt: at}
	r := row.Resolution()
	if r.Status != geo.Resolved || r.Coordinate() == nil {
		t.Fatalf("zero pair must be resolved, got %+v", r)
	}
}
