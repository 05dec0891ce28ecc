// Package domain defines the persistence models for restaurants, the product
// catalog, menus, orders, and cached address coordinates. These types are
// mapped with GORM and form the core data layer of the dispatch service.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbourn/go-foodcart-dispatch/internal/geo"
)

// Restaurant is a kitchen that can fulfil orders from its menu.
//
// Fields:
//   - Name: display name; listings are ordered by it.
//   - Address: free-text street address, geocoded through the coordinate cache.
//   - ContactPhone: optional phone for the dispatcher.
type Restaurant struct {
	ID           uint      `json:"id"            gorm:"primaryKey"`
	Name         string    `json:"name"          gorm:"type:varchar(50);not null;index"`
	Address      string    `json:"address"       gorm:"type:varchar(100);not null;default:''"`
	ContactPhone string    `json:"contact_phone" gorm:"type:varchar(50);not null;default:''"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// TableName returns the database table name for Restaurant.
func (Restaurant) TableName() string { return "restaurants" }

// ProductCategory groups products in the catalog.
type ProductCategory struct {
	ID   uint   `json:"id"   gorm:"primaryKey"`
	Name string `json:"name" gorm:"type:varchar(50);not null"`
}

// TableName returns the database table name for ProductCategory.
func (ProductCategory) TableName() string { return "product_categories" }

// Product is an orderable catalog item. Its price is copied into each
// OrderItem at order time, so later price changes never touch past orders.
type Product struct {
	ID            uint            `json:"id"                 gorm:"primaryKey"`
	Name          string          `json:"name"               gorm:"type:varchar(50);not null;index"`
	CategoryID    *uint           `json:"category_id"        gorm:"index"`
	Price         decimal.Decimal `json:"price"              gorm:"type:decimal(8,2);not null;check:price >= 0"`
	SpecialStatus bool            `json:"special_status"     gorm:"not null;index"`
	Description   string          `json:"description"        gorm:"type:text;not null;default:''"`
	CreatedAt     time.Time       `json:"-"`
	UpdatedAt     time.Time       `json:"-"`

	Category *ProductCategory `json:"category,omitempty" gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// MenuItem states whether a restaurant currently offers a product.
// At most one row exists per (restaurant, product).
type MenuItem struct {
	ID           uint      `json:"id"            gorm:"primaryKey"`
	RestaurantID uint      `json:"restaurant_id" gorm:"not null;uniqueIndex:ux_menu_restaurant_product,priority:1"`
	ProductID    uint      `json:"product_id"    gorm:"not null;index;uniqueIndex:ux_menu_restaurant_product,priority:2"`
	Availability bool      `json:"availability"  gorm:"not null;index"`
	UpdatedAt    time.Time `json:"updated_at"`

	Restaurant Restaurant `json:"-" gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Product    Product    `json:"-" gorm:"foreignKey:ProductID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for MenuItem.
func (MenuItem) TableName() string { return "menu_items" }

// OrderStatus is the lifecycle position of an order.
type OrderStatus string

const (
	StatusNew        OrderStatus = "new"        // awaiting a manager
	StatusRestaurant OrderStatus = "restaurant" // claimed by a restaurant
	StatusCourier    OrderStatus = "courier"    // out for delivery
	StatusCompleted  OrderStatus = "completed"
)

// Rank orders statuses along the lifecycle; unknown statuses rank 0.
func (s OrderStatus) Rank() int {
	switch s {
	case StatusNew:
		return 1
	case StatusRestaurant:
		return 2
	case StatusCourier:
		return 3
	case StatusCompleted:
		return 4
	}
	return 0
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool { return s.Rank() > 0 }

// PaymentMethod records how the customer intends to pay.
type PaymentMethod string

const (
	PaymentUnspecified PaymentMethod = "unspecified"
	PaymentCash        PaymentMethod = "cash"
	PaymentCard        PaymentMethod = "card"
)

// Valid reports whether p is a known payment method.
func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentUnspecified, PaymentCash, PaymentCard:
		return true
	}
	return false
}

// Order is a customer's delivery request.
//
// Fields:
//   - Status: monotonic lifecycle (new → restaurant → courier → completed).
//   - RestaurantID: assigned kitchen; must be able to cover every item when set.
//   - CalledAt / DeliveredAt: stamped when the order moves to courier / completed.
type Order struct {
	ID            uint          `json:"id"             gorm:"primaryKey"`
	FirstName     string        `json:"firstname"      gorm:"type:varchar(50);not null"`
	LastName      string        `json:"lastname"       gorm:"type:varchar(50);not null;default:''"`
	PhoneNumber   string        `json:"phonenumber"    gorm:"type:varchar(32);not null;index"`
	Address       string        `json:"address"        gorm:"type:varchar(300);not null"`
	Status        OrderStatus   `json:"status"         gorm:"type:varchar(16);not null;index;check:status IN ('new','restaurant','courier','completed')"`
	Comment       string        `json:"comment"        gorm:"type:text;not null;default:''"`
	PaymentMethod PaymentMethod `json:"payment_method" gorm:"type:varchar(16);not null;index"`
	RestaurantID  *uint         `json:"restaurant_id"  gorm:"index"`
	CreatedAt     time.Time     `json:"created_at"     gorm:"index"`
	UpdatedAt     time.Time     `json:"updated_at"`
	CalledAt      *time.Time    `json:"called_at"`
	DeliveredAt   *time.Time    `json:"delivered_at"`

	Restaurant *Restaurant `json:"-"     gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Items      []OrderItem `json:"items" gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// ProductIDs returns the distinct product IDs of the order's items in first-seen order.
func (o *Order) ProductIDs() []uint {
	seen := make(map[uint]struct{}, len(o.Items))
	out := make([]uint, 0, len(o.Items))
	for _, it := range o.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		out = append(out, it.ProductID)
	}
	return out
}

// Total sums quantity × fixed price over the order's items.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Cost())
	}
	return total
}

// OrderItem is one product line of an order. FixedPrice is captured at
// creation and never recomputed.
type OrderItem struct {
	ID         uint            `json:"id"          gorm:"primaryKey"`
	OrderID    uint            `json:"order_id"    gorm:"not null;index"`
	ProductID  uint            `json:"product"     gorm:"not null;index"`
	Quantity   int             `json:"quantity"    gorm:"not null;check:quantity >= 1"`
	FixedPrice decimal.Decimal `json:"fixed_price" gorm:"type:decimal(8,2);not null;check:fixed_price >= 0"`

	Product Product `json:"-" gorm:"foreignKey:ProductID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for OrderItem.
func (OrderItem) TableName() string { return "order_items" }

// Cost is quantity × fixed price.
func (it OrderItem) Cost() decimal.Decimal {
	return it.FixedPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// AddressCoordinates is a coordinate cache entry keyed by normalized address.
// A NULL latitude/longitude pair records a lookup that produced no coordinate.
type AddressCoordinates struct {
	ID        uint      `json:"-"          gorm:"primaryKey"`
	Address   string    `json:"address"    gorm:"type:varchar(300);not null;uniqueIndex:ux_coordinates_address"`
	Lat       *float64  `json:"lat"`
	Lon       *float64  `json:"lon"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index"`
}

// TableName returns the database table name for AddressCoordinates.
func (AddressCoordinates) TableName() string { return "address_coordinates" }

// Resolution converts the row into the cache's tri-state view. A nil row is
// Unresolved; a row missing either coordinate is Failed.
func (a *AddressCoordinates) Resolution() geo.Resolution {
	if a == nil {
		return geo.Resolution{Status: geo.Unresolved}
	}
	if a.Lat == nil || a.Lon == nil {
		return geo.Resolution{Status: geo.Failed, ResolvedAt: a.UpdatedAt}
	}
	return geo.Resolution{
		Status:     geo.Resolved,
		Point:      geo.Coordinate{Lat: *a.Lat, Lon: *a.Lon},
		ResolvedAt: a.UpdatedAt,
	}
}
