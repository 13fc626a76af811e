package order

import (
	"time"

	"campusmart-be/internal/status"

	"github.com/google/uuid"
)

type DeliveryOption string

const (
	DeliveryCampusPost DeliveryOption = "campus_post"
	DeliverySelf       DeliveryOption = "self"
	DeliveryRider      DeliveryOption = "third_party_rider"
	DeliveryPeerToPeer DeliveryOption = "peer_to_peer"
)

type DisputeState string

const (
	DisputeNone     DisputeState = "none"
	DisputeOpen     DisputeState = "open"
	DisputeResolved DisputeState = "resolved"
)

// Order is the buyer-facing aggregate spanning every vendor in one checkout.
// Its item statuses are read-mirrors of the owning shipments.
type Order struct {
	ID          uuid.UUID
	BuyerID     uint
	PaymentRef  string
	Status      status.OrderStatus
	Total       float64
	DeliveryFee float64
	ServiceFee  float64
	Items       []OrderItem
	Shipments   []*Shipment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderItem mirrors one shipment line for buyer-facing reads. RefID and the
// QR tokens are copied from the owning shipment at creation.
type OrderItem struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	ShipmentID   uuid.UUID
	RefID        string
	ProductID    uint
	Name         string
	Quantity     int
	Price        float64
	Status       status.ShipmentStatus
	VendorQRCode string
	ClientQRCode string
}

// Shipment is one vendor's portion of an order and the unit the custody
// state machine operates on. Item prices are snapshots; catalog changes
// never touch a placed shipment.
type Shipment struct {
	ID             uuid.UUID
	RefID          string
	OrderID        uuid.UUID
	StoreID        uint
	BuyerID        uint
	Items          []ShipmentItem
	DeliveryOption DeliveryOption
	Subtotal       float64
	DeliveryFee    float64
	PlatformFee    float64
	VendorEarnings float64
	VendorQRCode   string
	ClientQRCode   string
	IsPickupOrder  bool
	Status         status.ShipmentStatus
	DisputeStatus  DisputeState
	ActiveDispute  *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ShipmentItem struct {
	ID         uuid.UUID
	ShipmentID uuid.UUID
	ProductID  uint
	Name       string
	Quantity   int
	Price      float64
	Subtotal   float64
}
