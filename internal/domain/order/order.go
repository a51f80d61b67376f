package order

import (
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/payment"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusRejected   Status = "rejected"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusReceived   Status = "received"
	StatusCancelled  Status = "cancelled"
)

// statusAliases maps accepted spellings onto canonical statuses.
var statusAliases = map[string]Status{
	"approved": StatusConfirmed,
	"canceled": StatusCancelled,
}

// ParseStatus normalises client input; "approved" is read as confirmed.
func ParseStatus(s string) (Status, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if alias, ok := statusAliases[s]; ok {
		return alias, nil
	}
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusRejected, StatusProcessing,
		StatusShipped, StatusDelivered, StatusReceived, StatusCancelled:
		return st, nil
	}
	return "", ErrUnknownStatus
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusReceived
}

// ReleasesStock reports whether entering s returns the ordered quantities to the catalog.
func (s Status) ReleasesStock() bool {
	return s == StatusCancelled || s == StatusRejected
}

// EarnsRevenue reports whether an order in s counts towards revenue.
func (s Status) EarnsRevenue() bool {
	return s == StatusDelivered || s == StatusReceived
}

type TimeSlot string

const (
	SlotMorning   TimeSlot = "morning"
	SlotAfternoon TimeSlot = "afternoon"
	SlotEvening   TimeSlot = "evening"
	SlotAnytime   TimeSlot = "anytime"
)

func ParseTimeSlot(s string) (TimeSlot, bool) {
	switch ts := TimeSlot(strings.ToLower(strings.TrimSpace(s))); ts {
	case "":
		return SlotAnytime, true
	case SlotMorning, SlotAfternoon, SlotEvening, SlotAnytime:
		return ts, true
	}
	return "", false
}

type Buyer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

const (
	DefaultState   = "Bagmati"
	DefaultCountry = "Nepal"
)

type Address struct {
	Street       string `json:"street"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code,omitempty"`
	Country      string `json:"country"`
	Landmark     string `json:"landmark,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// WithDefaults trims every field and fills state and country when blank.
func (a Address) WithDefaults() Address {
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	a.Landmark = strings.TrimSpace(a.Landmark)
	a.Instructions = strings.TrimSpace(a.Instructions)
	if a.State == "" {
		a.State = DefaultState
	}
	if a.Country == "" {
		a.Country = DefaultCountry
	}
	return a
}

// LineItem is a snapshot taken at checkout; later catalog edits never reach it.
type LineItem struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductImage string          `json:"product_image,omitempty"`
	Quantity     int             `json:"quantity"`
	Unit         string          `json:"unit"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
	SellerID     string          `json:"seller_id"`
	SellerName   string          `json:"seller_name"`
}

type Order struct {
	ID          string          `json:"id"`
	Number      string          `json:"order_number"`
	BuyerID     string          `json:"buyer_id"`
	Buyer       Buyer           `json:"buyer"`
	Items       []LineItem      `json:"items"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`

	Status        Status          `json:"status"`
	PaymentMethod payment.Method  `json:"payment_method"`
	PaymentStatus payment.Status  `json:"payment_status"`
	Payment       payment.Details `json:"payment_details"`

	DeliveryAddress      Address    `json:"delivery_address"`
	DeliveryDate         *time.Time `json:"delivery_date,omitempty"`
	DeliveryTimeSlot     TimeSlot   `json:"delivery_time_slot"`
	DeliveryInstructions string     `json:"delivery_instructions,omitempty"`
	Notes                string     `json:"notes,omitempty"`

	CancellationReason string     `json:"cancellation_reason,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	RejectedAt         *time.Time `json:"rejected_at,omitempty"`
	ProcessedAt        *time.Time `json:"processed_at,omitempty"`
	ShippedAt          *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time `json:"delivered_at,omitempty"`
	ReceivedAt         *time.Time `json:"received_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasSeller reports whether sellerID owns at least one line.
func (o *Order) HasSeller(sellerID string) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}

// SellerIDs returns the distinct sellers in line order.
func (o *Order) SellerIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	out := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		if _, ok := seen[it.SellerID]; ok {
			continue
		}
		seen[it.SellerID] = struct{}{}
		out = append(out, it.SellerID)
	}
	return out
}

// IsParty reports whether the actor is the order's buyer or one of its sellers.
func (o *Order) IsParty(a Actor) bool {
	switch a.Role {
	case RoleBuyer:
		return a.ID != "" && a.ID == o.BuyerID
	case RoleSeller:
		return a.ID != "" && o.HasSeller(a.ID)
	}
	return false
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	c.Payment.PaidAt = cloneTime(o.Payment.PaidAt)
	c.Payment.RefundedAt = cloneTime(o.Payment.RefundedAt)
	c.DeliveryDate = cloneTime(o.DeliveryDate)
	c.ConfirmedAt = cloneTime(o.ConfirmedAt)
	c.RejectedAt = cloneTime(o.RejectedAt)
	c.ProcessedAt = cloneTime(o.ProcessedAt)
	c.ShippedAt = cloneTime(o.ShippedAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	c.ReceivedAt = cloneTime(o.ReceivedAt)
	c.CancelledAt = cloneTime(o.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (o *Order) touch(now time.Time) {
	o.UpdatedAt = now
}
