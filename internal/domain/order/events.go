package order

import (
	"time"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/payment"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced          = "order.placed"
	EventStatusChanged        = "order.status_changed"
	EventPaymentStatusChanged = "order.payment_status_changed"
)

// PlacedEvent is emitted once checkout has committed an order.
type PlacedEvent struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	BuyerID     string          `json:"buyer_id"`
	SellerIDs   []string        `json:"seller_ids"`
	Total       decimal.Decimal `json:"total"`
	Method      payment.Method  `json:"payment_method"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

func (PlacedEvent) EventName() string { return EventOrderPlaced }
func (e PlacedEvent) AggregateID() string { return e.OrderID }

func NewPlacedEvent(o *Order) PlacedEvent {
	return PlacedEvent{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		BuyerID:     o.BuyerID,
		SellerIDs:   o.SellerIDs(),
		Total:       o.Total,
		Method:      o.PaymentMethod,
		OccurredAt:  time.Now().UTC(),
	}
}

// StatusChangedEvent is emitted after a lifecycle transition is persisted.
type StatusChangedEvent struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	ActorID     string    `json:"actor_id"`
	ActorRole   Role      `json:"actor_role"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (StatusChangedEvent) EventName() string { return EventStatusChanged }
func (e StatusChangedEvent) AggregateID() string { return e.OrderID }

func NewStatusChangedEvent(o *Order, from Status, actor Actor) StatusChangedEvent {
	return StatusChangedEvent{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		From:        from,
		To:          o.Status,
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		Reason:      o.CancellationReason,
		OccurredAt:  time.Now().UTC(),
	}
}

// PaymentStatusChangedEvent is emitted when the payment side channel moves.
type PaymentStatusChangedEvent struct {
	OrderID     string         `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	From        payment.Status `json:"from"`
	To          payment.Status `json:"to"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

func (PaymentStatusChangedEvent) EventName() string { return EventPaymentStatusChanged }
func (e PaymentStatusChangedEvent) AggregateID() string { return e.OrderID }

func NewPaymentStatusChangedEvent(o *Order, from payment.Status) PaymentStatusChangedEvent {
	return PaymentStatusChangedEvent{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		From:        from,
		To:          o.PaymentStatus,
		OccurredAt:  time.Now().UTC(),
	}
}
