package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/payment"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleBuyer, RoleSeller:
		return r, nil
	}
	return "", ErrUnknownRole
}

// Actor is an authenticated caller acting on an order.
type Actor struct {
	ID   string
	Role Role
}

type transition struct {
	from, to Status
	role     Role
}

// transitions is the whole lifecycle. Anything absent is refused.
var transitions = map[transition]struct{}{
	{StatusPending, StatusConfirmed, RoleSeller}:    {},
	{StatusPending, StatusRejected, RoleSeller}:     {},
	{StatusPending, StatusCancelled, RoleBuyer}:     {},
	{StatusConfirmed, StatusProcessing, RoleSeller}: {},
	{StatusConfirmed, StatusCancelled, RoleBuyer}:   {},
	{StatusProcessing, StatusShipped, RoleSeller}:   {},
	{StatusShipped, StatusDelivered, RoleSeller}:    {},
	{StatusDelivered, StatusReceived, RoleBuyer}:    {},
}

// requestable lists the targets each role may ever ask for, whatever the current status.
var requestable = map[Role]map[Status]struct{}{
	RoleBuyer: {
		StatusCancelled: {},
		StatusReceived:  {},
	},
	RoleSeller: {
		StatusConfirmed:  {},
		StatusRejected:   {},
		StatusProcessing: {},
		StatusShipped:    {},
		StatusDelivered:  {},
	},
}

// CanRequest reports whether role may ever request target.
func CanRequest(role Role, target Status) bool {
	_, ok := requestable[role][target]
	return ok
}

// Allowed reports whether the table contains (from, to, role).
func Allowed(from, to Status, role Role) bool {
	_, ok := transitions[transition{from: from, to: to, role: role}]
	return ok
}

// Transition moves the order to target on behalf of actor.
// It returns changed=false without touching the order when target equals the current status.
func (o *Order) Transition(target Status, actor Actor, reason string, now time.Time) (changed bool, err error) {
	if !CanRequest(actor.Role, target) {
		return false, fmt.Errorf("%w: %s may not set %s", ErrInvalidActor, actor.Role, target)
	}
	if !o.IsParty(actor) {
		return false, fmt.Errorf("%w: %s %q is not a party to order %s", ErrInvalidActor, actor.Role, actor.ID, o.Number)
	}
	if o.Status == target {
		return false, nil
	}
	if !Allowed(o.Status, target, actor.Role) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}

	at := now
	switch target {
	case StatusConfirmed:
		o.ConfirmedAt = &at
	case StatusRejected:
		o.RejectedAt = &at
		o.CancellationReason = strings.TrimSpace(reason)
	case StatusProcessing:
		o.ProcessedAt = &at
	case StatusShipped:
		o.ShippedAt = &at
	case StatusDelivered:
		o.DeliveredAt = &at
		if o.PaymentMethod.SettledOnDelivery() && o.PaymentStatus == payment.StatusPending {
			o.PaymentStatus = payment.StatusPaid
			o.Payment.PaidAt = &at
		}
	case StatusReceived:
		o.ReceivedAt = &at
	case StatusCancelled:
		o.CancelledAt = &at
		o.CancellationReason = strings.TrimSpace(reason)
	}
	o.Status = target
	o.touch(now)
	return true, nil
}

// RecordPayment applies a gateway outcome to a non-COD order.
// Repeating the outcome already recorded is a no-op.
func (o *Order) RecordPayment(paid bool, transactionID, gateway string, now time.Time) (changed bool, err error) {
	if o.PaymentMethod.SettledOnDelivery() {
		return false, fmt.Errorf("%w: cash on delivery is settled on delivery", ErrInvalidTransition)
	}
	target := payment.StatusFailed
	if paid {
		target = payment.StatusPaid
	}
	if o.PaymentStatus == target {
		return false, nil
	}
	if o.Status.ReleasesStock() && paid {
		return false, fmt.Errorf("%w: order is %s", ErrInvalidTransition, o.Status)
	}
	switch o.PaymentStatus {
	case payment.StatusPending, payment.StatusFailed:
	default:
		return false, fmt.Errorf("%w: payment is %s", ErrInvalidTransition, o.PaymentStatus)
	}

	o.PaymentStatus = target
	if transactionID != "" {
		o.Payment.TransactionID = transactionID
	}
	if gateway != "" {
		o.Payment.Gateway = gateway
	}
	if paid {
		at := now
		o.Payment.PaidAt = &at
	}
	o.touch(now)
	return true, nil
}

// Refund marks a paid, cancelled or rejected order as refunded.
func (o *Order) Refund(now time.Time) (changed bool, err error) {
	if o.PaymentStatus == payment.StatusRefunded {
		return false, nil
	}
	if !o.Status.ReleasesStock() {
		return false, fmt.Errorf("%w: only cancelled or rejected orders are refunded, order is %s", ErrInvalidTransition, o.Status)
	}
	if o.PaymentStatus != payment.StatusPaid {
		return false, fmt.Errorf("%w: payment is %s", ErrInvalidTransition, o.PaymentStatus)
	}
	at := now
	o.PaymentStatus = payment.StatusRefunded
	o.Payment.RefundedAt = &at
	o.touch(now)
	return true, nil
}
