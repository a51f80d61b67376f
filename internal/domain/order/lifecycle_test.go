package order

import (
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	buyer  = Actor{ID: "buyer-1", Role: RoleBuyer}
	seller = Actor{ID: "seller-1", Role: RoleSeller}
)

func newTestOrder(status Status) *Order {
	return &Order{
		ID:            "o-1",
		Number:        "TS260101000001",
		BuyerID:       buyer.ID,
		Items:         []LineItem{{ProductID: "p1", Quantity: 2, SellerID: seller.ID}},
		Status:        status,
		PaymentMethod: payment.MethodCOD,
		PaymentStatus: payment.StatusPending,
	}
}

func TestTransition_Table(t *testing.T) {
	statuses := []Status{StatusPending, StatusConfirmed, StatusRejected, StatusProcessing,
		StatusShipped, StatusDelivered, StatusReceived, StatusCancelled}
	allowed := map[[2]Status]Role{
		{StatusPending, StatusConfirmed}:    RoleSeller,
		{StatusPending, StatusRejected}:     RoleSeller,
		{StatusPending, StatusCancelled}:    RoleBuyer,
		{StatusConfirmed, StatusProcessing}: RoleSeller,
		{StatusConfirmed, StatusCancelled}:  RoleBuyer,
		{StatusProcessing, StatusShipped}:   RoleSeller,
		{StatusShipped, StatusDelivered}:    RoleSeller,
		{StatusDelivered, StatusReceived}:   RoleBuyer,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			if from == to {
				continue
			}
			for _, actor := range []Actor{buyer, seller} {
				o := newTestOrder(from)
				changed, err := o.Transition(to, actor, "", time.Now())

				role, ok := allowed[[2]Status{from, to}]
				switch {
				case !CanRequest(actor.Role, to):
					assert.ErrorIs(t, err, ErrInvalidActor, "%s %s->%s", actor.Role, from, to)
				case ok && role == actor.Role:
					require.NoError(t, err, "%s %s->%s", actor.Role, from, to)
					assert.True(t, changed)
					assert.Equal(t, to, o.Status)
				default:
					assert.ErrorIs(t, err, ErrInvalidTransition, "%s %s->%s", actor.Role, from, to)
					assert.Equal(t, from, o.Status)
				}
			}
		}
	}
}

func TestTransition_RoleGating(t *testing.T) {
	o := newTestOrder(StatusPending)
	_, err := o.Transition(StatusConfirmed, buyer, "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidActor)

	o = newTestOrder(StatusDelivered)
	_, err = o.Transition(StatusReceived, seller, "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidActor)
}

func TestTransition_RequiresParty(t *testing.T) {
	o := newTestOrder(StatusPending)

	_, err := o.Transition(StatusCancelled, Actor{ID: "someone-else", Role: RoleBuyer}, "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidActor)

	_, err = o.Transition(StatusConfirmed, Actor{ID: "other-seller", Role: RoleSeller}, "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidActor)
}

func TestTransition_SameStatusIsNoop(t *testing.T) {
	o := newTestOrder(StatusConfirmed)
	before := *o

	changed, err := o.Transition(StatusConfirmed, seller, "", time.Now())

	require.NoError(t, err)
	assert.False(t, changed)
	assert.Nil(t, o.ConfirmedAt)
	assert.Equal(t, before.UpdatedAt, o.UpdatedAt)
}

func TestTransition_CancelStampsReason(t *testing.T) {
	o := newTestOrder(StatusPending)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	changed, err := o.Transition(StatusCancelled, buyer, "  changed mind ", now)

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, "changed mind", o.CancellationReason)
	require.NotNil(t, o.CancelledAt)
	assert.Equal(t, now, *o.CancelledAt)
	assert.Equal(t, now, o.UpdatedAt)
}

func TestTransition_RejectIsDistinctFromCancel(t *testing.T) {
	o := newTestOrder(StatusPending)

	_, err := o.Transition(StatusRejected, seller, "out of season", time.Now())

	require.NoError(t, err)
	assert.Equal(t, StatusRejected, o.Status)
	assert.NotNil(t, o.RejectedAt)
	assert.Nil(t, o.CancelledAt)
	assert.True(t, o.Status.ReleasesStock())
	assert.True(t, o.Status.Terminal())
}

func TestTransition_CODPaidOnDelivery(t *testing.T) {
	o := newTestOrder(StatusShipped)

	_, err := o.Transition(StatusDelivered, seller, "", time.Now())

	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, o.PaymentStatus)
	assert.NotNil(t, o.Payment.PaidAt)
}

func TestTransition_NonCODPaymentUntouchedOnDelivery(t *testing.T) {
	o := newTestOrder(StatusShipped)
	o.PaymentMethod = payment.MethodKhalti

	_, err := o.Transition(StatusDelivered, seller, "", time.Now())

	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, o.PaymentStatus)
	assert.Nil(t, o.Payment.PaidAt)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("Approved")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, st)

	st, err = ParseStatus(" shipped ")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, st)

	_, err = ParseStatus("teleported")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestRecordPayment(t *testing.T) {
	o := newTestOrder(StatusPending)
	o.PaymentMethod = payment.MethodESewa

	changed, err := o.RecordPayment(false, "tx-1", "esewa", time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, payment.StatusFailed, o.PaymentStatus)

	changed, err = o.RecordPayment(true, "tx-2", "esewa", time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, payment.StatusPaid, o.PaymentStatus)
	assert.Equal(t, "tx-2", o.Payment.TransactionID)
	assert.NotNil(t, o.Payment.PaidAt)

	changed, err = o.RecordPayment(true, "tx-2", "esewa", time.Now())
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = o.RecordPayment(false, "", "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRecordPayment_RejectsCOD(t *testing.T) {
	o := newTestOrder(StatusPending)
	_, err := o.RecordPayment(true, "tx", "cash", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRefund(t *testing.T) {
	o := newTestOrder(StatusConfirmed)
	o.PaymentMethod = payment.MethodKhalti
	o.PaymentStatus = payment.StatusPaid

	_, err := o.Refund(time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition, "active orders are not refunded")

	o.Status = StatusCancelled
	changed, err := o.Refund(time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, payment.StatusRefunded, o.PaymentStatus)
	assert.NotNil(t, o.Payment.RefundedAt)

	changed, err = o.Refund(time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRefund_RequiresPaid(t *testing.T) {
	o := newTestOrder(StatusRejected)
	_, err := o.Refund(time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
