package payment

import (
	"errors"
	"strings"
	"time"
)

var ErrUnknownMethod = errors.New("payment: unknown method")

type Method string

const (
	MethodCOD          Method = "cod"
	MethodBankTransfer Method = "bank_transfer"
	MethodESewa        Method = "esewa"
	MethodKhalti       Method = "khalti"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodCOD, MethodBankTransfer, MethodESewa, MethodKhalti:
		return m, nil
	}
	return "", ErrUnknownMethod
}

// SettledOnDelivery reports whether the method is paid in hand when goods arrive.
func (m Method) SettledOnDelivery() bool { return m == MethodCOD }

// Details records what the gateway reported. Gateway wire formats live outside this service.
type Details struct {
	TransactionID string     `json:"transaction_id,omitempty"`
	Gateway       string     `json:"gateway,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
}
