package enums

import "fmt"

// CashShiftStatus tracks a till session. Closed is terminal.
type CashShiftStatus string

const (
	CashShiftStatusOpen   CashShiftStatus = "open"
	CashShiftStatusClosed CashShiftStatus = "closed"
)

// IsValid reports whether the value is a known CashShiftStatus.
func (s CashShiftStatus) IsValid() bool {
	return s == CashShiftStatusOpen || s == CashShiftStatusClosed
}

// CashOperationType classifies an immutable till movement.
type CashOperationType string

const (
	CashOperationIncome     CashOperationType = "income"
	CashOperationExpense    CashOperationType = "expense"
	CashOperationDeposit    CashOperationType = "deposit"
	CashOperationWithdrawal CashOperationType = "withdrawal"
	CashOperationRefund     CashOperationType = "refund"
)

var validCashOperationTypes = []CashOperationType{
	CashOperationIncome,
	CashOperationExpense,
	CashOperationDeposit,
	CashOperationWithdrawal,
	CashOperationRefund,
}

// String implements fmt.Stringer.
func (t CashOperationType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known CashOperationType.
func (t CashOperationType) IsValid() bool {
	for _, candidate := range validCashOperationTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// AddsCash reports whether a cash operation of this type increases the drawer.
func (t CashOperationType) AddsCash() bool {
	return t == CashOperationIncome || t == CashOperationDeposit
}

// ParseCashOperationType converts raw input into a CashOperationType.
func ParseCashOperationType(value string) (CashOperationType, error) {
	for _, candidate := range validCashOperationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cash operation type %q", value)
}
