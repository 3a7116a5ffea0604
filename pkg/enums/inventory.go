package enums

import "fmt"

// InvoiceType determines the direction of stock a completed invoice applies.
type InvoiceType string

const (
	InvoiceTypeIncome   InvoiceType = "income"
	InvoiceTypeExpense  InvoiceType = "expense"
	InvoiceTypeWriteOff InvoiceType = "write_off"
	InvoiceTypeTransfer InvoiceType = "transfer"
)

var validInvoiceTypes = []InvoiceType{
	InvoiceTypeIncome,
	InvoiceTypeExpense,
	InvoiceTypeWriteOff,
	InvoiceTypeTransfer,
}

// IsValid reports whether the value is a known InvoiceType.
func (t InvoiceType) IsValid() bool {
	for _, candidate := range validInvoiceTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseInvoiceType converts raw input into an InvoiceType.
func ParseInvoiceType(value string) (InvoiceType, error) {
	for _, candidate := range validInvoiceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice type %q", value)
}

// DocumentStatus is shared by invoices and inventory checks.
type DocumentStatus string

const (
	DocumentStatusDraft      DocumentStatus = "draft"
	DocumentStatusInProgress DocumentStatus = "in_progress"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusCanceled   DocumentStatus = "canceled"
)

// IsTerminal reports whether the document can no longer change.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusCanceled
}

// StockMovementType classifies a stock ledger entry.
type StockMovementType string

const (
	StockMovementIncome      StockMovementType = "income"
	StockMovementExpense     StockMovementType = "expense"
	StockMovementWriteOff    StockMovementType = "write_off"
	StockMovementTransferIn  StockMovementType = "transfer_in"
	StockMovementTransferOut StockMovementType = "transfer_out"
	StockMovementInventory   StockMovementType = "inventory"
	StockMovementSale        StockMovementType = "sale"
)

var validStockMovementTypes = []StockMovementType{
	StockMovementIncome,
	StockMovementExpense,
	StockMovementWriteOff,
	StockMovementTransferIn,
	StockMovementTransferOut,
	StockMovementInventory,
	StockMovementSale,
}

// IsValid reports whether the value is a known StockMovementType.
func (t StockMovementType) IsValid() bool {
	for _, candidate := range validStockMovementTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseStockMovementType converts raw input into a StockMovementType.
func ParseStockMovementType(value string) (StockMovementType, error) {
	for _, candidate := range validStockMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock movement type %q", value)
}

// DocumentType links a stock movement back to the record that caused it.
type DocumentType string

const (
	DocumentTypeInvoice        DocumentType = "invoice"
	DocumentTypeInventoryCheck DocumentType = "inventory_check"
	DocumentTypeOrder          DocumentType = "order"
	DocumentTypeManual         DocumentType = "manual"
)

// SequenceKind names a per-restaurant document counter.
type SequenceKind string

const (
	SequenceInvoice        SequenceKind = "invoice"
	SequenceInventoryCheck SequenceKind = "inventory_check"
	SequenceOrder          SequenceKind = "order"
)

// Prefix returns the printed document number prefix.
func (k SequenceKind) Prefix() string {
	switch k {
	case SequenceInvoice:
		return "INV"
	case SequenceInventoryCheck:
		return "IC"
	case SequenceOrder:
		return "ORD"
	default:
		return "DOC"
	}
}
