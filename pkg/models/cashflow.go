package models

import "strings"

// --- Cash flows ---

// CashFlowType classifies a scheduled or stressed event.
type CashFlowType string

const (
	FlowDrawdown        CashFlowType = "drawdown"
	FlowRepayment       CashFlowType = "repayment"
	FlowInterest        CashFlowType = "interest"
	FlowFee             CashFlowType = "fee"
	FlowPrepayment      CashFlowType = "prepayment"
	FlowDefault         CashFlowType = "default"
	FlowRecovery        CashFlowType = "recovery"
	FlowNetLoss         CashFlowType = "netloss"
	FlowLiquidityCrisis CashFlowType = "liquidity_crisis"
)

// ErrorFlowPrefix prefixes the id of the sentinel flow returned when a
// schedule could not be generated.
const ErrorFlowPrefix = "error-"

// CashFlow is one event of a loan schedule. Date is an ISO date string.
type CashFlow struct {
	ID          string       `json:"id"`
	Date        string       `json:"date"`
	Type        CashFlowType `json:"type"`
	Amount      float64      `json:"amount"`
	IsManual    bool         `json:"isManual,omitempty"`
	Description string       `json:"description,omitempty"`
}

// IsError reports whether the flow is a generation-failure sentinel.
func (c CashFlow) IsError() bool {
	return strings.HasPrefix(c.ID, ErrorFlowPrefix)
}
