package paystub

import (
	"fmt"
	"time"
)

// RowKind tells the renderer how to treat a report row.
type RowKind string

const (
	RowTitle  RowKind = "title"
	RowField  RowKind = "field"
	RowCheck  RowKind = "check"
	RowNote   RowKind = "note"
	RowFooter RowKind = "footer"
)

// ReportRow is one labeled line of the compliance report.
type ReportRow struct {
	Kind  RowKind
	Label string
	Value string
}

// ReportDescription is the render-target-agnostic shape of the report. The
// PDF renderer consumes it without knowing anything about compliance
// semantics.
type ReportDescription struct {
	Rows []ReportRow
}

const (
	reportTitle    = "Payroll Compliance Report"
	notAvailable   = "Not Available"
	labelPassed    = "PASSED"
	labelFailed    = "FAILED"
	labelViolation = "VIOLATION FOUND"
	labelNoIssue   = "NO VIOLATION"
)

// Assembler turns extracted fields plus compliance results into a report
// description. It needs the policy only to spell out the long-shift bonus
// rule in the explanatory block.
type Assembler struct {
	policy Policy
}

// NewAssembler builds an Assembler for the given policy.
func NewAssembler(policy Policy) *Assembler {
	return &Assembler{policy: policy}
}

// Assemble produces the ordered report rows. Absent numeric fields render as
// an explicit placeholder, never as $0.00: zero is a distinct, valid value.
func (a *Assembler) Assemble(fields FieldRecord, result ComplianceResult, generatedAt time.Time) ReportDescription {
	rows := []ReportRow{
		{Kind: RowTitle, Label: reportTitle},
		{Kind: RowField, Label: "Employee Name", Value: textOrPlaceholder(fields.EmployeeName)},
		{Kind: RowField, Label: "Total Hours", Value: hoursOrPlaceholder(fields.TotalHours)},
		{Kind: RowField, Label: "Gross Pay", Value: currencyOrPlaceholder(fields.GrossPay)},
		{Kind: RowField, Label: "Net Pay", Value: currencyOrPlaceholder(fields.NetPay)},
		{Kind: RowCheck, Label: "Minimum Wage Check", Value: passFail(result.MinimumWageMet)},
		{Kind: RowCheck, Label: "Overtime Compliance", Value: passFail(result.OvertimeCompliant)},
		{Kind: RowCheck, Label: "Total Compensation", Value: passFail(result.TotalCompensationValid)},
		{Kind: RowCheck, Label: "Long Shift Bonus", Value: violationLabel(result.LongShiftViolation)},
	}
	if result.LongShiftViolation && result.AdditionalPayOwed != nil {
		note := fmt.Sprintf(
			"Each shift exceeding the long-shift threshold requires %.1f extra hour(s) of pay at the minimum wage of %s. Additional pay owed: %s.",
			a.policy.LongShiftBonusHours,
			formatCurrency(a.policy.MinimumWage),
			formatCurrency(*result.AdditionalPayOwed),
		)
		rows = append(rows, ReportRow{Kind: RowNote, Label: "Long Shift Bonus Owed", Value: note})
	}
	rows = append(rows, ReportRow{
		Kind:  RowFooter,
		Label: "Generated",
		Value: generatedAt.UTC().Format("2006-01-02 15:04 MST"),
	})
	return ReportDescription{Rows: rows}
}

func formatCurrency(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func currencyOrPlaceholder(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return formatCurrency(*v)
}

func hoursOrPlaceholder(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return fmt.Sprintf("%.2f", *v)
}

func textOrPlaceholder(v *string) string {
	if v == nil {
		return notAvailable
	}
	return *v
}

func passFail(ok bool) string {
	if ok {
		return labelPassed
	}
	return labelFailed
}

func violationLabel(violation bool) string {
	if violation {
		return labelViolation
	}
	return labelNoIssue
}
