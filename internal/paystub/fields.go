// Package paystub implements the wage-compliance pipeline core: extracting
// structured fields from paystub text, evaluating labor-law checks against
// them, and assembling the report those checks produce.
package paystub

// FieldRecord holds the facts pulled out of a paystub. A nil pointer means
// the field could not be extracted; zero is a valid present value and must
// not be conflated with absence.
type FieldRecord struct {
	EmployeeName *string
	NetPay       *float64
	GrossPay     *float64
	TotalHours   *float64
}

// ManualShiftInput is supplied by the caller at submission time. Long shifts
// are not visible in the document text, so the user asserts them. The zero
// value means no shift exceeded the threshold.
type ManualShiftInput struct {
	ShiftsExceededThreshold bool `json:"shifts_exceeded_threshold"`
	ExceededShiftCount      int  `json:"exceeded_shift_count"`
}

// ComplianceResult is the evaluator's verdict on a FieldRecord.
// AdditionalPayOwed is set only when LongShiftViolation is true.
type ComplianceResult struct {
	MinimumWageMet         bool
	OvertimeCompliant      bool
	TotalCompensationValid bool
	LongShiftViolation     bool
	AdditionalPayOwed      *float64
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
