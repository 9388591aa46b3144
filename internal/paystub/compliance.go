package paystub

// Policy carries the wage-law thresholds. Observed values have changed over
// time (the minimum wage moved from $15.00 to $16.50), so they are supplied
// by configuration rather than compiled into the evaluator.
type Policy struct {
	MinimumWage         float64
	OvertimeMultiplier  float64
	StandardWeekHours   float64
	LongShiftBonusHours float64
}

// DefaultPolicy mirrors the config defaults.
func DefaultPolicy() Policy {
	return Policy{
		MinimumWage:         16.50,
		OvertimeMultiplier:  1.5,
		StandardWeekHours:   40,
		LongShiftBonusHours: 1,
	}
}

// Evaluator applies a Policy to extracted paystub fields.
type Evaluator struct {
	policy Policy
}

// NewEvaluator builds an Evaluator for the given policy.
func NewEvaluator(policy Policy) *Evaluator {
	return &Evaluator{policy: policy}
}

// Policy returns the thresholds this evaluator applies.
func (e *Evaluator) Policy() Policy { return e.policy }

// Evaluate computes the compliance verdicts for a FieldRecord. It is a pure
// function and never errors: missing or zero inputs degrade to "not
// compliant" / "no violation" rather than passing silently.
func (e *Evaluator) Evaluate(fields FieldRecord, manual ManualShiftInput) ComplianceResult {
	p := e.policy
	var result ComplianceResult

	result.TotalCompensationValid = present(fields.NetPay) && present(fields.GrossPay)

	if present(fields.NetPay) && present(fields.TotalHours) {
		hours := *fields.TotalHours
		// Above the standard week the net figure already blends in
		// overtime pay, so the gross amount is used to estimate the
		// regular rate. This is a heuristic carried over from earlier
		// revisions, not a statutory formula; flagged for legal review.
		var rate float64
		switch {
		case hours <= p.StandardWeekHours:
			rate = *fields.NetPay / hours
		case present(fields.GrossPay):
			rate = *fields.GrossPay / hours
		}
		if rate > 0 {
			result.MinimumWageMet = rate >= p.MinimumWage
			if hours <= p.StandardWeekHours {
				result.OvertimeCompliant = true
			} else {
				overtimePaid := *fields.GrossPay - p.StandardWeekHours*rate
				overtimeOwed := (hours - p.StandardWeekHours) * rate * p.OvertimeMultiplier
				result.OvertimeCompliant = overtimePaid >= overtimeOwed
			}
		}
	}

	if manual.ShiftsExceededThreshold && manual.ExceededShiftCount > 0 {
		result.LongShiftViolation = true
		owed := float64(manual.ExceededShiftCount) * p.MinimumWage * p.LongShiftBonusHours
		result.AdditionalPayOwed = floatPtr(owed)
	}

	return result
}

func present(v *float64) bool { return v != nil && *v > 0 }
