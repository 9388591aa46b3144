package paystub

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Field names the extractable paystub fields. They double as the keys of the
// pattern table and as the field label on diagnostic log lines.
type Field string

const (
	FieldEmployeeName Field = "employee_name"
	FieldNetPay       Field = "net_pay"
	FieldGrossPay     Field = "gross_pay"
	FieldTotalHours   Field = "total_hours"
)

// PatternTable maps a field to its ordered candidate label patterns. The
// first pattern whose match survives coercion wins; later candidates for the
// same field are never consulted after that. Fields are independent of each
// other. Keeping the table explicit lets new label variants ship as data
// rather than as evaluator changes.
type PatternTable map[Field][]*regexp.Regexp

// amount matches an optional dollar sign followed by a number that may carry
// thousands separators.
const amount = `\$?\s*(-?[0-9][0-9,]*(?:\.[0-9]+)?)`

// DefaultPatternTable returns the label variants observed across paystub
// layouts so far.
func DefaultPatternTable() PatternTable {
	return PatternTable{
		FieldEmployeeName: {
			regexp.MustCompile(`(?i)EMPLOYEE\s+NAME\s*:\s*([^\r\n]+)`),
			regexp.MustCompile(`(?i)EMPLOYEE\s*:\s*([^\r\n]+)`),
			regexp.MustCompile(`(?i)\bNAME\s*:\s*([^\r\n]+)`),
		},
		FieldNetPay: {
			regexp.MustCompile(`(?i)NET\s+PAY\s*:?\s*` + amount),
			regexp.MustCompile(`(?i)NET\s+AMOUNT\s*:?\s*` + amount),
			regexp.MustCompile(`(?i)TOTAL\s+NET\s*:?\s*` + amount),
			regexp.MustCompile(`(?i)TAKE\s+HOME\s+PAY\s*:?\s*` + amount),
		},
		FieldGrossPay: {
			regexp.MustCompile(`(?i)GROSS\s+PAY\s*:?\s*` + amount),
			regexp.MustCompile(`(?i)GROSS\s+AMOUNT\s*:?\s*` + amount),
			regexp.MustCompile(`(?i)TOTAL\s+GROSS\s*:?\s*` + amount),
			regexp.MustCompile(`(?i)TOTAL\s+EARNINGS\s*:?\s*` + amount),
		},
		FieldTotalHours: {
			regexp.MustCompile(`(?i)TOTAL\s+HOURS\s*:?\s*` + amount),
			regexp.MustCompile(`(?i)HOURS\s+WORKED\s*:?\s*` + amount),
			regexp.MustCompile(`(?i)TOTAL\s+HRS\s*:?\s*` + amount),
			regexp.MustCompile(`(?i)REG\s+HOURS\s*:?\s*` + amount),
		},
	}
}

// Extractor turns raw extracted text into a FieldRecord.
type Extractor struct {
	table  PatternTable
	logger zerolog.Logger
}

// NewExtractor builds an Extractor using the default pattern table.
func NewExtractor(logger zerolog.Logger) *Extractor {
	return NewExtractorWithTable(DefaultPatternTable(), logger)
}

// NewExtractorWithTable builds an Extractor with a caller-supplied table.
func NewExtractorWithTable(table PatternTable, logger zerolog.Logger) *Extractor {
	return &Extractor{table: table, logger: logger}
}

// Extract applies the pattern table to text. A field that matches nothing,
// or whose every match fails numeric coercion, comes back absent; one
// field's absence never blocks extraction of the others. Empty input skips
// pattern matching entirely.
func (e *Extractor) Extract(text string) FieldRecord {
	var record FieldRecord
	if strings.TrimSpace(text) == "" {
		return record
	}
	record.EmployeeName = e.matchText(FieldEmployeeName, text)
	record.NetPay = e.matchNumeric(FieldNetPay, text)
	record.GrossPay = e.matchNumeric(FieldGrossPay, text)
	record.TotalHours = e.matchNumeric(FieldTotalHours, text)
	return record
}

func (e *Extractor) matchText(field Field, text string) *string {
	for _, re := range e.table[field] {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v := strings.TrimSpace(m[1])
		if v == "" {
			continue
		}
		return strPtr(v)
	}
	e.logger.Debug().Str("field", string(field)).Msg("no pattern matched")
	return nil
}

func (e *Extractor) matchNumeric(field Field, text string) *float64 {
	for _, re := range e.table[field] {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ",", "")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			// Coercion failure falls through to the next candidate
			// rather than aborting the field.
			continue
		}
		return floatPtr(v)
	}
	e.logger.Debug().Str("field", string(field)).Msg("no pattern matched")
	return nil
}
