package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytipspro/checkmychecks/internal/paystub"
)

func TestRender_ProducesPDF(t *testing.T) {
	assembler := paystub.NewAssembler(paystub.DefaultPolicy())
	name := "Jane Doe"
	net, gross, hours := 1012.87, 1275.0, 42.5
	owed := 49.50
	desc := assembler.Assemble(
		paystub.FieldRecord{
			EmployeeName: &name,
			NetPay:       &net,
			GrossPay:     &gross,
			TotalHours:   &hours,
		},
		paystub.ComplianceResult{
			MinimumWageMet:         true,
			TotalCompensationValid: true,
			LongShiftViolation:     true,
			AdditionalPayOwed:      &owed,
		},
		time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
	)

	data, err := Render(desc)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestRender_EmptyDescription(t *testing.T) {
	data, err := Render(paystub.ReportDescription{})
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}
