// Package worker runs the background paystub pipeline: fetch bytes, extract
// text, extract fields, evaluate compliance, render and store the report,
// and dispatch the notification email.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/mytipspro/checkmychecks/internal/mailer"
	"github.com/mytipspro/checkmychecks/internal/obs"
	"github.com/mytipspro/checkmychecks/internal/paystub"
	"github.com/mytipspro/checkmychecks/internal/pdftext"
	"github.com/mytipspro/checkmychecks/internal/queue"
	"github.com/mytipspro/checkmychecks/internal/report"
	"github.com/mytipspro/checkmychecks/internal/repository"
)

// ObjectStore is the slice of blob storage the pipeline needs.
type ObjectStore interface {
	DownloadPaystub(ctx context.Context, objectKey string) ([]byte, error)
	UploadReport(ctx context.Context, objectKey string, data []byte) error
}

// Mailer dispatches the finished report.
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// TextExtractor turns document bytes into plain text.
type TextExtractor func(data []byte) (string, error)

// Renderer turns a report description into document bytes.
type Renderer func(desc paystub.ReportDescription) ([]byte, error)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	jobs      repository.Store
	store     ObjectStore
	mail      Mailer
	extractor *paystub.Extractor
	evaluator *paystub.Evaluator
	assembler *paystub.Assembler
	extract   TextExtractor
	render    Renderer
	logger    zerolog.Logger
}

// NewProcessor constructs a worker processor with the production text
// extractor and renderer.
func NewProcessor(jobs repository.Store, store ObjectStore, mail Mailer, policy paystub.Policy, logger zerolog.Logger) *Processor {
	return &Processor{
		jobs:      jobs,
		store:     store,
		mail:      mail,
		extractor: paystub.NewExtractor(logger),
		evaluator: paystub.NewEvaluator(policy),
		assembler: paystub.NewAssembler(policy),
		extract:   pdftext.ExtractText,
		render:    report.Render,
		logger:    logger,
	}
}

// Handler registers the process job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ProcessPaystubTask, p.handleProcess)
	return mux
}

func (p *Processor) handleProcess(ctx context.Context, task *asynq.Task) error {
	var payload queue.ProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	return p.ProcessJob(ctx, payload)
}

// ProcessJob runs the pipeline for one job. Terminal outcomes (failed,
// completed, completed_with_errors) are persisted before returning, and
// wrapped in asynq.SkipRetry so a job that recorded its outcome is never
// re-run.
func (p *Processor) ProcessJob(ctx context.Context, payload queue.ProcessPayload) error {
	start := time.Now()
	logger := p.logger.With().Str("job_id", payload.JobID).Logger()

	fail := func(step string, err error) error {
		logger.Error().Err(err).Str("step", step).Msg("pipeline step failed")
		msg := fmt.Sprintf("%s: %v", step, err)
		if markErr := p.jobs.MarkFailed(ctx, payload.JobID, msg); markErr != nil {
			logger.Error().Err(markErr).Msg("mark failed")
		}
		obs.RecordPipelineJob(start, "failed")
		return fmt.Errorf("%s: %v: %w", step, err, asynq.SkipRetry)
	}

	if err := p.jobs.MarkProcessing(ctx, payload.JobID, payload.Recipient); err != nil {
		// The status store itself is unreachable; let asynq retry.
		return fmt.Errorf("mark processing: %w", err)
	}

	data, err := withRetry(ctx, func() ([]byte, error) {
		return p.store.DownloadPaystub(ctx, payload.SourceHandle)
	})
	if err != nil {
		return fail("fetch document", err)
	}

	text, err := p.extract(data)
	if err != nil {
		return fail("extract text", err)
	}
	if strings.TrimSpace(text) == "" {
		return fail("extract text", errors.New("no text could be extracted from document"))
	}

	fields := p.extractor.Extract(text)
	result := p.evaluator.Evaluate(fields, payload.ManualShift)
	desc := p.assembler.Assemble(fields, result, time.Now().UTC())

	pdfBytes, err := p.render(desc)
	if err != nil {
		return fail("render report", err)
	}

	reportKey := reportObjectKey(payload.JobID)
	if _, err := withRetry(ctx, func() (struct{}, error) {
		return struct{}{}, p.store.UploadReport(ctx, reportKey, pdfBytes)
	}); err != nil {
		return fail("store report", err)
	}

	msg := mailer.Message{
		To:             payload.Recipient,
		Subject:        "Your Paystub Compliance Report",
		Body:           emailBody(payload.FileName, result),
		Attachment:     pdfBytes,
		AttachmentName: "compliance-report.pdf",
	}
	if _, err := withRetry(ctx, func() (struct{}, error) {
		return struct{}{}, p.mail.Send(ctx, msg)
	}); err != nil {
		logger.Warn().Err(err).Msg("report generated but email delivery failed")
		detail := fmt.Sprintf("report generated but email delivery failed: %v", err)
		if markErr := p.jobs.MarkCompletedWithErrors(ctx, payload.JobID, reportKey, detail); markErr != nil {
			logger.Error().Err(markErr).Msg("mark completed_with_errors")
		}
		obs.RecordPipelineJob(start, "completed_with_errors")
		return nil
	}

	if err := p.jobs.MarkCompleted(ctx, payload.JobID, reportKey); err != nil {
		logger.Error().Err(err).Msg("mark completed")
	}
	obs.RecordPipelineJob(start, "completed")
	logger.Info().Str("report_key", reportKey).Msg("paystub processed")
	return nil
}

// withRetry runs op and retries once after a short pause. Collaborator
// failures are usually transient network blips; anything beyond one retry is
// the job's terminal outcome.
func withRetry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	v, err := op()
	if err == nil {
		return v, nil
	}
	select {
	case <-ctx.Done():
		return v, err
	case <-time.After(time.Second):
	}
	return op()
}

func reportObjectKey(jobID string) string {
	return fmt.Sprintf("reports/%s/compliance-report.pdf", jobID)
}

func emailBody(fileName string, result paystub.ComplianceResult) string {
	var b strings.Builder
	b.WriteString("Hello,\n\nYour paystub compliance report is attached")
	if fileName != "" {
		fmt.Fprintf(&b, " (source document: %s)", fileName)
	}
	b.WriteString(".\n\nSummary:\n")
	check := func(label string, ok bool) {
		verdict := "FAILED"
		if ok {
			verdict = "PASSED"
		}
		fmt.Fprintf(&b, "  - %s: %s\n", label, verdict)
	}
	check("Minimum wage", result.MinimumWageMet)
	check("Overtime compliance", result.OvertimeCompliant)
	check("Total compensation", result.TotalCompensationValid)
	if result.LongShiftViolation && result.AdditionalPayOwed != nil {
		fmt.Fprintf(&b, "  - Long shift bonus: VIOLATION FOUND ($%.2f owed)\n", *result.AdditionalPayOwed)
	} else {
		b.WriteString("  - Long shift bonus: NO VIOLATION\n")
	}
	b.WriteString("\nCheckMyChecks\n")
	return b.String()
}
