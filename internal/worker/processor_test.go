package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytipspro/checkmychecks/internal/mailer"
	"github.com/mytipspro/checkmychecks/internal/paystub"
	"github.com/mytipspro/checkmychecks/internal/queue"
	"github.com/mytipspro/checkmychecks/internal/report"
	"github.com/mytipspro/checkmychecks/internal/repository"
)

const sampleText = `EMPLOYEE NAME: Jane Doe
TOTAL HOURS: 40
GROSS PAY: $700.00
NET PAY: $680.00
`

type fakeObjectStore struct {
	data          []byte
	downloadErrs  []error
	uploadErr     error
	downloadCalls int
	uploadCalls   int
	uploadedKey   string
}

func (f *fakeObjectStore) DownloadPaystub(_ context.Context, _ string) ([]byte, error) {
	f.downloadCalls++
	if len(f.downloadErrs) > 0 {
		err := f.downloadErrs[0]
		f.downloadErrs = f.downloadErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.data, nil
}

func (f *fakeObjectStore) UploadReport(_ context.Context, key string, _ []byte) error {
	f.uploadCalls++
	f.uploadedKey = key
	return f.uploadErr
}

type fakeMailer struct {
	err   error
	calls int
	last  mailer.Message
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	f.calls++
	f.last = msg
	return f.err
}

type harness struct {
	jobs    *repository.MemoryStore
	store   *fakeObjectStore
	mail    *fakeMailer
	proc    *Processor
	payload queue.ProcessPayload
}

func newHarness(t *testing.T, store *fakeObjectStore, mail *fakeMailer, extract TextExtractor) *harness {
	t.Helper()
	jobs := repository.NewMemoryStore()
	handle := "paystubs/test/stub.pdf"
	id := repository.JobIDFor(handle)
	require.NoError(t, jobs.Create(context.Background(), &repository.PaystubJob{
		ID:           id,
		SourceHandle: handle,
		FileName:     "stub.pdf",
	}))

	proc := &Processor{
		jobs:      jobs,
		store:     store,
		mail:      mail,
		extractor: paystub.NewExtractor(zerolog.Nop()),
		evaluator: paystub.NewEvaluator(paystub.DefaultPolicy()),
		assembler: paystub.NewAssembler(paystub.DefaultPolicy()),
		extract:   extract,
		render:    report.Render,
		logger:    zerolog.Nop(),
	}
	return &harness{
		jobs:  jobs,
		store: store,
		mail:  mail,
		proc:  proc,
		payload: queue.ProcessPayload{
			JobID:        id,
			SourceHandle: handle,
			FileName:     "stub.pdf",
			Recipient:    "jane@example.com",
		},
	}
}

func passthroughText(text string) TextExtractor {
	return func([]byte) (string, error) { return text, nil }
}

func TestProcessJob_FetchFailureShortCircuits(t *testing.T) {
	extractCalls := 0
	h := newHarness(t,
		&fakeObjectStore{downloadErrs: []error{errors.New("connection refused"), errors.New("connection refused")}},
		&fakeMailer{},
		func([]byte) (string, error) {
			extractCalls++
			return sampleText, nil
		},
	)

	err := h.proc.ProcessJob(context.Background(), h.payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	job, getErr := h.jobs.Get(context.Background(), h.payload.JobID)
	require.NoError(t, getErr)
	assert.Equal(t, repository.StatusFailed, job.Status)
	assert.Contains(t, job.Message, "fetch document")

	assert.Zero(t, extractCalls, "extraction must not run after a fetch failure")
	assert.Zero(t, h.store.uploadCalls)
	assert.Zero(t, h.mail.calls)
}

func TestProcessJob_EmptyTextFails(t *testing.T) {
	h := newHarness(t, &fakeObjectStore{data: []byte("raw")}, &fakeMailer{}, passthroughText("   \n "))

	err := h.proc.ProcessJob(context.Background(), h.payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	job, getErr := h.jobs.Get(context.Background(), h.payload.JobID)
	require.NoError(t, getErr)
	assert.Equal(t, repository.StatusFailed, job.Status)
	assert.Contains(t, job.Message, "no text could be extracted")
	assert.Zero(t, h.mail.calls)
}

func TestProcessJob_MailFailureCompletesWithErrors(t *testing.T) {
	h := newHarness(t, &fakeObjectStore{data: []byte("raw")}, &fakeMailer{err: errors.New("relay down")}, passthroughText(sampleText))

	err := h.proc.ProcessJob(context.Background(), h.payload)
	require.NoError(t, err, "a delivered-report job must not be retried")

	job, getErr := h.jobs.Get(context.Background(), h.payload.JobID)
	require.NoError(t, getErr)
	assert.Equal(t, repository.StatusCompletedWithErrors, job.Status)
	assert.Contains(t, job.Message, "email delivery failed")
	require.NotNil(t, job.ReportKey)
	assert.Equal(t, h.store.uploadedKey, *job.ReportKey)
	assert.Equal(t, 1, h.store.uploadCalls)
}

func TestProcessJob_HappyPath(t *testing.T) {
	h := newHarness(t, &fakeObjectStore{data: []byte("raw")}, &fakeMailer{}, passthroughText(sampleText))

	require.NoError(t, h.proc.ProcessJob(context.Background(), h.payload))

	job, err := h.jobs.Get(context.Background(), h.payload.JobID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusCompleted, job.Status)
	require.NotNil(t, job.ReportKey)
	assert.Contains(t, *job.ReportKey, h.payload.JobID)

	assert.Equal(t, 1, h.mail.calls)
	assert.Equal(t, "jane@example.com", h.mail.last.To)
	assert.Equal(t, "compliance-report.pdf", h.mail.last.AttachmentName)
	assert.NotEmpty(t, h.mail.last.Attachment)
	assert.Contains(t, h.mail.last.Body, "Minimum wage: PASSED")
}

func TestProcessJob_DownloadRetriesOnce(t *testing.T) {
	h := newHarness(t,
		&fakeObjectStore{data: []byte("raw"), downloadErrs: []error{errors.New("timeout")}},
		&fakeMailer{},
		passthroughText(sampleText),
	)

	require.NoError(t, h.proc.ProcessJob(context.Background(), h.payload))
	assert.Equal(t, 2, h.store.downloadCalls)

	job, err := h.jobs.Get(context.Background(), h.payload.JobID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusCompleted, job.Status)
}

func TestProcessJob_ManualShiftFlowsThrough(t *testing.T) {
	h := newHarness(t, &fakeObjectStore{data: []byte("raw")}, &fakeMailer{}, passthroughText(sampleText))
	h.payload.ManualShift = paystub.ManualShiftInput{
		ShiftsExceededThreshold: true,
		ExceededShiftCount:      3,
	}

	require.NoError(t, h.proc.ProcessJob(context.Background(), h.payload))
	assert.Contains(t, h.mail.last.Body, "VIOLATION FOUND ($49.50 owed)")
}
