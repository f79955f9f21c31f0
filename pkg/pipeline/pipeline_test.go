package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/triage/pkg/adapters/memory"
	"github.com/aretw0/triage/pkg/adapters/remote"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probeRemote lets a test look at the session while a remote call is in flight.
type probeRemote struct {
	*remote.Mock
	onSubmit func()
}

func (p *probeRemote) Submit(ctx context.Context, token string, payload domain.Payload) (domain.SubmitResult, error) {
	if p.onSubmit != nil {
		p.onSubmit()
	}
	return p.Mock.Submit(ctx, token, payload)
}

type recordingPublisher struct {
	records []*domain.SubmissionRecord
	err     error
}

func (r *recordingPublisher) Publish(_ context.Context, rec *domain.SubmissionRecord) error {
	r.records = append(r.records, rec)
	return r.err
}

func readySession() *domain.Session {
	s := domain.NewSession("s1", domain.VariantPlain, 0)
	s.Answers[domain.KeyFullName] = "Ana Lima"
	s.Answers[domain.KeyAge] = 31.0
	s.Answers[domain.KeySymptoms] = []string{"fever", "cough"}
	return s
}

func TestSubmit_HappyPath(t *testing.T) {
	mock := remote.NewMock()
	store := memory.NewStore()
	pub := &recordingPublisher{}
	var events []domain.EventType
	p := pipeline.New(mock, store,
		pipeline.WithPublisher(pub),
		pipeline.WithHooks(domain.LifecycleHooks{
			OnSubmit: func(_ context.Context, e *domain.SubmitEvent) { events = append(events, e.Type) },
		}),
	)
	ctx := context.Background()
	s := readySession()

	rec, err := p.Submit(ctx, s, "tok")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.True(t, strings.HasPrefix(rec.JobID, "job_"))
	assert.Equal(t, "s1", rec.SessionID)
	assert.Equal(t, []string{"fever", "cough"}, rec.InputSnapshot.Payload.Symptoms)
	assert.Equal(t, rec.JobID, rec.Report["jobId"])
	assert.False(t, s.Submitting)
	assert.Empty(t, s.Error)
	assert.Equal(t, rec.Report, s.LastReport)

	assert.Equal(t, 1, mock.Calls(remote.OpSubmit))
	assert.Equal(t, 1, mock.Calls(remote.OpReport))
	assert.Zero(t, mock.Calls(remote.OpAudio))

	history, err := p.History().List(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, rec.JobID, history[0].JobID)

	profile, err := p.Profile().Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima", profile[domain.KeyFullName])
	assert.Equal(t, 31.0, profile[domain.KeyAge])

	require.Len(t, pub.records, 1)
	assert.Equal(t, []domain.EventType{domain.EventSubmitStart, domain.EventSubmitComplete}, events)
}

func TestSubmit_RecordsArePrependedAndCapped(t *testing.T) {
	mock := remote.NewMock()
	p := pipeline.New(mock, memory.NewStore(), pipeline.WithHistoryCap(3))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		rec, err := p.Submit(ctx, readySession(), "")
		require.NoError(t, err)
		ids = append(ids, rec.JobID)
	}

	history, err := p.History().List(ctx)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, ids[4], history[0].JobID)
	assert.Equal(t, ids[3], history[1].JobID)
	assert.Equal(t, ids[2], history[2].JobID)
}

func TestSubmit_EmptyPayloadIsRejectedLocally(t *testing.T) {
	mock := remote.NewMock()
	p := pipeline.New(mock, memory.NewStore())
	s := domain.NewSession("s1", domain.VariantPlain, 0)
	s.Answers[domain.KeyFullName] = "Ana"

	_, err := p.Submit(context.Background(), s, "")
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, domain.KeySymptoms, ve.Key)
	assert.Equal(t, domain.BoundRequired, ve.Bound)
	assert.NotEmpty(t, s.Error)
	assert.False(t, s.Submitting)
	assert.Zero(t, mock.Calls(remote.OpSubmit))
}

func TestSubmit_TransportFailureKeepsAnswers(t *testing.T) {
	tests := []struct {
		name string
		op   string
	}{
		{"submit fails", remote.OpSubmit},
		{"report fails", remote.OpReport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := remote.NewMock()
			mock.Fail(tt.op, errors.New("boom"))
			p := pipeline.New(mock, memory.NewStore())
			ctx := context.Background()
			s := readySession()
			before := s.Clone()

			rec, err := p.Submit(ctx, s, "")
			assert.Nil(t, rec)
			var te *domain.TransportError
			require.True(t, errors.As(err, &te))
			assert.Contains(t, s.Error, "boom")
			assert.False(t, s.Submitting)
			assert.Equal(t, before.Answers, s.Answers)

			history, err := p.History().List(ctx)
			require.NoError(t, err)
			assert.Empty(t, history)
			// No retry.
			assert.Equal(t, 1, mock.Calls(tt.op))
		})
	}
}

func TestSubmit_LatchRefusesReentry(t *testing.T) {
	base := remote.NewMock()
	s := readySession()
	var inner error
	var midFlight bool

	var p *pipeline.Pipeline
	probe := &probeRemote{Mock: base}
	probe.onSubmit = func() {
		midFlight = s.Submitting
		_, inner = p.Submit(context.Background(), s, "")
		if err := pipeline.RecordAnswer(s, domain.KeyFeeling, "tired"); !errors.Is(err, domain.ErrSubmissionInProgress) {
			inner = fmt.Errorf("record answer during submit: %v", err)
		}
	}
	p = pipeline.New(probe, memory.NewStore())

	_, err := p.Submit(context.Background(), s, "")
	require.NoError(t, err)
	assert.True(t, midFlight)
	assert.ErrorIs(t, inner, domain.ErrSubmissionInProgress)
	assert.Equal(t, 1, base.Calls(remote.OpSubmit))
	assert.False(t, s.Submitting)
	assert.NotContains(t, s.Answers, domain.KeyFeeling)
}

func TestSubmit_AudioIsBestEffort(t *testing.T) {
	mock := remote.NewMock()
	mock.Fail(remote.OpAudio, errors.New("413 too large"))
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "blob:abc", []byte("RIFF")))

	p := pipeline.New(mock, store)
	s := readySession()
	s.Audio = &domain.BlobRef{Key: "blob:abc", ContentType: "audio/wav"}

	rec, err := p.Submit(ctx, s, "")
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Equal(t, 1, mock.Calls(remote.OpAudio))
	assert.Equal(t, 1, mock.Calls(remote.OpSubmit))
}

func TestUploadAudio(t *testing.T) {
	mock := remote.NewMock()
	store := memory.NewStore()
	ctx := context.Background()
	p := pipeline.New(mock, store)
	s := readySession()

	up := p.UploadAudio(ctx, s, "")
	assert.False(t, up.Attempted)

	s.Audio = &domain.BlobRef{Key: "blob:missing"}
	up = p.UploadAudio(ctx, s, "")
	assert.True(t, up.Attempted)
	assert.False(t, up.OK())
	assert.ErrorIs(t, up.Err, domain.ErrNotFound)

	require.NoError(t, store.Put(ctx, "blob:missing", []byte("wav")))
	up = p.UploadAudio(ctx, s, "")
	assert.True(t, up.OK())
	assert.True(t, strings.HasPrefix(up.JobID, "audio_"))
}

func TestFinalize_PublisherFailureIsIgnored(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := pipeline.New(remote.NewMock(), memory.NewStore(),
		pipeline.WithPublisher(pub),
		pipeline.WithClock(func() time.Time { return fixed }),
	)
	s := readySession()
	payload := pipeline.BuildPayload(s)

	rec, err := p.Finalize(context.Background(), s, "job_1", payload, domain.Report{"jobId": "job_1"})
	require.NoError(t, err)
	assert.Equal(t, fixed, rec.SubmittedAt)
	assert.Len(t, pub.records, 1)
	assert.Equal(t, "job_1", s.LastReport["jobId"])
}

func TestRecordAnswer(t *testing.T) {
	s := domain.NewSession("s1", domain.VariantPlain, 0)
	s.Error = "stale"

	require.NoError(t, pipeline.RecordAnswer(s, domain.KeySeverity, "moderate"))
	assert.Equal(t, "moderate", s.Answers[domain.KeySeverity])
	assert.Empty(t, s.Error)

	var ve *domain.ValidationError
	assert.True(t, errors.As(pipeline.RecordAnswer(s, "", "x"), &ve))

	s.Submitting = true
	assert.ErrorIs(t, pipeline.RecordAnswer(s, domain.KeyFeeling, "ok"), domain.ErrSubmissionInProgress)
}

func TestSymptomHelpers(t *testing.T) {
	s := domain.NewSession("s1", domain.VariantPlain, 0)

	require.NoError(t, pipeline.AddSymptom(s, "Fever", "cough"))
	require.NoError(t, pipeline.AddSymptom(s, "fever", "rash"))
	assert.Equal(t, []string{"Fever", "cough", "rash"}, s.Answers[domain.KeySymptoms])

	require.NoError(t, pipeline.RemoveSymptom(s, " COUGH "))
	assert.Equal(t, []string{"Fever", "rash"}, s.Answers[domain.KeySymptoms])
}
