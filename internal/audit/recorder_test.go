package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/clinical-intake/internal/model"
)

var clinician = model.Principal{ID: 7, Username: "clin", Roles: model.NewRoleSet(model.RoleClinician)}

// blockingSink parks the first Write until release is closed.
type blockingSink struct {
	started chan struct{}
	release chan struct{}
	inner   *MemorySink
	first   bool
}

func newBlockingSink() *blockingSink {
	return &blockingSink{started: make(chan struct{}), release: make(chan struct{}), inner: NewMemorySink(), first: true}
}

func (s *blockingSink) Write(ctx context.Context, e Entry) error {
	if s.first {
		s.first = false
		close(s.started)
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.inner.Write(ctx, e)
}

type failingSink struct{}

func (failingSink) Write(context.Context, Entry) error { return errors.New("disk full") }

func TestRecorder_WritesEntry(t *testing.T) {
	sink := NewMemorySink()
	r := NewRecorder(sink, 8, time.Second, zap.NewNop())

	r.Record(clinician, ActionPatientViewed, map[string]any{"patient_id": "p1", "patient_name": "Jane"})

	got := sink.WaitFor(1, time.Second)
	require.NoError(t, r.Close(context.Background()))
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].UserID)
	assert.Equal(t, "Clinician", got[0].UserRole)
	assert.Equal(t, ActionPatientViewed, got[0].Action)
	assert.Equal(t, "p1", got[0].Payload["patient_id"])
	_, err := time.Parse(time.RFC3339Nano, got[0].Timestamp)
	assert.NoError(t, err)
}

func TestRecorder_NilPayloadIsEmptyObject(t *testing.T) {
	e := NewEntry(clinician, ActionUserLogin, nil, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	b, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"userId":7,"userRole":"Clinician","action":"user_login","timestamp":"2024-01-02T03:04:05Z","payload":{}}`,
		string(b))
}

func TestRecorder_DropsWhenQueueFull(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := newBlockingSink()
	r := NewRecorder(sink, 1, 5*time.Second, zap.New(core))

	r.Record(clinician, "a", nil)
	<-sink.started
	r.Record(clinician, "b", nil) // fills the queue
	start := time.Now()
	r.Record(clinician, "c", nil) // dropped
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, uint64(1), r.Dropped())
	assert.Equal(t, 1, logs.FilterMessage("audit entry dropped").Len())

	close(sink.release)
	require.NoError(t, r.Close(context.Background()))

	var actions []string
	for _, e := range sink.inner.Entries() {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"a", "b"}, actions)
}

func TestRecorder_RecordAfterCloseIsDropped(t *testing.T) {
	sink := NewMemorySink()
	r := NewRecorder(sink, 4, time.Second, nil)
	require.NoError(t, r.Close(context.Background()))
	require.NoError(t, r.Close(context.Background()))

	r.Record(clinician, ActionUserLogin, nil)

	assert.Empty(t, sink.Entries())
	assert.Equal(t, uint64(1), r.Dropped())
}

func TestRecorder_CloseHonoursContext(t *testing.T) {
	sink := newBlockingSink()
	r := NewRecorder(sink, 4, 5*time.Second, nil)
	r.Record(clinician, "a", nil)
	<-sink.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Close(ctx), context.DeadlineExceeded)
	close(sink.release)
}

func TestRecorder_SinkFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := NewRecorder(failingSink{}, 4, time.Second, zap.New(core))

	r.Record(clinician, ActionUserLogin, nil)
	require.NoError(t, r.Close(context.Background()))

	assert.Equal(t, 1, logs.FilterMessage("audit write failed").Len())
}

func TestFileSink_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, NewEntry(clinician, ActionUserLogin, nil, time.Now())))
	require.NoError(t, sink.Write(ctx, NewEntry(clinician, ActionPatientCreated, map[string]any{"patient_id": "x"}, time.Now())))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var got []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		got = append(got, e)
	}
	require.NoError(t, sc.Err())
	require.Len(t, got, 2)
	assert.Equal(t, ActionUserLogin, got[0].Action)
	assert.Equal(t, "x", got[1].Payload["patient_id"])
}
