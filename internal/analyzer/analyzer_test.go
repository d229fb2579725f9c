package analyzer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonlabs/reverie/internal/config"
	"github.com/halcyonlabs/reverie/internal/prompt"
	"github.com/halcyonlabs/reverie/internal/store"
	"github.com/halcyonlabs/reverie/pkg/models"
)

const fakePayload = `{
	"overview": "You tend to prepare your surroundings before starting.",
	"emotional_patterns": ["restlessness before focused work"],
	"environment_patterns": [],
	"behavioral_loops": ["clean desk, then start work"],
	"triggers": ["upcoming work"],
	"recurring_themes": [],
	"core_pursuits_and_why": "",
	"reflection_prompts": ["What would happen if you started before tidying?"],
	"pattern_profile": {
		"summary": "Prepares environment before engaging with demanding tasks.",
		"tendencies": ["pre-task ritual behavior"],
		"typical_triggers": ["deadlines"],
		"typical_coping_styles": ["environmental ordering"],
		"last_updated": "2026-08-24T10:00:00Z"
	}
}`

// fakeCaller is a scripted model boundary for tests.
type fakeCaller struct {
	mu      sync.Mutex
	calls   int
	payload []byte
	err     error
	block   chan struct{}
}

func (f *fakeCaller) Generate(ctx context.Context, req *prompt.Request) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func (f *fakeCaller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.APIKey = "sk-test"
	cfg.RequestTimeoutSecs = 5
	return cfg
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "analyzer-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })
	return store.Open(store.NewFileBackend(filepath.Join(tempDir, "journal.json")))
}

// TestAnalyze_FirstEntry tests the first-ever entry scenario: success with
// a new non-empty profile and a history of exactly that entry.
func TestAnalyze_FirstEntry(t *testing.T) {
	st := testStore(t)
	caller := &fakeCaller{payload: []byte(fakePayload)}
	a := New(st, caller, testConfig())

	text := "I keep cleaning my desk before I can start work."
	result, err := a.Analyze(context.Background(), Input{Text: text})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, StateSucceeded, a.Status().State)
	assert.Equal(t, result, a.Status().Result)
	assert.Equal(t, "You tend to prepare your surroundings before starting.", result.Overview)

	// History reflects what was actually submitted, verbatim
	history := st.History()
	require.Len(t, history, 1)
	assert.Equal(t, text, history[0].Text)
	assert.NotEmpty(t, history[0].ID)

	profile := st.Profile()
	require.NotNil(t, profile)
	assert.NotEmpty(t, profile.Tendencies)
	assert.Equal(t, "Prepares environment before engaging with demanding tasks.", profile.Summary)
}

// TestAnalyze_AtomicSuccess tests that success appends exactly one entry
// and replaces the profile with the model's returned one.
func TestAnalyze_AtomicSuccess(t *testing.T) {
	st := testStore(t)
	st.Append(models.NewJournalEntry("earlier entry", 0, 0))
	st.SetProfile(models.PatternProfile{Summary: "old profile"})

	caller := &fakeCaller{payload: []byte(fakePayload)}
	a := New(st, caller, testConfig())

	_, err := a.Analyze(context.Background(), Input{Text: "today's entry"})
	require.NoError(t, err)

	assert.Equal(t, 2, st.Len())
	profile := st.Profile()
	require.NotNil(t, profile)
	assert.Equal(t, "Prepares environment before engaging with demanding tasks.", profile.Summary)
	assert.NotEqual(t, "old profile", profile.Summary)
}

// TestAnalyze_AtomicFailure tests that no store mutation happens on any
// failure path.
func TestAnalyze_AtomicFailure(t *testing.T) {
	tests := []struct {
		name   string
		caller *fakeCaller
	}{
		{
			name:   "transport failure",
			caller: &fakeCaller{err: errors.New("connection refused")},
		},
		{
			name:   "schema failure",
			caller: &fakeCaller{payload: []byte(`{"overview": "only this"}`)},
		},
		{
			name:   "malformed payload",
			caller: &fakeCaller{payload: []byte(`not json at all`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := testStore(t)
			st.Append(models.NewJournalEntry("pre-existing", 0, 0))
			st.SetProfile(models.PatternProfile{Summary: "pre-existing profile"})
			require.NoError(t, st.Persist())
			before := st.History()

			a := New(st, tt.caller, testConfig())
			_, err := a.Analyze(context.Background(), Input{Text: "new entry"})
			require.Error(t, err)

			assert.Equal(t, StateFailed, a.Status().State)
			assert.NotEmpty(t, a.Status().Message)
			assert.Equal(t, before, st.History())
			require.NotNil(t, st.Profile())
			assert.Equal(t, "pre-existing profile", st.Profile().Summary)
		})
	}
}

// TestAnalyze_ErrorKinds tests that failures carry the right taxonomy.
func TestAnalyze_ErrorKinds(t *testing.T) {
	st := testStore(t)

	t.Run("transport", func(t *testing.T) {
		a := New(st, &fakeCaller{err: errors.New("boom")}, testConfig())
		_, err := a.Analyze(context.Background(), Input{Text: "x"})
		var transportErr *TransportError
		require.ErrorAs(t, err, &transportErr)
	})

	t.Run("schema", func(t *testing.T) {
		a := New(st, &fakeCaller{payload: []byte(`{}`)}, testConfig())
		_, err := a.Analyze(context.Background(), Input{Text: "x"})
		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
	})
}

// TestAnalyze_ValidationBeforeNetwork tests that an empty submission never
// reaches the model boundary and never enters the requesting state.
func TestAnalyze_ValidationBeforeNetwork(t *testing.T) {
	st := testStore(t)
	caller := &fakeCaller{payload: []byte(fakePayload)}
	a := New(st, caller, testConfig())

	var mu sync.Mutex
	var seen []State
	a.SetOnStatusChange(func(status Status) {
		mu.Lock()
		seen = append(seen, status.State)
		mu.Unlock()
	})

	_, err := a.Analyze(context.Background(), Input{Text: "   \n  "})
	require.ErrorIs(t, err, prompt.ErrNoContent)

	assert.Equal(t, 0, caller.callCount())
	assert.Equal(t, StateFailed, a.Status().State)
	assert.Equal(t, 0, st.Len())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateFailed}, seen)
}

// TestAnalyze_MissingCredential tests that the credential check precedes
// everything, including validation.
func TestAnalyze_MissingCredential(t *testing.T) {
	st := testStore(t)
	caller := &fakeCaller{payload: []byte(fakePayload)}
	cfg := testConfig()
	cfg.APIKey = ""
	a := New(st, caller, cfg)

	_, err := a.Analyze(context.Background(), Input{Text: "some text"})
	require.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Equal(t, 0, caller.callCount())
	assert.Equal(t, StateFailed, a.Status().State)
}

// TestAnalyze_SingleFlight tests that a second invocation while one is in
// flight is rejected without producing a second outbound request.
func TestAnalyze_SingleFlight(t *testing.T) {
	st := testStore(t)
	caller := &fakeCaller{payload: []byte(fakePayload), block: make(chan struct{})}
	a := New(st, caller, testConfig())

	done := make(chan error, 1)
	go func() {
		_, err := a.Analyze(context.Background(), Input{Text: "first"})
		done <- err
	}()

	require.Eventually(t, func() bool {
		return a.Status().State == StateRequesting
	}, time.Second, 5*time.Millisecond)

	_, err := a.Analyze(context.Background(), Input{Text: "second"})
	require.ErrorIs(t, err, ErrBusy)

	// The in-flight cycle's state is untouched by the rejection
	assert.Equal(t, StateRequesting, a.Status().State)

	close(caller.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, caller.callCount())
	assert.Equal(t, 1, st.Len())
}

// TestAnalyze_StatusCallback tests that transitions are observable.
func TestAnalyze_StatusCallback(t *testing.T) {
	st := testStore(t)
	a := New(st, &fakeCaller{payload: []byte(fakePayload)}, testConfig())

	var mu sync.Mutex
	var seen []State
	a.SetOnStatusChange(func(status Status) {
		mu.Lock()
		seen = append(seen, status.State)
		mu.Unlock()
	})

	_, err := a.Analyze(context.Background(), Input{Text: "watch me"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateRequesting, StateSucceeded}, seen)
}

// TestReset tests returning to idle after a completed cycle.
func TestReset(t *testing.T) {
	st := testStore(t)
	a := New(st, &fakeCaller{err: errors.New("boom")}, testConfig())

	_, err := a.Analyze(context.Background(), Input{Text: "x"})
	require.Error(t, err)
	require.Equal(t, StateFailed, a.Status().State)

	a.Reset()
	assert.Equal(t, StateIdle, a.Status().State)
}

// TestUserMessage tests the failure-to-display mapping.
func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "validation",
			err:  prompt.ErrNoContent,
			want: "Write something or add a photo before analyzing.",
		},
		{
			name: "configuration",
			err:  ErrMissingAPIKey,
			want: "Analysis is not configured: set OPENAI_API_KEY and restart.",
		},
		{
			name: "busy",
			err:  ErrBusy,
			want: "An analysis is already running. Wait for it to finish.",
		},
		{
			name: "transport",
			err:  &TransportError{Err: errors.New("timeout")},
			want: "The analysis failed. Please try again.",
		},
		{
			name: "schema",
			err:  &SchemaError{Err: errors.New("missing field")},
			want: "The analysis failed. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

// TestResponseSchema tests the reflected response-format schema.
func TestResponseSchema(t *testing.T) {
	props, ok := responseSchema["properties"].(map[string]interface{})
	require.True(t, ok)

	for _, field := range []string{
		"overview", "emotional_patterns", "environment_patterns",
		"behavioral_loops", "triggers", "recurring_themes",
		"core_pursuits_and_why", "reflection_prompts", "pattern_profile",
	} {
		assert.Contains(t, props, field)
	}

	assert.Equal(t, false, responseSchema["additionalProperties"])

	profileSchema, ok := props["pattern_profile"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, profileSchema["additionalProperties"])

	required, ok := profileSchema["required"].([]interface{})
	if !ok {
		// required may be []string when set by the strict pass
		requiredStr, okStr := profileSchema["required"].([]string)
		require.True(t, okStr)
		assert.Len(t, requiredStr, 5)
		return
	}
	assert.Len(t, required, 5)
}
