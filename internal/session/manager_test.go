package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"cohort2sql-go/internal/config"
	"cohort2sql-go/internal/persona"
)

type stubBackend struct {
	mu        sync.Mutex
	executors []*stubExecutor
	err       error
	// gate 非nil时Open阻塞到gate关闭
	gate chan struct{}
}

func (b *stubBackend) Open(context.Context) (Executor, func(), error) {
	if b.gate != nil {
		<-b.gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, nil, b.err
	}
	exec := newStubExecutor()
	b.executors = append(b.executors, exec)
	return exec, exec.Release, nil
}

func (b *stubBackend) executor(i int) *stubExecutor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.executors[i]
}

func newTestManager(t *testing.T, cfg *config.SessionConfig) (*Manager, *stubBackend, *recordingObserver) {
	t.Helper()
	backend := &stubBackend{}
	observer := newRecordingObserver()
	m, err := NewManager(backend, cfg, Options{
		Generator: &stubGenerator{},
		Observer:  observer,
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return m, backend, observer
}

func TestManager_CreateGetClose(t *testing.T) {
	m, backend, observer := newTestManager(t, config.DefaultSessionConfig())

	s, notice, err := m.Create(context.Background())
	require.NoError(t, err)
	assert.Empty(t, notice)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, persona.ClinicalResearcher, s.Access().Persona.ID)
	assert.Equal(t, []string{"clinical_researcher"}, backend.executor(0).roles)
	assert.NotNil(t, s.View())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Close(s.ID()))
	assert.Equal(t, 1, backend.executor(0).releasedCount())
	assert.Equal(t, 0, m.Len())

	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Close(s.ID()), ErrSessionNotFound)

	assert.Eventually(t, func() bool {
		observer.mu.Lock()
		defer observer.mu.Unlock()
		return observer.active == 0
	}, time.Second, 10*time.Millisecond)
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	m, _, _ := newTestManager(t, config.DefaultSessionConfig())

	a, _, err := m.Create(context.Background())
	require.NoError(t, err)
	b, _, err := m.Create(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())

	_, err = a.SwitchPersona(context.Background(), string(persona.DataEngineer))
	require.NoError(t, err)
	_, err = a.Ask(context.Background(), "question", SourceFreeText)
	require.NoError(t, err)

	assert.Equal(t, persona.DataEngineer, a.Access().Persona.ID)
	assert.Equal(t, persona.ClinicalResearcher, b.Access().Persona.ID)
	assert.Len(t, a.Controller().Snapshot().Turns, 2)
	assert.Empty(t, b.Controller().Snapshot().Turns)
}

func TestManager_MaxSessions(t *testing.T) {
	cfg := config.DefaultSessionConfig()
	cfg.MaxSessions = 1
	m, _, _ := newTestManager(t, cfg)

	_, _, err := m.Create(context.Background())
	require.NoError(t, err)
	_, _, err = m.Create(context.Background())
	assert.ErrorIs(t, err, ErrTooManySessions)
}

func TestManager_BackendFailure(t *testing.T) {
	m, backend, _ := newTestManager(t, config.DefaultSessionConfig())
	backend.err = errors.New("pool exhausted")

	_, _, err := m.Create(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool exhausted")
	assert.Equal(t, 0, m.Len())
}

func TestManager_IdleExpiryReleasesConnection(t *testing.T) {
	cfg := config.DefaultSessionConfig()
	cfg.IdleTTL = 30 * time.Millisecond
	m, backend, _ := newTestManager(t, cfg)

	s, _, err := m.Create(context.Background())
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	m.Sweep()
	assert.Eventually(t, func() bool {
		return backend.executor(0).releasedCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestManager_CloseAll(t *testing.T) {
	m, backend, _ := newTestManager(t, config.DefaultSessionConfig())
	for i := 0; i < 3; i++ {
		_, _, err := m.Create(context.Background())
		require.NoError(t, err)
	}

	m.CloseAll()
	assert.Equal(t, 0, m.Len())
	for i := 0; i < 3; i++ {
		assert.Equal(t, 1, backend.executor(i).releasedCount())
	}
}

func TestNewManager_InvalidConfig(t *testing.T) {
	cfg := config.DefaultSessionConfig()
	cfg.DefaultPersona = "ADMIN"
	_, err := NewManager(&stubBackend{}, cfg, Options{})
	assert.ErrorIs(t, err, persona.ErrUnknownPersona)

	cfg = config.DefaultSessionConfig()
	cfg.RoleSwitchPolicy = "sometimes"
	_, err = NewManager(&stubBackend{}, cfg, Options{})
	assert.Error(t, err)
}

func TestManager_ConcurrentCreateRespectsLimit(t *testing.T) {
	cfg := config.DefaultSessionConfig()
	cfg.MaxSessions = 2
	m, backend, _ := newTestManager(t, cfg)
	backend.gate = make(chan struct{})

	const attempts = 6
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			_, _, err := m.Create(context.Background())
			results <- err
		}()
	}

	// 连接尚未打开时，超出名额的请求已经被拒绝
	for i := 0; i < attempts-2; i++ {
		assert.ErrorIs(t, <-results, ErrTooManySessions)
	}
	close(backend.gate)
	for i := 0; i < 2; i++ {
		assert.NoError(t, <-results)
	}

	assert.Equal(t, 2, m.Len())
	backend.mu.Lock()
	assert.Len(t, backend.executors, 2)
	backend.mu.Unlock()

	_, _, err := m.Create(context.Background())
	assert.ErrorIs(t, err, ErrTooManySessions)
}

func TestManager_FailedCreateFreesSlot(t *testing.T) {
	cfg := config.DefaultSessionConfig()
	cfg.MaxSessions = 1
	m, backend, _ := newTestManager(t, cfg)

	backend.err = errors.New("pool exhausted")
	_, _, err := m.Create(context.Background())
	require.Error(t, err)

	backend.err = nil
	_, _, err = m.Create(context.Background())
	assert.NoError(t, err)
}
