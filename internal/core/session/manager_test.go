package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/unitshift/internal/automation"
	"github.com/joseph-ayodele/unitshift/internal/automation/fake"
	"github.com/joseph-ayodele/unitshift/internal/common"
	"github.com/joseph-ayodele/unitshift/internal/core/retry"
)

func instantSleep(t *testing.T) {
	t.Helper()
	orig := retry.Sleep
	retry.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	t.Cleanup(func() { retry.Sleep = orig })
}

func newManager(l *fake.Launcher, k *fake.Killer) *Manager {
	m := New(nil, l, k, "acad")
	m.readyTimeout = 5 * m.pollInterval
	return m
}

func TestEnsureReadyPollsUntilVersionAnswers(t *testing.T) {
	instantSleep(t)
	app := &fake.Application{VersionFailures: 3}
	l := &fake.Launcher{Apps: []*fake.Application{app}}
	k := &fake.Killer{}
	m := newManager(l, k)

	require.Equal(t, Absent, m.State())
	require.NoError(t, m.EnsureReady(context.Background()))
	assert.Equal(t, Ready, m.State())
	assert.Equal(t, 1, l.Launches)
	assert.Equal(t, []string{"acad"}, k.Calls)

	// Already ready: nothing relaunched.
	require.NoError(t, m.EnsureReady(context.Background()))
	assert.Equal(t, 1, l.Launches)
}

func TestEnsureReadyRetriesStartSequence(t *testing.T) {
	instantSleep(t)
	hung := &fake.Application{VersionFailures: -1}
	ok := &fake.Application{}
	l := &fake.Launcher{Apps: []*fake.Application{hung, ok}}
	k := &fake.Killer{}
	m := newManager(l, k)

	require.NoError(t, m.EnsureReady(context.Background()))
	assert.Equal(t, 2, l.Launches)
	assert.Equal(t, 1, hung.Quits)
	assert.Equal(t, Ready, m.State())
	assert.Same(t, ok, m.Application())
	assert.Len(t, k.Calls, 2)
}

func TestEnsureReadyExhaustionIsFatal(t *testing.T) {
	instantSleep(t)
	l := &fake.Launcher{Apps: []*fake.Application{{VersionFailures: -1}}}
	m := newManager(l, &fake.Killer{})

	err := m.EnsureReady(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionInit)
	assert.Equal(t, common.FaultFatal, common.KindOf(err))
	assert.Equal(t, 3, l.Launches)
	assert.Equal(t, Failed, m.State())
}

func TestEnsureReadyLaunchErrorsRetried(t *testing.T) {
	instantSleep(t)
	l := &fake.Launcher{
		Apps: []*fake.Application{{}},
		Errs: []error{errors.New("class not registered"), nil},
	}
	m := newManager(l, &fake.Killer{})
	require.NoError(t, m.EnsureReady(context.Background()))
	assert.Equal(t, 2, l.Launches)
}

func TestUnsupportedPlatformIsConfigFault(t *testing.T) {
	instantSleep(t)
	l := &fake.Launcher{Errs: []error{automation.ErrUnsupportedPlatform}}
	m := newManager(l, &fake.Killer{})

	err := m.EnsureReady(context.Background())
	require.Error(t, err)
	assert.Equal(t, common.FaultConfig, common.KindOf(err))
	assert.NotErrorIs(t, err, ErrSessionInit)
	assert.Equal(t, 1, l.Launches)
}

func TestOpenAndCloseDocument(t *testing.T) {
	instantSleep(t)
	doc := &fake.Drawing{Doc: fake.Doc{DocName: "a.dwg", NameFailures: 2}}
	app := &fake.Application{Docs: map[string]automation.Document{"a.dwg": doc}}
	m := newManager(&fake.Launcher{Apps: []*fake.Application{app}}, &fake.Killer{})

	_, err := m.OpenDocument(context.Background(), "a.dwg")
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, m.EnsureReady(context.Background()))
	got, err := m.OpenDocument(context.Background(), "a.dwg")
	require.NoError(t, err)
	assert.Same(t, doc, got)
	assert.Equal(t, Busy, m.State())
	assert.Equal(t, 1, doc.Prepared)

	require.NoError(t, m.CloseDocument(false))
	assert.Equal(t, Ready, m.State())
	assert.False(t, doc.Discarded)
	assert.Equal(t, 1, doc.Closes)
}

func TestOpenFailureRecreatesSession(t *testing.T) {
	instantSleep(t)
	doc := &fake.Drawing{Doc: fake.Doc{DocName: "b.dwg"}}
	app := &fake.Application{
		Docs:     map[string]automation.Document{"b.dwg": doc},
		OpenErrs: []error{fake.ErrCOM},
	}
	l := &fake.Launcher{Apps: []*fake.Application{app}}
	m := newManager(l, &fake.Killer{})
	require.NoError(t, m.EnsureReady(context.Background()))

	_, err := m.OpenDocument(context.Background(), "b.dwg")
	require.Error(t, err)
	assert.ErrorIs(t, err, fake.ErrCOM)
	assert.Equal(t, common.FaultTransient, common.KindOf(err))
	assert.Equal(t, Ready, m.State())
	assert.Equal(t, 2, l.Launches)
	assert.Equal(t, 1, app.Quits)

	_, err = m.OpenDocument(context.Background(), "b.dwg")
	require.NoError(t, err)
}

func TestDocumentNeverReadyIsDiscarded(t *testing.T) {
	instantSleep(t)
	doc := &fake.Drawing{Doc: fake.Doc{DocName: "c.dwg", NameFailures: -1}}
	app := &fake.Application{Docs: map[string]automation.Document{"c.dwg": doc}}
	m := newManager(&fake.Launcher{Apps: []*fake.Application{app}}, &fake.Killer{})
	require.NoError(t, m.EnsureReady(context.Background()))

	_, err := m.OpenDocument(context.Background(), "c.dwg")
	require.Error(t, err)
	assert.True(t, doc.Discarded)
	assert.Equal(t, Ready, m.State())
}

func TestRecoverDiscardsAndRestarts(t *testing.T) {
	instantSleep(t)
	doc := &fake.Drawing{Doc: fake.Doc{DocName: "d.dwg"}}
	first := &fake.Application{Docs: map[string]automation.Document{"d.dwg": doc}}
	second := &fake.Application{}
	l := &fake.Launcher{Apps: []*fake.Application{first, second}}
	m := newManager(l, &fake.Killer{})
	require.NoError(t, m.EnsureReady(context.Background()))
	_, err := m.OpenDocument(context.Background(), "d.dwg")
	require.NoError(t, err)

	require.NoError(t, m.Recover(context.Background()))
	assert.True(t, doc.Discarded)
	assert.Equal(t, 1, first.Quits)
	assert.Same(t, second, m.Application())
	assert.Equal(t, Ready, m.State())
}

func TestShutdownFallsBackToForceStop(t *testing.T) {
	instantSleep(t)
	app := &fake.Application{QuitErr: fake.ErrCOM}
	k := &fake.Killer{}
	m := newManager(&fake.Launcher{Apps: []*fake.Application{app}}, k)
	require.NoError(t, m.EnsureReady(context.Background()))
	before := len(k.Calls)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, Absent, m.State())
	assert.Equal(t, before+1, len(k.Calls))
	assert.Nil(t, m.Application())
}

func TestGracefulShutdownSkipsForceStop(t *testing.T) {
	instantSleep(t)
	app := &fake.Application{}
	k := &fake.Killer{}
	m := newManager(&fake.Launcher{Apps: []*fake.Application{app}}, k)
	require.NoError(t, m.EnsureReady(context.Background()))
	before := len(k.Calls)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, 1, app.Quits)
	assert.Equal(t, before, len(k.Calls))

	// Shutdown of an absent session is a no-op.
	require.NoError(t, m.Shutdown(context.Background()))
}
