package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joseph-ayodele/unitshift/constants"
)

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestSelectFilesGroupsByFamily(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.dwg", "a.docx", "z.xlsx", "a.xls", "p.sha", "notes.txt", "~$a.docx", ".hidden.dwg", "m.docm"} {
		write(t, dir, n, "x")
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.dwg"), 0o755))

	got, err := SelectFiles(dir, nil)
	require.NoError(t, err)
	var names []string
	for _, p := range got {
		names = append(names, filepath.Base(p))
	}
	assert.Equal(t, []string{"a.xls", "z.xlsx", "a.docx", "m.docm", "b.dwg", "p.sha"}, names)

	only, err := SelectFiles(dir, map[constants.DocKind]bool{constants.Drawing: true})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.dwg")}, only)

	_, err = SelectFiles(filepath.Join(dir, "missing"), nil)
	assert.Error(t, err)
	_, err = SelectFiles(" ", nil)
	assert.Error(t, err)
}

func TestSeen(t *testing.T) {
	dir := t.TempDir()
	p := write(t, dir, "a.dwg", "one")
	s := NewSeen()

	same, err := s.Unchanged(p)
	require.NoError(t, err)
	assert.False(t, same)
	same, err = s.Unchanged(p)
	require.NoError(t, err)
	assert.True(t, same)

	write(t, dir, "a.dwg", "two")
	same, err = s.Unchanged(p)
	require.NoError(t, err)
	assert.False(t, same)

	s.Forget(p)
	same, err = s.Unchanged(p)
	require.NoError(t, err)
	assert.False(t, same)

	_, err = s.Unchanged(filepath.Join(dir, "gone.dwg"))
	assert.Error(t, err)
}

func TestWatcherReportsSupportedFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	out := filepath.Join(root, "out")
	require.NoError(t, os.Mkdir(out, 0o755))
	existing := write(t, root, "old.xlsx", "x")

	ctx, cancel := context.WithCancel(context.Background())
	events, errs, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		Exclude:     []string{out},
		InitialScan: true,
		Debounce:    20 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Equal(t, existing, next(t, events))

	write(t, root, "notes.txt", "ignored")
	write(t, out, "result.dwg", "ignored")
	fresh := write(t, root, "10UKD.dwg", "x")
	assert.Equal(t, fresh, next(t, events))

	cancel()
	for range events {
	}
	for range errs {
	}
}

func TestWatcherRequiresRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)
}

func next(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p, ok := <-ch:
		require.True(t, ok, "watcher closed")
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("no watcher event")
		return ""
	}
}
