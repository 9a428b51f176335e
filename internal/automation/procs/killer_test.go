package procs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

type stubRunner struct {
	calls []call
	err   error
}

func (s *stubRunner) Run(ctx context.Context, name string, logger *slog.Logger, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, call{name, args})
	return nil, nil, s.err
}

func TestCommand(t *testing.T) {
	name, args := Command("windows", "acad")
	assert.Equal(t, "taskkill", name)
	assert.Equal(t, []string{"/F", "/T", "/IM", "acad*"}, args)

	name, args = Command("linux", "Shape2DServer")
	assert.Equal(t, "pkill", name)
	assert.Equal(t, []string{"-f", "^Shape2DServer"}, args)
}

func TestKillByNameRunsPlatformCommand(t *testing.T) {
	r := &stubRunner{}
	k := NewKiller(r, nil)
	k.goos = "windows"
	k.settle = 0

	require.NoError(t, k.KillByName(context.Background(), "acad"))
	require.Len(t, r.calls, 1)
	assert.Equal(t, "taskkill", r.calls[0].name)
}

func TestKillByNamePropagatesStartFailure(t *testing.T) {
	r := &stubRunner{err: errors.New("executable file not found")}
	k := NewKiller(r, nil)
	k.settle = 0
	assert.Error(t, k.KillByName(context.Background(), "acad"))
}

type exitStatus int

func (e exitStatus) Error() string { return fmt.Sprintf("exit status %d", int(e)) }
func (e exitStatus) ExitCode() int { return int(e) }

func TestKillByNameExitCodes(t *testing.T) {
	cases := []struct {
		name    string
		goos    string
		err     error
		wantErr bool
	}{
		{"taskkill found nothing", "windows", exitStatus(128), false},
		{"pkill found nothing", "linux", exitStatus(1), false},
		{"taskkill access denied", "windows", exitStatus(1), true},
		{"pkill syntax error", "linux", exitStatus(2), true},
		{"pkill internal error", "linux", exitStatus(3), true},
		{"wrapped no match", "linux", fmt.Errorf("run: %w", exitStatus(1)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			k := NewKiller(&stubRunner{err: tc.err}, nil)
			k.goos = tc.goos
			k.settle = 0
			err := k.KillByName(context.Background(), "acad")
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
