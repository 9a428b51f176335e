//go:build !windows

package comauto

import (
	"context"

	"github.com/joseph-ayodele/unitshift/internal/automation"
)

func (l *Launcher) Launch(ctx context.Context) (automation.Application, error) {
	return nil, automation.ErrUnsupportedPlatform
}

func (c *WorkbookConverter) ConvertWorkbook(ctx context.Context, src, dst string) error {
	return automation.ErrUnsupportedPlatform
}
