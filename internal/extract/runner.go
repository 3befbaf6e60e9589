package extract

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/gestornet/invoice-extractor/pkg/logger"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger logger.Logger
}

// NewExecRunner returns a Runner backed by exec.CommandContext.
func NewExecRunner(log logger.Logger) Runner {
	return &execRunner{logger: log}
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()

	if err != nil {
		r.logger.Error("exec failed",
			logger.String("cmd", name),
			logger.Duration("duration", time.Since(start)),
			logger.String("stderr", truncate(errb.String(), 8<<10)),
			logger.Error(err),
		)
	} else {
		r.logger.Debug("exec ok",
			logger.String("cmd", name),
			logger.Duration("duration", time.Since(start)),
			logger.Int("stdoutBytes", out.Len()),
		)
	}

	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
