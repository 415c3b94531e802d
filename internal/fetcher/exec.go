package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/zjrosen/wavecut/internal/log"
)

// Placeholders expanded in the command and its arguments.
const (
	PlaceholderDay     = "{day}"
	PlaceholderYear    = "{year}"
	PlaceholderStaging = "{staging}"
)

// ExecConfig describes the download command.
type ExecConfig struct {
	Command    string        // program to run, e.g. "./download_by_day.sh"
	Args       []string      // argument templates
	WorkDir    string        // working directory; empty is the current one
	StagingDir string        // value of {staging}
	Timeout    time.Duration // zero leaves the command unbounded
	Output     io.Writer     // receives the command's stdout and stderr; may be nil
}

// ExecFetcher runs an external command per day. Exit status zero is success.
type ExecFetcher struct {
	cfg ExecConfig
}

// NewExec returns an ExecFetcher for cfg.
func NewExec(cfg ExecConfig) *ExecFetcher {
	return &ExecFetcher{cfg: cfg}
}

// CommandLine returns the program and arguments for one day.
func (f *ExecFetcher) CommandLine(day string, year int) (string, []string) {
	r := strings.NewReplacer(
		PlaceholderDay, day,
		PlaceholderYear, strconv.Itoa(year),
		PlaceholderStaging, f.cfg.StagingDir,
	)
	args := make([]string, len(f.cfg.Args))
	for i, a := range f.cfg.Args {
		args[i] = r.Replace(a)
	}
	return r.Replace(f.cfg.Command), args
}

// Fetch runs the command and waits for it. A non-zero exit, a start failure
// or the timeout expiring all return an error wrapping ErrFetchFailed.
func (f *ExecFetcher) Fetch(ctx context.Context, day string, year int) error {
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	name, args := f.CommandLine(day, year)
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // G204: the command comes from the user's config
	cmd.Dir = f.cfg.WorkDir
	// children of a killed command may keep the output pipes open
	cmd.WaitDelay = time.Second

	var stderr bytes.Buffer
	if f.cfg.Output != nil {
		cmd.Stdout = f.cfg.Output
		cmd.Stderr = io.MultiWriter(&stderr, f.cfg.Output)
	} else {
		cmd.Stderr = &stderr
	}

	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	log.Debug(log.CatFetch, "Running fetch command", "cmd", line)
	start := time.Now()

	err := cmd.Run()
	if err == nil {
		log.Debug(log.CatFetch, "Fetch command finished", "cmd", line, "elapsed", time.Since(start))
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %q timed out after %s", ErrFetchFailed, line, f.cfg.Timeout)
	}
	if msg := lastLine(stderr.String()); msg != "" {
		return fmt.Errorf("%w: %q: %v: %s", ErrFetchFailed, line, err, msg)
	}
	return fmt.Errorf("%w: %q: %w", ErrFetchFailed, line, err)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
