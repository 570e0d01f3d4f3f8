// Package process encapsulates one child process, its stdin feed, and a
// bounded stream of stdout/stderr lines consumed lazily by the
// interpreter.
package process

import (
	"bufio"
	"errors"
	"io"
	"os/exec"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bramadityaw/elk/runtime"
)

// Option configures a process context.
type Option func(*Context)

// WithDisposeStdout discards the child's stdout instead of streaming it.
func WithDisposeStdout() Option {
	return func(c *Context) { c.disposeStdout = true }
}

// WithDisposeStderr discards the child's stderr. A child whose stderr is
// discarded tolerates non-zero exit codes.
func WithDisposeStderr() Option {
	return func(c *Context) {
		c.disposeStderr = true
		c.allowNonZeroExit = true
	}
}

// WithStdout sets the writer root-context stdout streams to.
func WithStdout(w io.Writer) Option {
	return func(c *Context) { c.stdout = w }
}

// WithStderr sets the writer stderr streams to when not redirected.
func WithStderr(w io.Writer) Option {
	return func(c *Context) { c.stderr = w }
}

// WithBufferCapacity overrides the line buffer bound.
func WithBufferCapacity(n int) Option {
	return func(c *Context) { c.bufferCap = n }
}

// Context owns one child process for the duration of a shell invocation.
type Context struct {
	log  *zap.Logger
	env  *Env
	name string
	args []string

	cmd    *exec.Cmd
	buffer *LineBuffer

	piped runtime.Value

	disposeStdout    bool
	disposeStderr    bool
	allowNonZeroExit bool
	bufferCap        int

	stdout io.Writer
	stderr io.Writer

	exitCode int
	started  bool
}

// New creates a context for one invocation of name with args, launched in
// the environment's working directory.
func New(log *zap.Logger, env *Env, name string, args []string, opts ...Option) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Context{
		log:    log,
		env:    env,
		name:   name,
		args:   args,
		stdout: io.Discard,
		stderr: io.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetPipedValue feeds value to the child's stdin when it starts.
func (c *Context) SetPipedValue(v runtime.Value) { c.piped = v }

// ExitCode returns the last observed exit code.
func (c *Context) ExitCode() int { return c.exitCode }

// Success reports whether the invocation counts as succeeded: a zero exit
// code, or any exit code when non-zero exits are tolerated.
func (c *Context) Success() bool {
	return c.exitCode == 0 || c.allowNonZeroExit
}

// Start launches the process and waits for it to exit. The child's stdout
// streams to the configured writer unless disposed. The exit code becomes
// the shell's `?` variable.
func (c *Context) Start() (int, error) {
	cmd := exec.Command(c.name, c.args...)
	cmd.Dir = c.env.WorkDir()
	if !c.disposeStdout {
		cmd.Stdout = c.stdout
	}
	if !c.disposeStderr {
		cmd.Stderr = c.stderr
	}
	c.cmd = cmd

	stdin, err := c.stdinPipe()
	if err != nil {
		return -1, err
	}
	if err := cmd.Start(); err != nil {
		return -1, c.launchError(err)
	}
	c.started = true
	c.log.Debug("process started", zap.String("name", c.name), zap.Int("pid", cmd.Process.Pid))
	c.feedStdin(stdin)
	return c.wait()
}

// StartWithRedirect launches the process and subscribes to its stdout and
// stderr, delivering lines into the bounded buffer. It returns immediately
// with a pipe value over the buffer.
func (c *Context) StartWithRedirect() (*runtime.Pipe, error) {
	cmd := exec.Command(c.name, c.args...)
	cmd.Dir = c.env.WorkDir()
	c.cmd = cmd

	var readers []io.Reader
	if c.disposeStdout {
		cmd.Stdout = io.Discard
	} else {
		out, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		readers = append(readers, out)
	}
	if c.disposeStderr {
		cmd.Stderr = io.Discard
	} else {
		errPipe, err := cmd.StderrPipe()
		if err != nil {
			return nil, err
		}
		readers = append(readers, errPipe)
	}

	stdin, err := c.stdinPipe()
	if err != nil {
		return nil, err
	}

	c.buffer = NewLineBuffer(len(readers), c.bufferCap)
	if err := cmd.Start(); err != nil {
		return nil, c.launchError(err)
	}
	c.started = true
	c.log.Debug("process redirected", zap.String("name", c.name), zap.Int("pid", cmd.Process.Pid), zap.Int("pipes", len(readers)))
	c.feedStdin(stdin)

	var group errgroup.Group
	for _, r := range readers {
		group.Go(c.subscribe(r))
	}
	go func() {
		_ = group.Wait()
		c.wait()
		c.log.Debug("pipe complete", zap.String("name", c.name), zap.Int("exit", c.exitCode))
	}()

	return runtime.NewPipe(c.buffer.Lines(), c.Stop), nil
}

// Stop kills the process unconditionally. Iteration over the pipe then
// ends once the OS closes the pipes.
func (c *Context) Stop() {
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
}

// subscribe reads one OS pipe line by line into the buffer. End-of-stream
// decrements the open-pipe counter.
func (c *Context) subscribe(r io.Reader) func() error {
	return func() error {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			c.buffer.Push(scanner.Text())
		}
		c.buffer.EndOfStream()
		return scanner.Err()
	}
}

func (c *Context) stdinPipe() (io.WriteCloser, error) {
	if c.piped == nil {
		return nil, nil
	}
	return c.cmd.StdinPipe()
}

// feedStdin writes the piped value into the child's stdin and closes it.
// A broken pipe stops the source pipe instead of propagating.
func (c *Context) feedStdin(stdin io.WriteCloser) {
	if stdin == nil {
		return
	}
	piped := c.piped
	go func() {
		defer stdin.Close()
		write := func(line string) bool {
			if _, err := io.WriteString(stdin, line+"\n"); err != nil {
				if source, ok := piped.(*runtime.Pipe); ok && brokenPipe(err) {
					source.Stop()
				}
				return false
			}
			return true
		}
		switch v := piped.(type) {
		case *runtime.Pipe:
			for {
				line, ok := v.Next()
				if !ok {
					return
				}
				if !write(line.String()) {
					return
				}
			}
		case *runtime.List:
			for _, item := range v.Items {
				if !write(item.String()) {
					return
				}
			}
		default:
			_, err := io.WriteString(stdin, strings.TrimRight(v.String(), "\n")+"\n")
			_ = err
		}
	}()
}

// wait reaps the child and publishes its exit code to `?`.
func (c *Context) wait() (int, error) {
	err := c.cmd.Wait()
	c.exitCode = c.cmd.ProcessState.ExitCode()
	c.env.SetLastExit(c.exitCode)
	c.log.Debug("process exited", zap.String("name", c.name), zap.Int("exit", c.exitCode))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return c.exitCode, nil
		}
		return c.exitCode, err
	}
	return c.exitCode, nil
}

// launchError converts an OS launch failure into a domain error; a missing
// executable surfaces as not found carrying the filename.
func (c *Context) launchError(err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return runtime.NewNotFound(c.name)
	}
	var pathErr *exec.Error
	if errors.As(err, &pathErr) {
		return runtime.NewNotFound(c.name)
	}
	return runtime.NewError("failed to start %s: %v", c.name, err)
}

func brokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe)
}
