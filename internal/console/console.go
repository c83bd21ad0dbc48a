// Package console implements the interactive shell. Each input line is parsed by
// a fresh cobra command tree bound to a shared scan session.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/shadowtrace/shadowtrace-cli/internal/config"
	"github.com/shadowtrace/shadowtrace-cli/internal/correlation"
	"github.com/shadowtrace/shadowtrace-cli/internal/session"
)

const banner = `
   ___ _            _              _____
  / __| |_  __ _ __| |_____ __ __ |_   _| _ __ _ __ ___
  \__ \ ' \/ _' / _' / _ \ V  V /   | || '_/ _' / _/ -_)
  |___/_||_\__,_\__,_\___/\_/\_/    |_||_| \__,_\__\___|

  Digital footprint and DPDP exposure console. Type "help" for commands.
`

// errExit is returned by the exit command to stop the loop.
var errExit = errors.New("exit requested")

// Console is the interactive shell.
type Console struct {
	session *session.Session
	cfg     config.ConsoleConfig
	auth    Authorizer
	logger  *zap.Logger
	version string
	clock   func() time.Time

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	theme  *Theme
	lines  *bufio.Scanner

	// readPassword reads a passphrase without echo. Nil means use the terminal or
	// the next input line.
	readPassword func() (string, error)

	mu       sync.Mutex
	identity string
}

// Option configures a Console.
type Option func(*Console)

// WithIO replaces stdin, stdout and stderr.
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(c *Console) {
		c.in, c.out, c.errOut = in, out, errOut
	}
}

// WithAuthorizer replaces the passphrase authorizer.
func WithAuthorizer(a Authorizer) Option {
	return func(c *Console) {
		if a != nil {
			c.auth = a
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Console) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithVersion sets the version shown in exported reports.
func WithVersion(v string) Option {
	return func(c *Console) { c.version = v }
}

// WithPasswordReader overrides how login reads the passphrase.
func WithPasswordReader(fn func() (string, error)) Option {
	return func(c *Console) { c.readPassword = fn }
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(c *Console) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New creates a console bound to sess.
func New(sess *session.Session, cfg config.ConsoleConfig, opts ...Option) *Console {
	c := &Console{
		session: sess,
		cfg:     cfg,
		auth:    PassphraseAuthorizer{Passphrase: cfg.Passphrase},
		logger:  zap.NewNop(),
		version: "dev",
		clock:   time.Now,
		in:      os.Stdin,
		out:     os.Stdout,
		errOut:  os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.Prompt == "" {
		c.cfg.Prompt = "shadowtrace > "
	}
	c.logger = c.logger.Named("console")
	c.theme = NewTheme(c.out, ColorEnabled(c.cfg.Color, c.out))
	c.lines = bufio.NewScanner(c.in)
	return c
}

// Identity returns the logged-in identity, or "" when logged out.
func (c *Console) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Console) setIdentity(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = id
}

// rootLabel is the label of the graph root: the identity, the configured operator
// or the default.
func (c *Console) rootLabel() string {
	if id := c.Identity(); id != "" {
		return id
	}
	if c.cfg.Operator != "" {
		return c.cfg.Operator
	}
	return correlation.DefaultRootLabel
}

// Run reads lines until EOF, exit or ctx is done. On return every in-flight
// scan has been cancelled and waited for.
func (c *Console) Run(ctx context.Context) error {
	defer func() {
		c.session.Reset()
		c.session.Wait()
	}()

	fmt.Fprint(c.out, c.theme.Title.Render(banner)+"\n")

	lineCh := make(chan string)
	errCh := make(chan error, 1)
	next := make(chan struct{}, 1)
	go func() {
		defer close(lineCh)
		for range next {
			if !c.lines.Scan() {
				errCh <- c.lines.Err()
				return
			}
			lineCh <- c.lines.Text()
		}
	}()
	defer close(next)

	for {
		fmt.Fprint(c.out, c.cfg.Prompt)
		next <- struct{}{}

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case err := <-errCh:
			fmt.Fprintln(c.out)
			if err != nil {
				return fmt.Errorf("error reading input: %w", err)
			}
			return nil
		case l, ok := <-lineCh:
			if !ok {
				return nil
			}
			line = l
		}

		if err := c.Execute(ctx, line); errors.Is(err, errExit) {
			fmt.Fprintln(c.out, "Exiting shadowtrace.")
			return nil
		}
	}
}

// Execute runs a single input line. Command errors are printed and returned.
// A panicking command is recovered and reported as an error.
func (c *Console) Execute(ctx context.Context, line string) (err error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Command panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("command panicked: %v", r)
			fmt.Fprintf(c.errOut, "Error: %v\n", err)
		}
	}()

	root := c.newCommandTree()
	root.SetArgs(args)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	err = root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errExit) {
		fmt.Fprintln(c.errOut, c.theme.Error.Render("Error:")+" "+err.Error())
	}
	return err
}

// passphrase reads a secret for login. When the input is a terminal echo is
// disabled, otherwise the next input line is consumed.
func (c *Console) passphrase() (string, error) {
	if c.readPassword != nil {
		return c.readPassword()
	}
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.out)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		return string(secret), nil
	}
	return "", errors.New("no passphrase provided: use --passphrase when input is not a terminal")
}
