// Package terminal asks the operator for login codes and API credentials.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/bnema/telegram-query-cli/internal/ports"
	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

var ErrNoInput = errors.New("no input available")

// Prompter uses huh forms on a terminal and falls back to plain line
// reads when stdin is piped.
type Prompter struct {
	out         io.Writer
	interactive bool

	mu     sync.Mutex
	reader *bufio.Reader

	readerOnce sync.Once
	lines      chan lineResult
}

type lineResult struct {
	line string
	err  error
}

var (
	_ ports.ChallengeProvider = (*Prompter)(nil)
	_ ports.IdentityPrompter  = (*Prompter)(nil)
)

func New(in *os.File, out io.Writer) *Prompter {
	return &Prompter{
		out:         out,
		interactive: term.IsTerminal(int(in.Fd())),
		reader:      bufio.NewReader(in),
	}
}

// NewLinePrompter reads answers line by line from in.
func NewLinePrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{out: out, reader: bufio.NewReader(in)}
}

func (p *Prompter) RequestChallengeCode(ctx context.Context, phone domain.PhoneID) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interactive {
		var code string
		err := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Login code for %s", phone)).
				Description("Sent by Telegram to your other devices or by SMS").
				Value(&code).
				Validate(validateCode),
		)).RunWithContext(ctx)
		if err != nil {
			return "", fmt.Errorf("prompt login code: %w", err)
		}
		return strings.TrimSpace(code), nil
	}

	// Piped input gets the same retry a form gives: a malformed line is
	// reported and the next one is read.
	for {
		code, err := p.readLine(ctx, fmt.Sprintf("Login code for %s: ", phone))
		if err != nil {
			return "", fmt.Errorf("read login code: %w", err)
		}
		if err := validateCode(code); err != nil {
			if _, werr := fmt.Fprintln(p.out, err); werr != nil {
				return "", werr
			}
			continue
		}
		return code, nil
	}
}

func (p *Prompter) RequestIdentity(ctx context.Context, phone domain.PhoneID) (domain.APIIdentity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var rawID, hash string
	if p.interactive {
		err := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("API ID for %s", phone)).
				Description("From https://my.telegram.org/apps").
				Value(&rawID).
				Validate(validateAPIID),
			huh.NewInput().
				Title("API hash").
				EchoMode(huh.EchoModePassword).
				Value(&hash).
				Validate(validateRequired("api hash")),
		)).RunWithContext(ctx)
		if err != nil {
			return domain.APIIdentity{}, fmt.Errorf("prompt api identity: %w", err)
		}
	} else {
		var err error
		if rawID, err = p.readLine(ctx, fmt.Sprintf("API ID for %s: ", phone)); err != nil {
			return domain.APIIdentity{}, fmt.Errorf("read api id: %w", err)
		}
		if hash, err = p.readLine(ctx, "API hash: "); err != nil {
			return domain.APIIdentity{}, fmt.Errorf("read api hash: %w", err)
		}
	}

	if err := validateAPIID(rawID); err != nil {
		return domain.APIIdentity{}, err
	}
	id, _ := strconv.Atoi(strings.TrimSpace(rawID))
	identity := domain.APIIdentity{ID: id, Hash: strings.TrimSpace(hash)}
	if err := identity.Validate(); err != nil {
		return domain.APIIdentity{}, err
	}
	return identity, nil
}

// readLine blocks on input but returns as soon as ctx is done. A line that
// arrives after cancellation is kept for the next read.
func (p *Prompter) readLine(ctx context.Context, label string) (string, error) {
	if _, err := fmt.Fprint(p.out, label); err != nil {
		return "", err
	}

	p.readerOnce.Do(func() {
		p.lines = make(chan lineResult)
		go p.readLines()
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-p.lines:
		if !ok {
			return "", ErrNoInput
		}
		line := strings.TrimSpace(res.line)
		if res.err != nil && !(errors.Is(res.err, io.EOF) && line != "") {
			if errors.Is(res.err, io.EOF) {
				return "", ErrNoInput
			}
			return "", res.err
		}
		return line, nil
	}
}

// readLines is the only goroutine touching reader. It stops after the first
// read error and closes lines so later reads see the end of input.
func (p *Prompter) readLines() {
	defer close(p.lines)
	for {
		line, err := p.reader.ReadString('\n')
		p.lines <- lineResult{line: line, err: err}
		if err != nil {
			return
		}
	}
}

func validateCode(raw string) error {
	code := strings.TrimSpace(raw)
	if code == "" {
		return errors.New("login code is required")
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return errors.New("login code must be digits")
		}
	}
	return nil
}

func validateAPIID(raw string) error {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return fmt.Errorf("api id must be a positive number")
	}
	return nil
}

func validateRequired(name string) func(string) error {
	return func(raw string) error {
		if strings.TrimSpace(raw) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}
