package credential

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrAuthentication is returned when a provider cannot obtain a token.
var ErrAuthentication = errors.New("authentication failed")

// DefaultHelperTimeout bounds a single run of the token helper.
const DefaultHelperTimeout = 2 * time.Minute

// Provider exchanges account credentials for a session token.
type Provider interface {
	GetToken(ctx context.Context, email, password string) (string, error)
}

// CommandProvider obtains tokens by running an external helper, typically a
// headless browser script that signs in and prints the session cookie. The
// helper receives MVS_EMAIL and MVS_PASSWORD in its environment and must
// print the token as the last non-empty line of stdout.
type CommandProvider struct {
	Command []string
	Timeout time.Duration
}

// NewCommandProvider creates a provider running the given command line.
func NewCommandProvider(command []string, timeout time.Duration) *CommandProvider {
	if timeout <= 0 {
		timeout = DefaultHelperTimeout
	}
	return &CommandProvider{Command: command, Timeout: timeout}
}

// GetToken runs the helper and returns the token it printed.
func (p *CommandProvider) GetToken(ctx context.Context, email, password string) (string, error) {
	if len(p.Command) == 0 {
		return "", fmt.Errorf("%w: no helper command configured", ErrAuthentication)
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...)
	cmd.Env = append(os.Environ(), "MVS_EMAIL="+email, "MVS_PASSWORD="+password)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%w: helper %s: %v: %s", ErrAuthentication, p.Command[0], err, msg)
		}
		return "", fmt.Errorf("%w: helper %s: %v", ErrAuthentication, p.Command[0], err)
	}

	token := lastLine(stdout.String())
	if token == "" {
		return "", fmt.Errorf("%w: helper %s printed no token", ErrAuthentication, p.Command[0])
	}
	return token, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
