package cellmgmt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Runner executes the cell_mgmt tool with args and returns its standard output
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// LocalRunner runs cell_mgmt on this machine
type LocalRunner struct {
	Path string
}

func (r LocalRunner) Run(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%w: %s %s: %v: %s",
			ErrCommand, r.Path, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// SSHRunner runs cell_mgmt on a remote gateway
type SSHRunner struct {
	Path string

	client     io.Closer
	newSession func(stdout io.Writer, stderr io.Writer) (session, error)
}

// session is the part of *ssh.Session a command needs
type session interface {
	Run(cmd string) error
	Signal(sig ssh.Signal) error
	Close() error
}

// DialSSH connects to addr, for running against a gateway from a workstation
func DialSSH(addr string, user string, password string, path string) (*SSHRunner, error) {
	config := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	log.Printf("dialed gateway %s", addr)

	return &SSHRunner{
		Path:   path,
		client: client,
		// Each ClientConn can support multiple interactive sessions,
		// represented by a Session.
		newSession: func(stdout io.Writer, stderr io.Writer) (session, error) {
			s, err := client.NewSession()
			if err != nil {
				return nil, err
			}
			s.Stdout = stdout
			s.Stderr = stderr
			return s, nil
		},
	}, nil
}

// Run executes one command in a fresh session. A cancelled ctx kills the
// remote command and returns without waiting for it.
func (r *SSHRunner) Run(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	s, err := r.newSession(&stdout, &stderr)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer s.Close()

	command := shellQuote(append([]string{r.Path}, args...))
	done := make(chan error, 1)
	go func() {
		done <- s.Run(command)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		if err := s.Signal(ssh.SIGKILL); err != nil {
			log.Printf("failed to kill %s: %v", command, err)
		}
		s.Close()
		return "", fmt.Errorf("%w: %s: %v", ErrCommand, command, ctx.Err())
	}

	if err != nil {
		return stdout.String(), fmt.Errorf("%w: %s: %v: %s",
			ErrCommand, command, err, strings.TrimSpace(stderr.String()))
	}
	return strings.ReplaceAll(stdout.String(), "\r", ""), nil
}

func (r *SSHRunner) Close() error {
	return r.client.Close()
}

func shellQuote(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
	}
	return strings.Join(quoted, " ")
}
