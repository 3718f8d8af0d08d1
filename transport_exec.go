package dbus

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/execabs"
)

// ExecAddress is a D-Bus "exec" transport address: a program to spawn,
// with stdio bridged to the bus connection instead of a socket. Options
// follow the D-Bus address grammar: comma-separated key=value pairs with
// path required, argv0 optional, and argv1, argv2, … supplying positional
// arguments at contiguous indices starting from 1; parsing stops at the
// first gap.
type ExecAddress struct {
	Path  string
	Argv0 string
	Args  []string
}

// ParseExecAddress builds an ExecAddress from an already-split options
// map (the exec address's "unixexec:key=value,key=value" body, parsed by
// a caller outside this package's scope). It is the only part of address
// parsing this package performs.
func ParseExecAddress(opts map[string]string) (ExecAddress, error) {
	path, ok := opts["path"]
	if !ok || path == "" {
		return ExecAddress{}, fmt.Errorf("dbus: unixexec address is missing \"path\"")
	}
	addr := ExecAddress{Path: path, Argv0: opts["argv0"]}
	for i := 1; ; i++ {
		v, ok := opts["argv"+strconv.Itoa(i)]
		if !ok {
			break
		}
		addr.Args = append(addr.Args, v)
	}
	return addr, nil
}

// String renders addr back to its wire form: "unixexec:" followed by the
// percent-encoded path bytes. Other options are not round-tripped; the
// exec transport reconstructs them from the ExecAddress it was given, not
// from re-parsing its own String().
func (addr ExecAddress) String() string {
	return "unixexec:" + percentEncodePath(addr.Path)
}

func percentEncodePath(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreservedAddressByte(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isUnreservedAddressByte(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '~', '/':
		return true
	}
	return false
}

// execChild is the near end of the local stream pair returned to the
// caller, plus the bridging state needed to tear everything down when
// either side goes away.
type execChild struct {
	net.Conn
	cmd *execabs.Cmd
}

// Close closes the stream pair half given to the caller. It does not wait
// on the child process; the bridging task, not the caller, owns the
// child's lifetime and exits on its own once the pipes it copies between
// are closed.
func (c *execChild) Close() error {
	return c.Conn.Close()
}

// Connect spawns addr's program and returns the near end of a local
// stream pair bridged to its stdio: bytes written to the returned
// connection reach the child's stdin, and the child's stdout bytes arrive
// as reads. The child's stderr is inherited so its diagnostics reach the
// parent's own stderr rather than being silently dropped.
func Connect(addr ExecAddress) (io.ReadWriteCloser, error) {
	argv0 := addr.Argv0
	if argv0 == "" {
		argv0 = addr.Path
	}
	cmd := execabs.Command(addr.Path, addr.Args...)
	cmd.Args[0] = argv0
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, ioErr(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, ioErr(err)
	}
	setPdeathsig(cmd)

	if err := cmd.Start(); err != nil {
		return nil, ioErr(err)
	}

	near, far := net.Pipe()
	bridge(far, stdin, stdout, cmd)

	return &execChild{Conn: near, cmd: cmd}, nil
}

// bridge launches the detached bidirectional copy task described by the
// exec transport's design: bytes from far go to the child's stdin, bytes
// from the child's stdout come back into far. On either direction's
// error, it logs and tears down both halves so the other copy unblocks
// too, then waits for cmd to exit so the child is reaped.
func bridge(far net.Conn, stdin io.WriteCloser, stdout io.ReadCloser, cmd *execabs.Cmd) {
	errc := make(chan error, 2)
	go func() {
		_, err := io.Copy(stdin, far)
		errc <- err
	}()
	go func() {
		_, err := io.Copy(far, stdout)
		errc <- err
	}()
	go func() {
		if err := <-errc; err != nil {
			logrus.WithError(err).Warn("dbus: exec transport bridge copy failed")
		}
		far.Close()
		stdin.Close()
		stdout.Close()
		cmd.Wait()
	}()
}
