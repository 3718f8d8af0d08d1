package dbus

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"io"
	"strconv"

	"golang.org/x/sys/unix"
)

// HandshakeOptions configures the SASL exchange performed on a freshly
// connected stream. The zero value performs the minimum handshake spec'd
// for this client: nul byte, AUTH EXTERNAL, OK, BEGIN.
type HandshakeOptions struct {
	// NegotiateUnixFD, when true, requests unix-fd passing between the
	// OK response and BEGIN by exchanging NEGOTIATE_UNIX_FD/AGREE_UNIX_FD.
	// Most peers support this, but it is opt-in here since nothing in
	// this client's connection model yet threads FDs through a call.
	NegotiateUnixFD bool
}

// handshake performs the SASL EXTERNAL authentication exchange on rw and
// returns the server's GUID. rw is written to and read from synchronously.
// Incoming lines are read through a bufio.Reader local to this call, so any
// bytes the peer sends beyond the lines handshake expects are consumed by
// that buffer and not left on rw. Handshake returns after writing BEGIN's
// CRLF, with rw ready for the first framed message.
func handshake(rw io.ReadWriter, opts HandshakeOptions) (guid string, err error) {
	if _, err := rw.Write([]byte{0}); err != nil {
		return "", ioErr(err)
	}

	uid := strconv.Itoa(unix.Getuid())
	hexUID := make([]byte, hex.EncodedLen(len(uid)))
	hex.Encode(hexUID, []byte(uid))
	if err := authWriteLine(rw, "AUTH", "EXTERNAL", string(hexUID)); err != nil {
		return "", ioErr(err)
	}

	in := bufio.NewReader(rw)
	line, err := authReadLine(in)
	if err != nil {
		return "", ioErr(err)
	}
	fields := bytes.Fields(line)
	if len(fields) < 2 || string(fields[0]) != "OK" {
		return "", handshakeErr("expected OK response, got " + string(line))
	}
	guid = string(fields[1])

	if opts.NegotiateUnixFD {
		if err := authWriteLine(rw, "NEGOTIATE_UNIX_FD"); err != nil {
			return "", ioErr(err)
		}
		line, err := authReadLine(in)
		if err != nil {
			return "", ioErr(err)
		}
		if string(bytes.TrimSpace(line)) != "AGREE_UNIX_FD" {
			return "", handshakeErr("peer refused unix-fd negotiation: " + string(line))
		}
	}

	if err := authWriteLine(rw, "BEGIN"); err != nil {
		return "", ioErr(err)
	}
	return guid, nil
}

// authReadLine reads a single CRLF-terminated line, with the terminator
// stripped. A bare '\n' with no preceding '\r' is a protocol error rather
// than something to silently tolerate, since every line this handshake
// speaks or expects is spec'd as CRLF-terminated.
func authReadLine(in *bufio.Reader) ([]byte, error) {
	line, err := in.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, handshakeErr("line not terminated with CRLF")
	}
	return line[:len(line)-2], nil
}

func authWriteLine(out io.Writer, fields ...string) error {
	var buf bytes.Buffer
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(f)
	}
	buf.WriteString("\r\n")
	_, err := out.Write(buf.Bytes())
	return err
}
