//go:build !windows
// +build !windows

package dbus

// Fd is the signature for a Unix file descriptor, passed out-of-band
// alongside a message. This value and the parser's 'h' code exist only in
// non-Windows builds; the KindFd constant itself is declared in sig.go for
// every build.
var Fd = Signature{kind: KindFd}

func init() {
	basicKindByChar['h'] = KindFd
	charByBasicKind[KindFd] = 'h'
}
