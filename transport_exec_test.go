package dbus

import "testing"

func TestParseExecAddressRequiresPath(t *testing.T) {
	_, err := ParseExecAddress(map[string]string{})
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestParseExecAddressArgv0Optional(t *testing.T) {
	addr, err := ParseExecAddress(map[string]string{"path": "/usr/bin/dbus-daemon"})
	if err != nil {
		t.Fatal(err)
	}
	if addr.Path != "/usr/bin/dbus-daemon" {
		t.Errorf("Path = %q", addr.Path)
	}
	if addr.Argv0 != "" {
		t.Errorf("Argv0 = %q, want empty", addr.Argv0)
	}
	if len(addr.Args) != 0 {
		t.Errorf("Args = %v, want empty", addr.Args)
	}
}

func TestParseExecAddressContiguousArgs(t *testing.T) {
	addr, err := ParseExecAddress(map[string]string{
		"path":  "/usr/bin/dbus-daemon",
		"argv0": "dbus-daemon",
		"argv1": "--session",
		"argv2": "--nofork",
	})
	if err != nil {
		t.Fatal(err)
	}
	if addr.Argv0 != "dbus-daemon" {
		t.Errorf("Argv0 = %q", addr.Argv0)
	}
	want := []string{"--session", "--nofork"}
	if len(addr.Args) != len(want) {
		t.Fatalf("Args = %v, want %v", addr.Args, want)
	}
	for i := range want {
		if addr.Args[i] != want[i] {
			t.Errorf("Args[%d] = %q, want %q", i, addr.Args[i], want[i])
		}
	}
}

func TestParseExecAddressStopsAtGap(t *testing.T) {
	addr, err := ParseExecAddress(map[string]string{
		"path":  "/bin/true",
		"argv1": "first",
		"argv3": "skipped-because-argv2-missing",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(addr.Args) != 1 || addr.Args[0] != "first" {
		t.Errorf("Args = %v, want [first]", addr.Args)
	}
}

func TestExecAddressStringPercentEncodesPath(t *testing.T) {
	addr := ExecAddress{Path: "/usr/bin/dbus daemon"}
	got := addr.String()
	want := "unixexec:/usr/bin/dbus%20daemon"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestExecAddressStringLeavesUnreservedBytes(t *testing.T) {
	addr := ExecAddress{Path: "/usr/bin/dbus-daemon_v2.1~x"}
	got := addr.String()
	want := "unixexec:/usr/bin/dbus-daemon_v2.1~x"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

// TestConnectBridgesStdio spawns /bin/cat, a process that echoes every byte
// of stdin back on stdout, and checks the bridged connection carries bytes
// in both directions the way a real exec-transport peer would.
func TestConnectBridgesStdio(t *testing.T) {
	addr := ExecAddress{Path: "/bin/cat"}
	conn, err := Connect(addr)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	msg := []byte("ping")
	if _, err := conn.Write(msg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, len(msg))
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		n += m
	}
	if string(buf) != "ping" {
		t.Errorf("echoed %q, want %q", buf, "ping")
	}
}
