package userspace

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/hart/vm"
)

const testBase = 0x80000000

func newTestRuntime(t *testing.T, opts ...RuntimeOption) (*Runtime, *vm.Memory) {
	t.Helper()
	mem := vm.NewMemory(testBase, 1<<16)
	rt := New(mem, opts...)
	t.Cleanup(func() {
		if err := rt.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return rt, mem
}

// poke copies host bytes into guest memory at addr.
func poke(t *testing.T, mem *vm.Memory, addr uint64, data []byte) {
	t.Helper()
	for i, b := range data {
		if err := mem.Write8(addr+uint64(i), b); err != nil {
			t.Fatalf("Write8(%#x): %v", addr+uint64(i), err)
		}
	}
}

// peek copies n guest bytes at addr back to the host.
func peek(t *testing.T, mem *vm.Memory, addr, n uint64) []byte {
	t.Helper()
	out := make([]byte, n)
	for i := uint64(0); i < n; i++ {
		b, err := mem.Read8(addr + i)
		if err != nil {
			t.Fatalf("Read8(%#x): %v", addr+i, err)
		}
		out[i] = b
	}
	return out
}

func call(num uint64, args ...uint64) *vm.EnvCall {
	c := &vm.EnvCall{Num: num}
	copy(c.Args[:], args)
	return c
}

func isErrno(res vm.EnvCallResult, errno uint64) bool {
	return res.Ret == -errno
}

func TestWriteToStdout(t *testing.T) {
	var stdout bytes.Buffer
	rt, mem := newTestRuntime(t, WithStdout(&stdout))

	msg := []byte("hello, guest\n")
	poke(t, mem, testBase+0x100, msg)

	res, err := rt.HandleEnvCall(call(SysWrite, 1, testBase+0x100, uint64(len(msg))))
	if err != nil {
		t.Fatalf("HandleEnvCall: %v", err)
	}
	if res.Ret != uint64(len(msg)) {
		t.Errorf("write returned %d, want %d", res.Ret, len(msg))
	}
	if stdout.String() != string(msg) {
		t.Errorf("stdout = %q, want %q", stdout.String(), msg)
	}
}

func TestWriteToStderr(t *testing.T) {
	var stderr bytes.Buffer
	rt, mem := newTestRuntime(t, WithStderr(&stderr))

	poke(t, mem, testBase, []byte("oops"))
	res, err := rt.HandleEnvCall(call(SysWrite, 2, testBase, 4))
	if err != nil {
		t.Fatalf("HandleEnvCall: %v", err)
	}
	if res.Ret != 4 || stderr.String() != "oops" {
		t.Errorf("stderr write: ret=%d buf=%q", res.Ret, stderr.String())
	}
}

func TestWriteBadPointerFaults(t *testing.T) {
	rt, _ := newTestRuntime(t, WithStdout(&bytes.Buffer{}))

	// Buffer below the memory base.
	res, err := rt.HandleEnvCall(call(SysWrite, 1, 0x1000, 8))
	if err != nil {
		t.Fatalf("HandleEnvCall: %v", err)
	}
	if !isErrno(res, errFAULT) {
		t.Errorf("write with bad pointer returned %#x, want -EFAULT", res.Ret)
	}
}

func TestGuestControlledCountBounded(t *testing.T) {
	// A count far beyond the memory size must fail cleanly instead of
	// sizing a host allocation from the guest register.
	rt, _ := newTestRuntime(t, WithStdout(&bytes.Buffer{}), WithStdin(strings.NewReader("x")))

	for _, count := range []uint64{1 << 62, ^uint64(0), (1 << 16) + 1} {
		res, err := rt.HandleEnvCall(call(SysWrite, 1, testBase, count))
		if err != nil {
			t.Fatalf("write(count=%#x): %v", count, err)
		}
		if !isErrno(res, errFAULT) {
			t.Errorf("write(count=%#x) returned %#x, want -EFAULT", count, res.Ret)
		}

		res, err = rt.HandleEnvCall(call(SysRead, 0, testBase, count))
		if err != nil {
			t.Fatalf("read(count=%#x): %v", count, err)
		}
		if !isErrno(res, errFAULT) {
			t.Errorf("read(count=%#x) returned %#x, want -EFAULT", count, res.Ret)
		}
	}
}

func TestBufferSpanningRegionEndFaults(t *testing.T) {
	rt, _ := newTestRuntime(t, WithStdout(&bytes.Buffer{}))

	// Starts in bounds, runs off the end of the 64 KiB region.
	res, err := rt.HandleEnvCall(call(SysWrite, 1, testBase+(1<<16)-4, 8))
	if err != nil {
		t.Fatalf("HandleEnvCall: %v", err)
	}
	if !isErrno(res, errFAULT) {
		t.Errorf("spanning write returned %#x, want -EFAULT", res.Ret)
	}
}

func TestWriteBadFD(t *testing.T) {
	rt, mem := newTestRuntime(t)
	poke(t, mem, testBase, []byte("x"))

	for _, fd := range []uint64{0, 99} {
		res, err := rt.HandleEnvCall(call(SysWrite, fd, testBase, 1))
		if err != nil {
			t.Fatalf("HandleEnvCall(fd=%d): %v", fd, err)
		}
		if !isErrno(res, errBADF) {
			t.Errorf("write to fd %d returned %#x, want -EBADF", fd, res.Ret)
		}
	}
}

func TestReadFromStdin(t *testing.T) {
	rt, mem := newTestRuntime(t, WithStdin(strings.NewReader("input data")))

	res, err := rt.HandleEnvCall(call(SysRead, 0, testBase+0x200, 5))
	if err != nil {
		t.Fatalf("HandleEnvCall: %v", err)
	}
	if res.Ret != 5 {
		t.Fatalf("read returned %d, want 5", res.Ret)
	}
	if got := peek(t, mem, testBase+0x200, 5); string(got) != "input" {
		t.Errorf("guest buffer = %q, want %q", got, "input")
	}
}

func TestReadAtEOF(t *testing.T) {
	rt, _ := newTestRuntime(t, WithStdin(strings.NewReader("")))

	res, err := rt.HandleEnvCall(call(SysRead, 0, testBase, 16))
	if err != nil {
		t.Fatalf("HandleEnvCall: %v", err)
	}
	if res.Ret != 0 {
		t.Errorf("read at EOF returned %d, want 0", res.Ret)
	}
}

func TestOpenWriteCloseFile(t *testing.T) {
	rt, mem := newTestRuntime(t)

	path := filepath.Join(t.TempDir(), "out.txt")
	poke(t, mem, testBase+0x300, append([]byte(path), 0))
	poke(t, mem, testBase+0x400, []byte("file body"))

	res, err := rt.HandleEnvCall(call(SysOpenAt, 0, testBase+0x300, guestWRONLY|guestCREAT|guestTRUNC, 0o644))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	fd := res.Ret
	if fd < 3 {
		t.Fatalf("open returned fd %d, want >= 3", fd)
	}

	res, err = rt.HandleEnvCall(call(SysWrite, fd, testBase+0x400, 9))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if res.Ret != 9 {
		t.Fatalf("write returned %d, want 9", res.Ret)
	}

	res, err = rt.HandleEnvCall(call(SysClose, fd))
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if res.Ret != 0 {
		t.Fatalf("close returned %d, want 0", res.Ret)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(body) != "file body" {
		t.Errorf("file contents = %q, want %q", body, "file body")
	}
}

func TestOpenThenReadBack(t *testing.T) {
	rt, mem := newTestRuntime(t)

	path := filepath.Join(t.TempDir(), "in.txt")
	if err := os.WriteFile(path, []byte("stored"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	poke(t, mem, testBase+0x300, append([]byte(path), 0))

	res, err := rt.HandleEnvCall(call(SysOpenAt, 0, testBase+0x300, guestRDONLY, 0))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	fd := res.Ret

	res, err = rt.HandleEnvCall(call(SysRead, fd, testBase+0x500, 6))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Ret != 6 {
		t.Fatalf("read returned %d, want 6", res.Ret)
	}
	if got := peek(t, mem, testBase+0x500, 6); string(got) != "stored" {
		t.Errorf("guest buffer = %q, want %q", got, "stored")
	}
}

func TestOpenBadPathPointer(t *testing.T) {
	rt, _ := newTestRuntime(t)

	res, err := rt.HandleEnvCall(call(SysOpenAt, 0, 0x10, guestRDONLY, 0))
	if err != nil {
		t.Fatalf("HandleEnvCall: %v", err)
	}
	if !isErrno(res, errFAULT) {
		t.Errorf("open with bad path pointer returned %#x, want -EFAULT", res.Ret)
	}
}

func TestCloseBadFD(t *testing.T) {
	rt, _ := newTestRuntime(t)

	res, err := rt.HandleEnvCall(call(SysClose, 42))
	if err != nil {
		t.Fatalf("HandleEnvCall: %v", err)
	}
	if !isErrno(res, errBADF) {
		t.Errorf("close(42) returned %#x, want -EBADF", res.Ret)
	}
}

func TestExit(t *testing.T) {
	rt, _ := newTestRuntime(t)

	res, err := rt.HandleEnvCall(call(SysExit, 7))
	if err != nil {
		t.Fatalf("HandleEnvCall: %v", err)
	}
	if !res.Exited || res.ExitCode != 7 {
		t.Fatalf("exit result = %+v, want Exited with code 7", res)
	}
	exited, code := rt.Exited()
	if !exited || code != 7 {
		t.Errorf("Exited() = %v, %d; want true, 7", exited, code)
	}
}

func TestUnknownCallNumber(t *testing.T) {
	rt, _ := newTestRuntime(t)

	res, err := rt.HandleEnvCall(call(9999))
	if err != nil {
		t.Fatalf("HandleEnvCall: %v", err)
	}
	if !isErrno(res, errNOSYS) {
		t.Errorf("unknown call returned %#x, want -ENOSYS", res.Ret)
	}
}

func TestTranslateOpenFlags(t *testing.T) {
	if _, err := translateOpenFlags(0x3); err == nil {
		t.Error("access mode 0x3 should be rejected")
	}
	host, err := translateOpenFlags(guestWRONLY | guestCREAT | guestAPPEND)
	if err != nil {
		t.Fatalf("translateOpenFlags: %v", err)
	}
	if host == 0 {
		t.Error("translated flags should not be zero for O_WRONLY|O_CREAT|O_APPEND")
	}
}
