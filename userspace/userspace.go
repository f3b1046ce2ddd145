// Package userspace implements the host side of the VM's environment-call
// boundary: the basic file and process calls a guest standard library
// expects (read, write, open, close, exit). The VM core only recognizes
// the ECALL instruction; everything here is outside the core.
package userspace

import (
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	"golang.org/x/sys/unix"

	"github.com/chazu/hart/vm"
)

// Environment-call numbers, matching the RISC-V Linux convention the
// guest toolchain emits.
const (
	SysOpenAt = 56
	SysClose  = 57
	SysRead   = 63
	SysWrite  = 64
	SysExit   = 93
)

// Guest open flags. Translated to host flags at the boundary so guest
// images are host-independent.
const (
	guestRDONLY = 0x000
	guestWRONLY = 0x001
	guestRDWR   = 0x002
	guestCREAT  = 0x040
	guestTRUNC  = 0x200
	guestAPPEND = 0x400
)

// errno values returned to the guest in a0 as negative numbers.
const (
	errBADF  = 9
	errFAULT = 14
	errINVAL = 22
	errNOSYS = 38
)

// Runtime services environment calls against host-side streams and a
// guest file-descriptor table. It implements vm.EnvCallHandler.
type Runtime struct {
	mem *vm.Memory

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	files  map[uint64]*os.File
	nextFD uint64

	exited   bool
	exitCode int64

	log commonlog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithStdin sets the guest's standard input.
func WithStdin(r io.Reader) RuntimeOption {
	return func(rt *Runtime) {
		rt.stdin = r
	}
}

// WithStdout sets the guest's standard output.
func WithStdout(w io.Writer) RuntimeOption {
	return func(rt *Runtime) {
		rt.stdout = w
	}
}

// WithStderr sets the guest's standard error.
func WithStderr(w io.Writer) RuntimeOption {
	return func(rt *Runtime) {
		rt.stderr = w
	}
}

// New creates a Runtime servicing calls against mem, which must be the
// memory of the VM the Runtime is installed on. Guest buffers cross the
// boundary through the memory accessors, so out-of-range guest pointers
// surface as memory faults to the guest, not host errors.
func New(mem *vm.Memory, opts ...RuntimeOption) *Runtime {
	rt := &Runtime{
		mem:    mem,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		files:  make(map[uint64]*os.File),
		nextFD: 3, // 0-2 are the standard streams
		log:    commonlog.GetLogger("hart.userspace"),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Exited reports whether the guest has called exit, and its status.
func (rt *Runtime) Exited() (bool, int64) {
	return rt.exited, rt.exitCode
}

// HandleEnvCall services one environment call. Unknown call numbers
// return -ENOSYS-style failure to the guest rather than an error: an
// unimplemented syscall is the guest's problem, not a VM fault.
func (rt *Runtime) HandleEnvCall(call *vm.EnvCall) (vm.EnvCallResult, error) {
	switch call.Num {
	case SysRead:
		return rt.read(call.Args[0], call.Args[1], call.Args[2])
	case SysWrite:
		return rt.write(call.Args[0], call.Args[1], call.Args[2])
	case SysOpenAt:
		// openat(dirfd, path, flags, mode); dirfd is ignored, paths are
		// resolved against the host working directory.
		return rt.open(call.Args[1], call.Args[2], call.Args[3])
	case SysClose:
		return rt.close(call.Args[0])
	case SysExit:
		rt.exited = true
		rt.exitCode = int64(call.Args[0])
		rt.log.Infof("guest exit with status %d", rt.exitCode)
		return vm.EnvCallResult{Exited: true, ExitCode: rt.exitCode}, nil
	default:
		rt.log.Warningf("unimplemented environment call %d", call.Num)
		return fail(errNOSYS), nil
	}
}

// read services read(fd, buf, count): bytes come from the host stream or
// file and are stored into guest memory one byte at a time.
func (rt *Runtime) read(fd, buf, count uint64) (vm.EnvCallResult, error) {
	if !rt.validBuffer(buf, count) {
		return fail(errFAULT), nil
	}
	var src io.Reader
	switch fd {
	case 0:
		src = rt.stdin
	case 1, 2:
		return fail(errBADF), nil
	default:
		f, ok := rt.files[fd]
		if !ok {
			return fail(errBADF), nil
		}
		src = f
	}

	host := make([]byte, count)
	n, err := src.Read(host)
	if n == 0 && err != nil && err != io.EOF {
		return fail(errBADF), nil
	}
	for i := 0; i < n; i++ {
		if werr := rt.mem.Write8(buf+uint64(i), host[i]); werr != nil {
			return fail(errFAULT), nil
		}
	}
	return ok(uint64(n)), nil
}

// write services write(fd, buf, count). This is also how guest "print"
// reaches the host: a write to fd 1 or 2.
func (rt *Runtime) write(fd, buf, count uint64) (vm.EnvCallResult, error) {
	if !rt.validBuffer(buf, count) {
		return fail(errFAULT), nil
	}
	var dst io.Writer
	switch fd {
	case 1:
		dst = rt.stdout
	case 2:
		dst = rt.stderr
	case 0:
		return fail(errBADF), nil
	default:
		f, okFD := rt.files[fd]
		if !okFD {
			return fail(errBADF), nil
		}
		dst = f
	}

	host := make([]byte, count)
	for i := uint64(0); i < count; i++ {
		b, err := rt.mem.Read8(buf + i)
		if err != nil {
			return fail(errFAULT), nil
		}
		host[i] = b
	}
	n, err := dst.Write(host)
	if err != nil {
		return fail(errBADF), nil
	}
	return ok(uint64(n)), nil
}

// open services openat with the dirfd already stripped. The path is a
// NUL-terminated string in guest memory.
func (rt *Runtime) open(pathPtr, flags, mode uint64) (vm.EnvCallResult, error) {
	path, err := rt.readCString(pathPtr)
	if err != nil {
		return fail(errFAULT), nil
	}

	hostFlags, err := translateOpenFlags(flags)
	if err != nil {
		return fail(errINVAL), nil
	}

	f, err := os.OpenFile(path, hostFlags, os.FileMode(mode&0o777))
	if err != nil {
		rt.log.Debugf("open %q failed: %v", path, err)
		return fail(errINVAL), nil
	}

	fd := rt.nextFD
	rt.nextFD++
	rt.files[fd] = f
	return ok(fd), nil
}

// close services close(fd). The standard streams cannot be closed.
func (rt *Runtime) close(fd uint64) (vm.EnvCallResult, error) {
	f, okFD := rt.files[fd]
	if !okFD {
		return fail(errBADF), nil
	}
	delete(rt.files, fd)
	if err := f.Close(); err != nil {
		return fail(errBADF), nil
	}
	return ok(0), nil
}

// Close releases any files the guest left open.
func (rt *Runtime) Close() error {
	var first error
	for fd, f := range rt.files {
		if err := f.Close(); err != nil && first == nil {
			first = fmt.Errorf("closing guest fd %d: %w", fd, err)
		}
		delete(rt.files, fd)
	}
	return first
}

// validBuffer reports whether [buf, buf+count) lies within guest memory.
// count comes straight from a guest register and sizes host allocations,
// so it must be bounded before any buffer is made from it.
func (rt *Runtime) validBuffer(buf, count uint64) bool {
	if count == 0 {
		return true
	}
	size := rt.mem.Size()
	if count > size || !rt.mem.Contains(buf) {
		return false
	}
	return size-(buf-rt.mem.Base()) >= count
}

// readCString reads a NUL-terminated string from guest memory. Capped so
// a missing terminator cannot walk the whole region.
func (rt *Runtime) readCString(addr uint64) (string, error) {
	const maxPath = 4096
	var buf []byte
	for i := uint64(0); i < maxPath; i++ {
		b, err := rt.mem.Read8(addr + i)
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
	return "", fmt.Errorf("unterminated path at 0x%08X", addr)
}

// translateOpenFlags maps guest open flags to host flags.
func translateOpenFlags(flags uint64) (int, error) {
	var host int
	switch flags & 0x3 {
	case guestRDONLY:
		host = unix.O_RDONLY
	case guestWRONLY:
		host = unix.O_WRONLY
	case guestRDWR:
		host = unix.O_RDWR
	default:
		return 0, fmt.Errorf("bad access mode in flags 0x%x", flags)
	}
	if flags&guestCREAT != 0 {
		host |= unix.O_CREAT
	}
	if flags&guestTRUNC != 0 {
		host |= unix.O_TRUNC
	}
	if flags&guestAPPEND != 0 {
		host |= unix.O_APPEND
	}
	return host, nil
}

func ok(ret uint64) vm.EnvCallResult {
	return vm.EnvCallResult{Ret: ret}
}

func fail(errno uint64) vm.EnvCallResult {
	return vm.EnvCallResult{Ret: -errno} // negative errno, two's complement
}
