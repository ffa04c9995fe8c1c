package compositor

import (
	"os"
	"syscall"
)

// mmapFile maps the first size bytes of file's backing store for direct
// shared-memory writes, matching the Wayland shm protocol's expectation
// that CreatePool's fd and a client-side mapping refer to the same pages.
func mmapFile(file *os.File, size int) ([]byte, error) {
	return syscall.Mmap(int(file.Fd()), 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
}
