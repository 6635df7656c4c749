package binning

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential hints the kernel that [off, off+n) of f is read once, in order.
func adviseSequential(f *os.File, off, n int64) {
	_ = unix.Fadvise(int(f.Fd()), off, n, unix.FADV_SEQUENTIAL)
	_ = unix.Fadvise(int(f.Fd()), off, n, unix.FADV_WILLNEED)
}
