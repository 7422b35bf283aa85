//go:build windows

package staleness

import (
	"os"
	"syscall"
	"time"
)

// accessTime returns the LastAccessTime NTFS keeps for path. Updates are
// disabled by default on many Windows installations
// (NtfsDisableLastAccessUpdate), so the value may be years old.
func accessTime(path string) (time.Time, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	data, ok := fi.Sys().(*syscall.Win32FileAttributeData)
	if !ok || data == nil {
		return time.Time{}, false
	}
	ns := data.LastAccessTime.Nanoseconds()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}
