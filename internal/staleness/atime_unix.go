//go:build linux || darwin || freebsd || netbsd || openbsd

package staleness

import (
	"time"

	"golang.org/x/sys/unix"
)

// accessTime returns the last-access time of path as reported by stat(2).
func accessTime(path string) (time.Time, bool) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return time.Time{}, false
	}
	sec, nsec := st.Atim.Unix()
	if sec == 0 && nsec == 0 {
		return time.Time{}, false
	}
	return time.Unix(sec, nsec), true
}
