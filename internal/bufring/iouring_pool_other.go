//go:build !linux

package bufring

import "github.com/behrlich/govio"

// New always returns the portable free-list pool on platforms with no
// ring-mapped provided-buffer facility (no IoUring backend exists
// outside Linux; IOCP has no equivalent concept).
func New(p govio.Proactor, groupID uint16, n int, sz int) (Pool, error) {
	return NewPortablePool(groupID, n, sz), nil
}
