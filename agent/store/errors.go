package store

import (
	"errors"
	"io/fs"
	"syscall"
)

var (
	ErrDuplicateKey  = errors.New("record id already exists")
	ErrNotFound      = errors.New("record not found")
	ErrInvalidRecord = errors.New("invalid record")
	ErrStorageIO     = errors.New("storage flush failed")
)

// IsIrrecoverable reports whether a storage failure points at the host
// (permissions, full or read-only disk, device errors) rather than at one request.
func IsIrrecoverable(err error) bool {
	if err == nil || !errors.Is(err, ErrStorageIO) {
		return false
	}
	switch {
	case errors.Is(err, fs.ErrPermission),
		errors.Is(err, syscall.ENOSPC),
		errors.Is(err, syscall.EROFS),
		errors.Is(err, syscall.EIO),
		errors.Is(err, syscall.EDQUOT):
		return true
	default:
		return false
	}
}
