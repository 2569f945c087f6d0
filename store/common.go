package store

import (
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by operations that require an existing row.
var ErrNotFound = errors.New("not found")

func now() int64 {
	return time.Now().Unix()
}
