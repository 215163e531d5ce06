package echo

import (
	"sync/atomic"

	"github.com/wtask/netube/internal/echo/registry"
)

// idSequence - issues connection identifiers, starting from 1.
type idSequence struct {
	last uint64
}

func (q *idSequence) next() registry.ID {
	return registry.ID(atomic.AddUint64(&q.last, 1))
}
