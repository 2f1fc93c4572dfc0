package jsonrpc

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces request ids.
type IDGenerator interface {
	NextID() string
}

// UUIDGenerator returns random version 4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NextID() string { return uuid.NewString() }

// SequenceGenerator returns "1", "2", ... and is safe for concurrent use.
type SequenceGenerator struct {
	n atomic.Int64
}

func (g *SequenceGenerator) NextID() string {
	return strconv.FormatInt(g.n.Add(1), 10)
}
