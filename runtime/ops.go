package runtime

import (
	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/opset"
)

// asyncifyOp adapts a blocking closure into the govio.Op the proactor
// layer already knows how to route to its thread pool regardless of
// backend (opset.Asyncify declares opset.ForceBlocking() true).
func asyncifyOp(name string, fn func() (int, error)) govio.Op {
	return opset.NewAsyncify(name, fn)
}
