// Package ops holds the single dispatch table from a decoded wire
// operation to the document.Document call it performs. The server
// batcher and the client inbound loop both apply operations through
// Apply, so the two sides of the wire can never drift on what a given
// operation name means.
package ops

import (
	"fmt"
	"strconv"

	"github.com/AlexisGoodfellow/WinfreyEdit/internal/document"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/wire"
)

// Apply performs op against doc. It assumes op has already passed
// wire.Decode's arity validation; errors returned here are about
// document-level semantics (unknown cursor, bad direction), not shape.
func Apply(doc *document.Document, op wire.Operation) error {
	switch op.Name {
	case wire.CreateCursor:
		return applyCreateCursor(doc, op)
	case wire.RemoveCursor:
		return doc.Remove(op.Args[0])
	case wire.MoveCursor:
		return doc.Move(op.Args[0], op.Args[1])
	case wire.InsertChar:
		return doc.Insert(op.Args[0], op.Args[1])
	case wire.Subscribe, wire.Unsubscribe, wire.EchoResponse:
		// Handled directly by the coordinator that owns subscription
		// and latency state; neither mutates the document through here.
		return nil
	default:
		return fmt.Errorf("ops: no handler for operation %q", op.Name)
	}
}

func applyCreateCursor(doc *document.Document, op wire.Operation) error {
	id := op.Args[0]
	line, col := 0, 0
	if len(op.Args) == 3 {
		var err error
		line, err = strconv.Atoi(op.Args[1])
		if err != nil {
			return fmt.Errorf("ops: create_cursor: bad line %q: %w", op.Args[1], err)
		}
		col, err = strconv.Atoi(op.Args[2])
		if err != nil {
			return fmt.Errorf("ops: create_cursor: bad col %q: %w", op.Args[2], err)
		}
	}
	return doc.Create(id, line, col)
}
