// Package wire defines the on-the-wire shape of everything that crosses
// the interactive and broadcast subjects: operation records, batches, and
// the handful of reply shapes the server sends back. Decoding here is a
// single validating step — a malformed or unknown-shaped message never
// reaches the document model.
package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Name is the tagged-union discriminant of an Operation. Dispatch on
// these values, never on positional args alone.
type Name string

const (
	Subscribe     Name = "subscribe"
	Unsubscribe   Name = "unsubscribe"
	CreateCursor  Name = "create_cursor"
	RemoveCursor  Name = "remove_cursor"
	MoveCursor    Name = "move_cursor"
	InsertChar    Name = "insert_char"
	EchoResponse  Name = "echo_response"
)

// arity gives the minimum and maximum number of Args each operation name
// allows. create_cursor is the only variable-arity case: either just
// an id, or an id plus an initial (line, col).
var arity = map[Name][2]int{
	Subscribe:    {0, 0},
	Unsubscribe:  {1, 1},
	CreateCursor: {1, 3},
	RemoveCursor: {1, 1},
	MoveCursor:   {2, 2},
	InsertChar:   {2, 2},
	EchoResponse: {5, 5},
}

// Operation is one record of the wire format: a tagged union over Name,
// with Args holding the name-specific payload and an optional client-side
// send timestamp (decimal seconds, serialized as a string so it survives
// round-tripping through JSON without float rounding surprises).
type Operation struct {
	UUID string   `json:"uuid"`
	Name Name     `json:"name"`
	Args []string `json:"args"`
	Time string   `json:"time,omitempty"`
}

// Batch is an ordered list of operations, the unit the broadcast subject
// carries.
type Batch []Operation

// TimeSeconds parses the Time field as decimal seconds. ok is false if
// Time is empty or unparsable.
func (o Operation) TimeSeconds() (t float64, ok bool) {
	if o.Time == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(o.Time, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// WithTime returns a copy of o with Time set to the given decimal-second
// timestamp.
func (o Operation) WithTime(seconds float64) Operation {
	o.Time = strconv.FormatFloat(seconds, 'f', 6, 64)
	return o
}

// Encode serializes an Operation.
func Encode(op Operation) ([]byte, error) {
	return json.Marshal(op)
}

// EncodeBatch serializes a Batch.
func EncodeBatch(b Batch) ([]byte, error) {
	return json.Marshal(b)
}

// IsKnown reports whether name is one of the fixed set of operations
// this system recognizes. An unrecognized name is not a decode failure
// on its own — see Decode — it is instead routed to the "fail" reply by
// the caller, mirroring the original dict-dispatch-with-fallback design.
func IsKnown(name Name) bool {
	_, ok := arity[name]
	return ok
}

// Decode parses an Operation and, for recognized names, validates that
// Args falls within that name's allowed arity. An unrecognized name is
// left for the caller to turn into a "no such RPC" reply rather than
// rejected here — only a malformed envelope or a known name with the
// wrong arity is a decode error.
func Decode(data []byte) (Operation, error) {
	var op Operation
	if err := json.Unmarshal(data, &op); err != nil {
		return Operation{}, fmt.Errorf("wire: malformed operation: %w", err)
	}
	bounds, known := arity[op.Name]
	if !known {
		return op, nil
	}
	if len(op.Args) < bounds[0] || len(op.Args) > bounds[1] {
		return Operation{}, fmt.Errorf("wire: operation %q takes %d-%d args, got %d", op.Name, bounds[0], bounds[1], len(op.Args))
	}
	if op.Name == CreateCursor && len(op.Args) == 2 {
		return Operation{}, fmt.Errorf("wire: operation %q takes 1 or 3 args, got %d", op.Name, len(op.Args))
	}
	return op, nil
}

// DecodeBatch parses and validates a Batch, rejecting the whole batch if
// any member operation fails validation.
func DecodeBatch(data []byte) (Batch, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("wire: malformed batch: %w", err)
	}
	batch := make(Batch, 0, len(raw))
	for _, r := range raw {
		op, err := Decode(r)
		if err != nil {
			return nil, err
		}
		batch = append(batch, op)
	}
	return batch, nil
}

// IsControlPlane reports whether name is applied synchronously by the
// request handler rather than queued for the batcher.
func IsControlPlane(name Name) bool {
	switch name {
	case Subscribe, Unsubscribe, CreateCursor, RemoveCursor, EchoResponse:
		return true
	default:
		return false
	}
}

// CursorPosition is the {cx,cy} shape the subscribe reply uses for each
// live cursor.
type CursorPosition struct {
	CX int `json:"cx"`
	CY int `json:"cy"`
}

// SubscribedOther is the payload of a successful subscribe reply.
type SubscribedOther struct {
	UUID    string                    `json:"uuid"`
	File    []string                  `json:"file"`
	Cursors map[string]CursorPosition `json:"cursors"`
}

// SubscribeReply is the full reply to a subscribe request.
type SubscribeReply struct {
	Status string          `json:"status"`
	Other  SubscribedOther `json:"other"`
}

// StatusReply is a generic {"status": "..."} reply, used for unsubscribe
// acknowledgements and similar control-plane acks that carry no payload.
type StatusReply struct {
	Status string `json:"status"`
}

// FailReply is sent when a request names an operation the server doesn't
// recognize, or when the document rejects a control-plane operation.
type FailReply struct {
	Status string `json:"status"`
	Other  string `json:"other"`
}

// NoSuchRPCFail is the canned FailReply for an unrecognized operation
// name.
func NoSuchRPCFail() FailReply {
	return FailReply{Status: "fail", Other: "No RPC matches this contract"}
}

// DroppedReply is sent when a data-plane edit is rejected as stale.
type DroppedReply struct {
	Status string `json:"status"`
	Other  string `json:"other"`
}

// StaleDropped is the canned DroppedReply for an edit whose timestamp
// falls before the current staleness horizon.
func StaleDropped() DroppedReply {
	return DroppedReply{Status: "dropped", Other: "message_too_old"}
}

// Null is the literal JSON null reply sent to acknowledge a queued
// data-plane edit or an applied control-plane operation that has nothing
// else to report.
var Null = []byte("null")

// FailureString renders the plain-text failure format used when decoding
// itself fails (so there is no Operation to build a structured reply
// around): "Failure (<reason>): <message>".
func FailureString(reason, message string) string {
	return fmt.Sprintf("Failure (%s): %s", reason, message)
}
