// Package pending correlates outgoing calls with the responses that resolve them.
package pending

import (
	"sync"
)

// RemoteError is the failure reported by the peer for one call.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return "remote error: " + e.Message
}

// Call is one outstanding outgoing call. Done receives the call exactly once
// when it completes.
type Call struct {
	ID     uint64
	Method string
	Result []any
	Err    error
	Done   chan *Call
}

func (c *Call) complete(result []any, err error) {
	c.Result = result
	c.Err = err
	c.Done <- c
}

// Table assigns call ids and tracks calls awaiting a response.
type Table struct {
	mu     sync.Mutex
	nextID uint64
	calls  map[uint64]*Call
}

// NewTable returns an empty table whose first id is 0.
func NewTable() *Table {
	return &Table{calls: make(map[uint64]*Call)}
}

// Register allocates the next id and stores a call for it.
func (t *Table) Register(method string) *Call {
	t.mu.Lock()
	defer t.mu.Unlock()

	call := &Call{
		ID:     t.nextID,
		Method: method,
		Done:   make(chan *Call, 1),
	}
	t.nextID++
	t.calls[call.ID] = call
	return call
}

// Remove drops a call without completing it. Used when the call never made
// it onto the wire.
func (t *Table) Remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.calls, id)
}

// Resolve completes the call registered under id with the peer's outcome.
// It reports false when no such call is pending.
func (t *Table) Resolve(id uint64, result []any, remoteErr string) bool {
	t.mu.Lock()
	call, ok := t.calls[id]
	if ok {
		delete(t.calls, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}

	if remoteErr != "" {
		call.complete(nil, &RemoteError{Method: call.Method, Message: remoteErr})
		return true
	}
	if result == nil {
		result = []any{}
	}
	call.complete(result, nil)
	return true
}

// FailAll completes every pending call with err and empties the table.
func (t *Table) FailAll(err error) int {
	t.mu.Lock()
	calls := t.calls
	t.calls = make(map[uint64]*Call)
	t.mu.Unlock()

	for _, call := range calls {
		call.complete(nil, err)
	}
	return len(calls)
}

// Len returns the number of calls awaiting a response.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
