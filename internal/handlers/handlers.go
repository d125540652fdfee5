// Package handlers applies a decoded wire.Request to a store.Map and
// builds the matching wire.Response. Handlers never fail the connection —
// every outcome, including a decode or capacity problem, is a
// well-formed response.
package handlers

import (
	"gofast-kv/internal/store"
	"gofast-kv/internal/wire"
)

// Handle dispatches req against m and returns the response to encode.
// Fields on the returned Response borrow from m and must be encoded into
// the connection's write buffer before the next mutation of m.
func Handle(req wire.Request, m *store.Map) wire.Response {
	switch req.Command {
	case wire.CmdGet:
		value, ok := m.Get(req.Key)
		return wire.Response{Command: wire.CmdGet, Key: req.Key, Value: value, HasValue: ok}

	case wire.CmdSet:
		stored := m.Put(req.Key, req.Value)
		return wire.Response{Command: wire.CmdSet, Key: req.Key, Value: stored, HasValue: true}

	case wire.CmdDelete:
		// Idempotent: a missing key still returns a well-formed Delete
		// response for that key.
		m.Remove(req.Key)
		return wire.Response{Command: wire.CmdDelete, Key: req.Key}

	case wire.CmdList:
		return handleList(m)

	default:
		return wire.Response{Command: wire.CmdUnknown, Raw: req.Raw}
	}
}

// handleList snapshots the Map's current contents. If the encoded result
// would not fit in one frame, it surfaces "Response too large" as a plain
// Unknown response rather than truncating the enumeration silently.
func handleList(m *store.Map) wire.Response {
	var pairs []wire.KV
	size := 1 // command byte
	overflow := false

	m.Each(func(key, value []byte) bool {
		size += 2 + len(key) + 2 + len(value)
		if size > wire.MaxPayload {
			overflow = true
			return false
		}
		pairs = append(pairs, wire.KV{Key: key, Value: value})
		return true
	})

	if overflow {
		return wire.Response{Command: wire.CmdUnknown, Raw: []byte("Response too large")}
	}
	return wire.Response{Command: wire.CmdList, Pairs: pairs}
}
