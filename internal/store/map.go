package store

// Tuning constants from the spec: the table starts at 8 buckets, rehashes
// once the average chain length reaches 8, and moves at most 128
// entries per triggering operation so no single op pays for a full rehash.
const (
	startBuckets  = 8
	maxLoadFactor = 8
	migrationWork = 128
	maxBuckets    = 1 << 31
)

// Map holds two HashTables — current and a possibly-nil legacy — plus a
// migration cursor over legacy's buckets. A rehash cannot begin until the
// previous one has fully drained legacy into current, which bounds the
// worst-case latency any single operation can pay for migration work.
type Map struct {
	current   *hashTable
	legacy    *hashTable
	migBucket int
}

// New returns an empty Map with the minimum bucket count.
func New() *Map {
	return &Map{current: newHashTable(startBuckets)}
}

// Put inserts or overwrites key's value and returns the value as stored
// (the Map's own clone, safe for the caller to borrow until the next
// mutation of this key). If key is still sitting unmigrated in legacy, the
// existing entry is moved into current and updated in place rather than
// inserting a second node for the same key — see the Q4 decision in
// SPEC_FULL.md for why put must check legacy too, same as remove.
func (m *Map) Put(key, value []byte) []byte {
	h := hashKey(key)

	if e := m.current.find(h, key); e != nil {
		e.value = cloneBytes(value)
		m.maybeRehash()
		m.migrate(migrationWork)
		return e.value
	}

	if m.legacy != nil {
		if e := m.legacy.remove(h, key); e != nil {
			e.value = cloneBytes(value)
			e.next = nil
			m.current.insertHead(e)
			m.maybeRehash()
			m.migrate(migrationWork)
			return e.value
		}
	}

	e := &entry{key: cloneBytes(key), value: cloneBytes(value), hash: h}
	m.current.insertHead(e)
	m.maybeRehash()
	m.migrate(migrationWork)
	return e.value
}

// Get returns the borrowed value for key, consulting legacy first so a
// key awaiting migration is still found. A miss in legacy advances
// migration by one step before falling back to current.
func (m *Map) Get(key []byte) ([]byte, bool) {
	h := hashKey(key)
	if m.legacy != nil {
		if e := m.legacy.find(h, key); e != nil {
			return e.value, true
		}
	}
	m.migrate(migrationWork)
	if e := m.current.find(h, key); e != nil {
		return e.value, true
	}
	return nil, false
}

// Remove deletes key if present, consulting legacy as a fallback when
// current misses during an in-progress rehash (required per SPEC_FULL.md
// Q1 — without this fallback a key put just before the first migration
// step after a rehash trigger could be missed by a following remove).
func (m *Map) Remove(key []byte) bool {
	h := hashKey(key)
	e := m.current.remove(h, key)
	if e == nil && m.legacy != nil {
		e = m.legacy.remove(h, key)
	}
	m.migrate(migrationWork)
	return e != nil
}

// Size returns the number of live entries across both tables.
func (m *Map) Size() int {
	size := m.current.size
	if m.legacy != nil {
		size += m.legacy.size
	}
	return size
}

// Each calls fn once per stored (key, value) pair, legacy first then
// current, stopping early if fn returns false. The Map must not be
// mutated while Each is running.
func (m *Map) Each(fn func(key, value []byte) bool) {
	if m.legacy != nil {
		for _, head := range m.legacy.slots {
			for e := head; e != nil; e = e.next {
				if !fn(e.key, e.value) {
					return
				}
			}
		}
	}
	for _, head := range m.current.slots {
		for e := head; e != nil; e = e.next {
			if !fn(e.key, e.value) {
				return
			}
		}
	}
}

// Migrating reports whether a rehash is in progress.
func (m *Map) Migrating() bool {
	return m.legacy != nil
}

// Buckets returns the current and legacy bucket counts (legacy is 0 when
// no rehash is in progress).
func (m *Map) Buckets() (current, legacy int) {
	current = m.current.buckets()
	if m.legacy != nil {
		legacy = m.legacy.buckets()
	}
	return current, legacy
}

// maybeRehash doubles current into legacy once the load factor is
// reached and no rehash is already in progress. The table never shrinks,
// and doubling that would exceed maxBuckets is skipped rather than
// overflowing the bucket count.
func (m *Map) maybeRehash() {
	if m.legacy != nil {
		return
	}
	if m.current.size < m.current.buckets()*maxLoadFactor {
		return
	}
	newBuckets := m.current.buckets() * 2
	if newBuckets <= 0 || newBuckets > maxBuckets {
		return
	}
	m.legacy = m.current
	m.current = newHashTable(newBuckets)
	m.migBucket = 0
}

// migrate moves up to n entries from legacy into current, walking legacy's
// buckets in order. Entries are relinked, not recloned, so any borrowed
// value reference returned earlier stays valid. Once every bucket has
// drained, legacy is dropped and the cursor resets.
func (m *Map) migrate(n int) {
	if m.legacy == nil {
		return
	}
	moved := 0
	for moved < n && m.migBucket < len(m.legacy.slots) {
		e := m.legacy.slots[m.migBucket]
		if e == nil {
			m.migBucket++
			continue
		}
		m.legacy.slots[m.migBucket] = e.next
		m.legacy.size--
		e.next = nil
		m.current.insertHead(e)
		moved++
	}
	if m.migBucket >= len(m.legacy.slots) || m.legacy.size == 0 {
		m.legacy = nil
		m.migBucket = 0
	}
}
