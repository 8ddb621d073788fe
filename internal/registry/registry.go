// Package registry maps caller-supplied identifiers to live connections.
//
// A Registry does no I/O and no locking of its own. Its owner is expected to
// guard it together with whatever other connection state must change
// atomically alongside it.
package registry

// Registry is an identifier -> connection table with a reverse index so a
// connection can be removed without knowing its identifier. Each identifier
// maps to at most one connection and each connection holds at most one
// identifier; the most recent association wins.
type Registry[C comparable] struct {
	byID   map[string]C
	byConn map[C]string
}

// New returns an empty Registry.
func New[C comparable]() *Registry[C] {
	return &Registry[C]{
		byID:   make(map[string]C),
		byConn: make(map[C]string),
	}
}

// Associate maps id to conn, replacing any previous holder of id. The
// previous holder is only detached from the table. If conn was known under
// a different identifier, that entry is dropped. Empty identifiers are
// ignored.
func (r *Registry[C]) Associate(id string, conn C) {
	if id == "" {
		return
	}

	if prevID, ok := r.byConn[conn]; ok {
		if prevID == id {
			return
		}
		delete(r.byID, prevID)
	}

	if prev, ok := r.byID[id]; ok {
		delete(r.byConn, prev)
	}

	r.byID[id] = conn
	r.byConn[conn] = id
}

// Remove drops the entry owned by conn. Removing a connection that has no
// entry is a no-op.
func (r *Registry[C]) Remove(conn C) {
	id, ok := r.byConn[conn]
	if !ok {
		return
	}
	delete(r.byConn, conn)
	delete(r.byID, id)
}

// Lookup returns the connection currently associated with id.
func (r *Registry[C]) Lookup(id string) (C, bool) {
	conn, ok := r.byID[id]
	return conn, ok
}

// IdentifierOf returns the identifier conn currently owns, if any.
func (r *Registry[C]) IdentifierOf(conn C) (string, bool) {
	id, ok := r.byConn[conn]
	return id, ok
}

// Len returns the number of associations.
func (r *Registry[C]) Len() int {
	return len(r.byID)
}

// Reset removes every association.
func (r *Registry[C]) Reset() {
	clear(r.byID)
	clear(r.byConn)
}
