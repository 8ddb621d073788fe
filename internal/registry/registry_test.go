package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeConn struct{ name string }

func TestAssociateAndLookup(t *testing.T) {
	r := New[*fakeConn]()
	a := &fakeConn{name: "a"}

	r.Associate("a1", a)

	got, ok := r.Lookup("a1")
	assert.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 1, r.Len())

	id, ok := r.IdentifierOf(a)
	assert.True(t, ok)
	assert.Equal(t, "a1", id)
}

func TestLookupMissing(t *testing.T) {
	r := New[*fakeConn]()

	got, ok := r.Lookup("nobody")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestEmptyIdentifierIgnored(t *testing.T) {
	r := New[*fakeConn]()
	r.Associate("", &fakeConn{})

	assert.Equal(t, 0, r.Len())
}

func TestLatestWriterWins(t *testing.T) {
	r := New[*fakeConn]()
	a := &fakeConn{name: "a"}
	b := &fakeConn{name: "b"}

	r.Associate("X", a)
	r.Associate("X", b)

	got, ok := r.Lookup("X")
	assert.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, 1, r.Len())

	_, ok = r.IdentifierOf(a)
	assert.False(t, ok, "previous holder is detached")

	// Removing the detached holder must not drop the new owner's entry.
	r.Remove(a)
	got, ok = r.Lookup("X")
	assert.True(t, ok)
	assert.Same(t, b, got)
}

func TestReassociateFromSameConnection(t *testing.T) {
	r := New[*fakeConn]()
	a := &fakeConn{name: "a"}

	r.Associate("first", a)
	r.Associate("first", a)
	assert.Equal(t, 1, r.Len())

	r.Associate("second", a)

	_, ok := r.Lookup("first")
	assert.False(t, ok, "a connection holds at most one identifier")
	got, ok := r.Lookup("second")
	assert.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 1, r.Len())
}

func TestRemove(t *testing.T) {
	r := New[*fakeConn]()
	a := &fakeConn{name: "a"}
	b := &fakeConn{name: "b"}

	r.Associate("a1", a)
	r.Associate("b1", b)

	r.Remove(a)
	_, ok := r.Lookup("a1")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())

	assert.NotPanics(t, func() {
		r.Remove(a)
		r.Remove(&fakeConn{name: "never registered"})
	})
	assert.Equal(t, 1, r.Len())

	got, ok := r.Lookup("b1")
	assert.True(t, ok)
	assert.Same(t, b, got)
}

func TestReset(t *testing.T) {
	r := New[string]()
	r.Associate("x", "conn-1")
	r.Associate("y", "conn-2")

	r.Reset()

	assert.Equal(t, 0, r.Len())
	_, ok := r.IdentifierOf("conn-1")
	assert.False(t, ok)
}
