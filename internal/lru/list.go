// Package lru provides the recency bookkeeping used by the texture cache
// and the glyph raster cache.
package lru

// Node is an element of a List. It records the key so the owner can map
// back from a list position to its table entry.
type Node[K comparable] struct {
	Key  K
	prev *Node[K]
	next *Node[K]
}

// Newer returns the next more recently used node, or nil.
func (n *Node[K]) Newer() *Node[K] { return n.prev }

// List is a doubly-linked recency list. The front is the most recently
// used element and the back the least recently used.
//
// List is not safe for concurrent use.
type List[K comparable] struct {
	head *Node[K]
	tail *Node[K]
	len  int
}

// Len returns the number of nodes in the list.
func (l *List[K]) Len() int { return l.len }

// PushFront adds key as the most recently used element.
func (l *List[K]) PushFront(key K) *Node[K] {
	n := &Node[K]{Key: key}
	l.linkFront(n)
	return n
}

// MoveToFront marks n as the most recently used element.
func (l *List[K]) MoveToFront(n *Node[K]) {
	if n == nil || n == l.head {
		return
	}
	l.unlink(n)
	l.linkFront(n)
}

// Remove unlinks n. Removing a nil node is a no-op.
func (l *List[K]) Remove(n *Node[K]) {
	if n == nil {
		return
	}
	l.unlink(n)
}

// Back returns the least recently used node, or nil for an empty list.
func (l *List[K]) Back() *Node[K] { return l.tail }

// RemoveOldest removes and returns the least recently used key.
func (l *List[K]) RemoveOldest() (K, bool) {
	if l.tail == nil {
		var zero K
		return zero, false
	}
	n := l.tail
	l.unlink(n)
	return n.Key, true
}

// Clear empties the list.
func (l *List[K]) Clear() {
	l.head, l.tail, l.len = nil, nil, 0
}

func (l *List[K]) linkFront(n *Node[K]) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
	l.len++
}

func (l *List[K]) unlink(n *Node[K]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
	l.len--
}
