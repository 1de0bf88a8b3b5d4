package leveldb

import "container/heap"

// internalIterator yields internal keys in ascending order. key and value
// remain valid until the next call to next.
type internalIterator interface {
	next() bool
	key() []byte
	value() []byte
	err() error
}

// mergingIterator merges children into a single internal-key ordering.
type mergingIterator struct {
	children []internalIterator
	h        iterHeap
	started  bool
	failed   error
}

func newMergingIterator(children ...internalIterator) *mergingIterator {
	return &mergingIterator{children: children}
}

func (m *mergingIterator) next() bool {
	if m.failed != nil {
		return false
	}
	if !m.started {
		m.started = true
		for _, child := range m.children {
			if child.next() {
				m.h = append(m.h, child)
			} else if err := child.err(); err != nil {
				m.failed = err
				return false
			}
		}
		heap.Init(&m.h)
		return len(m.h) > 0
	}
	if len(m.h) == 0 {
		return false
	}

	top := m.h[0]
	if top.next() {
		heap.Fix(&m.h, 0)
	} else {
		if err := top.err(); err != nil {
			m.failed = err
			return false
		}
		heap.Pop(&m.h)
	}
	return len(m.h) > 0
}

func (m *mergingIterator) key() []byte   { return m.h[0].key() }
func (m *mergingIterator) value() []byte { return m.h[0].value() }
func (m *mergingIterator) err() error    { return m.failed }

type iterHeap []internalIterator

func (h iterHeap) Len() int           { return len(h) }
func (h iterHeap) Less(i, j int) bool { return compareInternalKeys(h[i].key(), h[j].key()) < 0 }
func (h iterHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *iterHeap) Push(x any) {
	*h = append(*h, x.(internalIterator)) //nolint:forcetypeassert // only iterators are pushed
}

func (h *iterHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}
