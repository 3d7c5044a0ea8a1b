package routing

import (
	"container/heap"

	"github.com/osmroute/osmroute/internal/osmgraph"
)

// step is one hop of a partial path. Steps share their prefixes.
type step struct {
	node osmgraph.NodeID
	cost float64
	prev *step
}

func (s *step) path() []osmgraph.NodeID {
	n := 0
	for cur := s; cur != nil; cur = cur.prev {
		n++
	}
	out := make([]osmgraph.NodeID, n)
	for cur := s; cur != nil; cur = cur.prev {
		n--
		out[n] = cur.node
	}
	return out
}

type entry struct {
	step     *step
	priority float64
	seq      uint64
}

// frontier is a min-heap on priority; equal priorities pop in insertion order.
type frontier struct {
	entries []*entry
	nextSeq uint64
}

func (f *frontier) Len() int { return len(f.entries) }

func (f *frontier) Less(i, j int) bool {
	a, b := f.entries[i], f.entries[j]
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

func (f *frontier) Swap(i, j int) { f.entries[i], f.entries[j] = f.entries[j], f.entries[i] }

func (f *frontier) Push(x any) { f.entries = append(f.entries, x.(*entry)) }

func (f *frontier) Pop() any {
	old := f.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	f.entries = old[:n-1]
	return e
}

func (f *frontier) push(s *step, priority float64) {
	heap.Push(f, &entry{step: s, priority: priority, seq: f.nextSeq})
	f.nextSeq++
}

func (f *frontier) pop() *step {
	return heap.Pop(f).(*entry).step
}
