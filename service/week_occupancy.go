package services

import (
	"math/rand/v2"
	"time"
)

// weekOccupancy tracks +1/-1 occupancy events of one zone inside one week.
// Events live in a treap whose nodes carry the subtree delta sum and the
// best prefix sum, so inserts are O(log n) and the peak is read at the root.
type weekOccupancy struct {
	carry int64 // sessions already open at week start
	floor int64 // peak restored from a snapshot without events behind it
	root  *occupancyNode
	seq   uint64
}

type occupancyNode struct {
	at    time.Time
	exit  bool
	seq   uint64
	delta int64
	prio  uint64

	left, right *occupancyNode
	sum         int64
	best        int64 // max prefix sum, empty prefix included
}

func (w *weekOccupancy) enter(at time.Time) { w.add(at, false, 1) }
func (w *weekOccupancy) leave(at time.Time) { w.add(at, true, -1) }

func (w *weekOccupancy) add(at time.Time, exit bool, delta int64) {
	w.seq++
	n := &occupancyNode{at: at, exit: exit, seq: w.seq, delta: delta, prio: rand.Uint64()}
	n.update()
	w.root = insertOccupancy(w.root, n)
}

// peak is the highest concurrent occupancy reached during the week.
func (w *weekOccupancy) peak() int64 {
	p := w.carry + w.root.maxPrefix()
	if w.floor > p {
		return w.floor
	}
	return p
}

// events counts stored enter and exit events.
func (w *weekOccupancy) events() int {
	return w.root.size()
}

// before orders by time; at equal instants enters sort before exits so
// touching sessions count as concurrent.
func (n *occupancyNode) before(o *occupancyNode) bool {
	if !n.at.Equal(o.at) {
		return n.at.Before(o.at)
	}
	if n.exit != o.exit {
		return !n.exit
	}
	return n.seq < o.seq
}

func (n *occupancyNode) total() int64 {
	if n == nil {
		return 0
	}
	return n.sum
}

func (n *occupancyNode) maxPrefix() int64 {
	if n == nil {
		return 0
	}
	return n.best
}

func (n *occupancyNode) size() int {
	if n == nil {
		return 0
	}
	return 1 + n.left.size() + n.right.size()
}

func (n *occupancyNode) update() {
	throughSelf := n.left.total() + n.delta
	n.sum = throughSelf + n.right.total()
	n.best = max(n.left.maxPrefix(), throughSelf+n.right.maxPrefix())
}

func insertOccupancy(root, n *occupancyNode) *occupancyNode {
	if root == nil {
		return n
	}
	if n.prio > root.prio {
		n.left, n.right = splitOccupancy(root, n)
		n.update()
		return n
	}
	if n.before(root) {
		root.left = insertOccupancy(root.left, n)
	} else {
		root.right = insertOccupancy(root.right, n)
	}
	root.update()
	return root
}

// splitOccupancy returns the nodes ordered before pivot and the rest.
func splitOccupancy(root, pivot *occupancyNode) (*occupancyNode, *occupancyNode) {
	if root == nil {
		return nil, nil
	}
	if root.before(pivot) {
		l, r := splitOccupancy(root.right, pivot)
		root.right = l
		root.update()
		return root, r
	}
	l, r := splitOccupancy(root.left, pivot)
	root.left = r
	root.update()
	return l, root
}
