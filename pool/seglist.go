package pool

// segList threads arena slots into address order. Exactly one segment has
// prev == nilSlot (head) and one has next == nilSlot (tail).
type segList struct {
	a    *arena
	head int32
	n    int
}

// seed makes slot s the only segment of the list.
func (l *segList) seed(s int32) {
	seg := l.a.at(s)
	seg.prev, seg.next = nilSlot, nilSlot
	l.head = s
	l.n = 1
}

// insertAfter splices s in directly after at.
func (l *segList) insertAfter(at, s int32) {
	cur := l.a.at(at)
	seg := l.a.at(s)

	seg.prev = at
	seg.next = cur.next
	if cur.next != nilSlot {
		l.a.at(cur.next).prev = s
	}
	cur.next = s
	l.n++
}

// unlink splices s out, joining its neighbors.
func (l *segList) unlink(s int32) {
	seg := l.a.at(s)
	if seg.prev != nilSlot {
		l.a.at(seg.prev).next = seg.next
	} else {
		l.head = seg.next
	}
	if seg.next != nilSlot {
		l.a.at(seg.next).prev = seg.prev
	}
	seg.prev, seg.next = nilSlot, nilSlot
	l.n--
}

// firstFit walks from the head and returns the first free segment of at
// least size bytes.
func (l *segList) firstFit(size int64) (int32, bool) {
	for i := l.head; i != nilSlot; i = l.a.at(i).next {
		seg := l.a.at(i)
		if seg.state == segFree && seg.size >= size {
			return i, true
		}
	}
	return nilSlot, false
}
