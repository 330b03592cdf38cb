// Package priolist implements the ordered activation set that backs
// every fair-queue, load-balance and broadcast peer-selection policy in
// the protocol layer. An endpoint is inserted once, with a priority in
// 1..16 (1 highest), then toggled active/inactive as the transport
// reports it ready or not ready; Pop hands back the current endpoint
// and advances to the next active one, round-robining within a
// priority band before falling through to the next lower one.
package priolist

const (
	// MinPriority is the highest-precedence priority value.
	MinPriority = 1
	// MaxPriority is the lowest-precedence priority value.
	MaxPriority = 16
	// DefaultPriority is used when a caller does not specify one.
	DefaultPriority = 8
)

// Id is the key type stored in the list. core.EndpointId satisfies it.
type Id = uint64

type item struct {
	id       Id
	priority uint8
	active   bool
}

// current pins the list's cursor to a specific item by index and the
// priority it was active at, so Pop/Remove can resume a scan from
// there without re-deriving the priority from a possibly-stale index.
type cursor struct {
	index    int
	priority uint8
	set      bool
}

// List is the priority-ordered activation set described above. The
// zero value is ready to use.
type List struct {
	items   []item
	current cursor
}

// New returns an empty List.
func New() *List {
	return &List{}
}

func clampPriority(priority int) uint8 {
	if priority < MinPriority {
		return MinPriority
	}
	if priority > MaxPriority {
		return MaxPriority
	}
	return uint8(priority)
}

// Insert adds id with the given priority (clamped to 1..16). The item
// starts inactive.
func (l *List) Insert(id Id, priority int) {
	l.items = append(l.items, item{id: id, priority: clampPriority(priority)})
}

// Remove drops id from the list. If id was the current item, the
// cursor is repaired using the same selection Pop uses.
func (l *List) Remove(id Id) {
	index := l.findByID(id, 0, len(l.items))
	if index < 0 {
		return
	}

	priority := l.items[index].priority
	wasCurrent := l.current.set && l.current.index == index

	l.items = append(l.items[:index], l.items[index+1:]...)
	l.fixupIndicesAfterRemoval(index)

	if wasCurrent {
		l.computeNext(index, priority)
	} else if l.current.set && l.current.index > index {
		l.current.index--
	}
}

// fixupIndicesAfterRemoval is a no-op placeholder kept explicit:
// computeNext always re-derives current.index by scanning, so no other
// bookkeeping besides the decrement above is required.
func (l *List) fixupIndicesAfterRemoval(removedIndex int) {}

// Activate marks id active. If there is no current item, or the
// current item has a strictly larger (lower-precedence) priority
// value, the activated item becomes current.
func (l *List) Activate(id Id) {
	index := l.findByID(id, 0, len(l.items))
	if index < 0 {
		return
	}
	l.activateAt(index)
}

func (l *List) activateAt(index int) {
	if l.items[index].active {
		return
	}
	priority := l.items[index].priority
	l.items[index].active = true

	if !l.current.set {
		l.setCurrent(index, priority)
		return
	}
	if priority < l.current.priority {
		l.setCurrent(index, priority)
	}
}

// Deactivate marks id inactive. If id was the current item, the cursor
// advances using the same selection Pop uses; otherwise the next Pop
// skips over it during its scan.
func (l *List) Deactivate(id Id) {
	index := l.findByID(id, 0, len(l.items))
	if index < 0 {
		return
	}
	l.items[index].active = false
	if l.current.set && l.current.index == index {
		l.computeNext(index, l.current.priority)
	}
}

// Peek reports whether there is a current item, i.e. whether Pop would
// return something.
func (l *List) Peek() bool {
	return l.current.set
}

// Current returns the current item without advancing the cursor.
func (l *List) Current() (Id, bool) {
	if !l.current.set {
		return 0, false
	}
	return l.items[l.current.index].id, true
}

// Pop returns the current item, marks it inactive, and advances the
// cursor to the next active item: first scanning forward through the
// same priority band and wrapping around, then falling through to each
// successively lower-precedence priority up to MaxPriority.
func (l *List) Pop() (Id, bool) {
	if !l.current.set {
		return 0, false
	}
	index := l.current.index
	priority := l.current.priority
	id := l.items[index].id

	l.items[index].active = false
	l.computeNext(index, priority)

	return id, true
}

func (l *List) computeNext(pivot int, priority uint8) {
	if index := l.find(func(it item) bool { return it.active && it.priority == priority }, pivot, len(l.items)); index >= 0 {
		l.setCurrent(index, priority)
		return
	}
	if index := l.find(func(it item) bool { return it.active && it.priority == priority }, 0, pivot); index >= 0 {
		l.setCurrent(index, priority)
		return
	}
	for p := int(priority) + 1; p <= MaxPriority; p++ {
		pp := uint8(p)
		if index := l.find(func(it item) bool { return it.active && it.priority == pp }, 0, len(l.items)); index >= 0 {
			l.setCurrent(index, pp)
			return
		}
	}
	l.current = cursor{}
}

func (l *List) setCurrent(index int, priority uint8) {
	l.current = cursor{index: index, priority: priority, set: true}
}

func (l *List) find(predicate func(item) bool, start, end int) int {
	for i := start; i < end; i++ {
		if predicate(l.items[i]) {
			return i
		}
	}
	return -1
}

func (l *List) findByID(id Id, start, end int) int {
	return l.find(func(it item) bool { return it.id == id }, start, end)
}

// Len returns the number of items stored, active or not.
func (l *List) Len() int { return len(l.items) }
