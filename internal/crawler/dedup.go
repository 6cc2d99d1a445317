package crawler

// OrderedSet keeps the first occurrence of each string in insertion order.
// Keys are compared byte for byte: two businesses listed under the same
// display name collapse into one entry.
type OrderedSet struct {
	seen  map[string]struct{}
	items []string
}

// NewOrderedSet creates an OrderedSet with the given estimated capacity.
func NewOrderedSet(estimatedCapacity int) *OrderedSet {
	return &OrderedSet{
		seen:  make(map[string]struct{}, estimatedCapacity),
		items: make([]string, 0, estimatedCapacity),
	}
}

// Add inserts s and reports whether it was new.
func (o *OrderedSet) Add(s string) bool {
	if _, ok := o.seen[s]; ok {
		return false
	}
	o.seen[s] = struct{}{}
	o.items = append(o.items, s)
	return true
}

// AddAll inserts every element of values in order.
func (o *OrderedSet) AddAll(values []string) {
	for _, v := range values {
		o.Add(v)
	}
}

// Contains reports whether s has been added.
func (o *OrderedSet) Contains(s string) bool {
	_, ok := o.seen[s]
	return ok
}

// Remove deletes s, keeping the order of the remaining items.
func (o *OrderedSet) Remove(s string) {
	if _, ok := o.seen[s]; !ok {
		return
	}
	delete(o.seen, s)
	for i, item := range o.items {
		if item == s {
			o.items = append(o.items[:i], o.items[i+1:]...)
			return
		}
	}
}

// Len returns the number of unique items.
func (o *OrderedSet) Len() int { return len(o.items) }

// Items returns a copy of the items in first-seen order.
func (o *OrderedSet) Items() []string {
	out := make([]string, len(o.items))
	copy(out, o.items)
	return out
}

// Dedupe returns values without repeats, keeping first occurrences in order.
func Dedupe(values []string) []string {
	set := NewOrderedSet(len(values))
	set.AddAll(values)
	return set.Items()
}
