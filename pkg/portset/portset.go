package portset

import "sort"

// Set holds a set of unique TCP ports. Iteration order is undefined;
// use Sorted for deterministic output.
type Set map[uint16]struct{}

func New(ports ...uint16) Set {
	s := Set{}
	for _, p := range ports {
		s[p] = struct{}{}
	}
	return s
}

// Insert adds p and reports whether it was newly inserted.
func (s Set) Insert(p uint16) bool {
	if _, ok := s[p]; ok {
		return false
	}
	s[p] = struct{}{}
	return true
}

// Remove deletes p and reports whether it was present.
func (s Set) Remove(p uint16) bool {
	if _, ok := s[p]; !ok {
		return false
	}
	delete(s, p)
	return true
}

func (s Set) Contains(p uint16) bool {
	_, ok := s[p]
	return ok
}

func (s Set) Len() int {
	return len(s)
}

// Sorted returns the ports in ascending numeric order.
func (s Set) Sorted() []uint16 {
	res := make([]uint16, 0, len(s))
	for p := range s {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for p := range s {
		if _, ok := other[p]; !ok {
			return false
		}
	}
	return true
}

// Union merges any number of sets into a new set.
func Union(sets ...Set) Set {
	res := Set{}
	for _, s := range sets {
		for p := range s {
			res[p] = struct{}{}
		}
	}
	return res
}
