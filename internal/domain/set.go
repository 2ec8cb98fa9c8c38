package domain

import (
	"encoding/json"
	"sort"
)

// StringSet is a set of logins. It stays a set through the whole pipeline
// (merges need set union) and serializes as a sorted array; it only becomes
// a plain count at the corpus export boundary.
type StringSet map[string]struct{}

// NewStringSet returns a set containing the given members.
func NewStringSet(members ...string) StringSet {
	s := make(StringSet, len(members))
	for _, m := range members {
		s.Add(m)
	}
	return s
}

// Add inserts a member into the set.
func (s StringSet) Add(member string) {
	s[member] = struct{}{}
}

// Has reports whether member is in the set.
func (s StringSet) Has(member string) bool {
	_, ok := s[member]
	return ok
}

// Union inserts every member of other into the set.
func (s StringSet) Union(other StringSet) {
	for m := range other {
		s[m] = struct{}{}
	}
}

// Sorted returns the members in lexicographic order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array of members.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of members into the set.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var members []string
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	*s = NewStringSet(members...)
	return nil
}
