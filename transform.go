package fetchlist

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"
)

// NoDigitsKey is the sort key of a name without digits. Such items sort last.
const NoDigitsKey int64 = math.MaxInt64

// GroupedCollection maps a list id to its items in display order.
// Every item in a group carries that group's ListID and a non-blank name.
type GroupedCollection map[int][]Item

// ListIDs returns the group keys in ascending order.
func (g GroupedCollection) ListIDs() []int {
	ids := make([]int, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of items across all groups.
func (g GroupedCollection) Len() int {
	n := 0
	for _, items := range g {
		n += len(items)
	}
	return n
}

// Transform drops items with an absent or blank name, groups the rest by ListID and
// orders each group by NameSortKey. Equal keys keep their input order.
func Transform(items []Item) GroupedCollection {
	groups := make(GroupedCollection)
	for _, item := range items {
		if !item.HasName() {
			continue
		}
		groups[item.ListID] = append(groups[item.ListID], item)
	}

	for id, group := range groups {
		slices.SortStableFunc(group, func(a, b Item) int {
			return cmp.Compare(NameSortKey(a.DisplayName()), NameSortKey(b.DisplayName()))
		})
		groups[id] = group
	}

	return groups
}

// NameSortKey is the number formed by the ASCII digits of name, concatenated in order.
// "Item 10" gives 10 and "a1b2" gives 12. A name with no digits, or whose digits
// overflow int64, gives NoDigitsKey.
// Keys span the full int64 range, so a digit run above 2147483647 still sorts by its
// value instead of falling in with the names that have no digits.
func NameSortKey(name string) int64 {
	var digits strings.Builder
	for _, r := range name {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return NoDigitsKey
	}
	key, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return NoDigitsKey
	}
	return key
}
