package fetchlist

import "strings"

// Item is one record of the hiring collection.
// ID is not guaranteed to be unique across the collection.
type Item struct {
	ID     int     `json:"id"`
	ListID int     `json:"listId"`
	Name   *string `json:"name"`
}

// DisplayName returns the item name, or "" when it is absent.
func (i Item) DisplayName() string {
	if i.Name == nil {
		return ""
	}
	return *i.Name
}

// HasName reports whether the item has a non-blank name.
func (i Item) HasName() bool {
	return i.Name != nil && strings.TrimSpace(*i.Name) != ""
}
