package cli

import (
	"fmt"
	"io"

	fetchlist "github.com/JohnPlummer/jp-go-fetchlist"
)

// renderState writes a human readable view of s.
func renderState(w io.Writer, s fetchlist.FetchState) error {
	return fetchlist.MatchState(s,
		func(fetchlist.Idle) error {
			_, err := fmt.Fprintln(w, "idle")
			return err
		},
		func(fetchlist.Pending) error {
			_, err := fmt.Fprintln(w, "loading...")
			return err
		},
		func(r fetchlist.Ready) error {
			return renderGroups(w, r.Groups)
		},
		func(f fetchlist.Failed) error {
			_, err := fmt.Fprintf(w, "error: %v\n", f.Err)
			return err
		},
	)
}

// renderGroups prints each list in ascending list id order.
func renderGroups(w io.Writer, groups fetchlist.GroupedCollection) error {
	if len(groups) == 0 {
		_, err := fmt.Fprintln(w, "no items")
		return err
	}

	for _, listID := range groups.ListIDs() {
		items := groups[listID]
		if _, err := fmt.Fprintf(w, "List %d (%d items)\n", listID, len(items)); err != nil {
			return err
		}
		for _, item := range items {
			if _, err := fmt.Fprintf(w, "  %-12s id=%d\n", item.DisplayName(), item.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
