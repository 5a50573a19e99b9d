// Package reconcile merges fetched message history with the optimistic buffer
// into the single ordered list a chat displays.
package reconcile

import (
	"sort"
	"time"

	"bondedlink/internal/link/model"
)

// CollapseWindow is the exclusive bound on how far apart two identical
// consecutive messages may be for one to be treated as a duplicate row.
const CollapseWindow = 2 * time.Second

var epoch = time.Unix(0, 0).UTC()

// Stats counts what each pass of a merge removed.
type Stats struct {
	DuplicateIDs int
	Replaced     int
	Collapsed    int
}

func (s Stats) Dropped() int {
	return s.DuplicateIDs + s.Replaced + s.Collapsed
}

// Merge returns server and local messages newest first, with duplicates
// removed. It is pure and deterministic, and merging its output again with
// an empty local list returns the same list.
func Merge(server, local []model.Message) []model.Message {
	out, _ := MergeWithStats(server, local)
	return out
}

func MergeWithStats(server, local []model.Message) ([]model.Message, Stats) {
	var stats Stats

	unique := dedupByID(server, local, &stats)
	sort.SliceStable(unique, func(i, j int) bool {
		return newer(unique[i], unique[j])
	})
	replaced := dropConfirmed(unique, &stats)
	return collapse(replaced, &stats), stats
}

func dedupByID(server, local []model.Message, stats *Stats) []model.Message {
	seen := make(map[string]struct{}, len(server)+len(local))
	out := make([]model.Message, 0, len(server)+len(local))
	for _, list := range [][]model.Message{server, local} {
		for _, m := range list {
			if m.ID != "" {
				if _, dup := seen[m.ID]; dup {
					stats.DuplicateIDs++
					continue
				}
				seen[m.ID] = struct{}{}
			}
			out = append(out, m)
		}
	}
	return out
}

func sortTime(m model.Message) time.Time {
	if m.CreatedAt.IsZero() {
		return epoch
	}
	return m.CreatedAt
}

func newer(a, b model.Message) bool {
	ta, tb := sortTime(a), sortTime(b)
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	return a.ID > b.ID
}

func confirmKey(m model.Message) string {
	return string(m.Role) + "\x00" + m.TrimmedContent()
}

// dropConfirmed removes optimistic messages that a non-local message with the
// same role and trimmed content has superseded.
func dropConfirmed(msgs []model.Message, stats *Stats) []model.Message {
	confirmed := make(map[string]struct{})
	for _, m := range msgs {
		if !m.IsLocal() && m.TrimmedContent() != "" {
			confirmed[confirmKey(m)] = struct{}{}
		}
	}

	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsLocal() && m.TrimmedContent() != "" {
			if _, ok := confirmed[confirmKey(m)]; ok {
				stats.Replaced++
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

// collapse drops a message that repeats its immediate predecessor in the
// ordered input within CollapseWindow. The predecessor is taken from the
// input, so a run of repeats collapses onto its newest member.
func collapse(msgs []model.Message, stats *Stats) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for i, m := range msgs {
		if i > 0 && duplicateOf(m, msgs[i-1]) {
			stats.Collapsed++
			continue
		}
		out = append(out, m)
	}
	return out
}

func duplicateOf(m, prev model.Message) bool {
	if m.Role != prev.Role || m.TrimmedContent() != prev.TrimmedContent() {
		return false
	}
	if m.CreatedAt.IsZero() || prev.CreatedAt.IsZero() {
		return false
	}
	gap := prev.CreatedAt.Sub(m.CreatedAt)
	if gap < 0 {
		gap = -gap
	}
	return gap < CollapseWindow
}
