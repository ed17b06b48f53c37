package signal

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/pgcenter/internal/errors"
)

// Group is a session state class used to pick backends for a group signal.
type Group uint8

const (
	Active Group = 1 << iota
	Idle
	IdleInXact
	Waiting
	Other
)

var groupOrder = []struct {
	group  Group
	letter byte
	name   string
}{
	{Active, 'a', "active"},
	{Idle, 'i', "idle"},
	{IdleInXact, 'x', "idle in xact"},
	{Waiting, 'w', "waiting"},
	{Other, 'o', "other"},
}

const allGroups = Active | Idle | IdleInXact | Waiting | Other

// ErrEmptyGroup is returned when a group signal names no session states.
var ErrEmptyGroup = errors.New(errors.ErrSignal,
	"No session groups selected",
	"Pick at least one of a (active), i (idle), x (idle in xact), w (waiting), o (other)")

// GroupSet is a set of Groups.
type GroupSet uint8

// NewGroupSet builds a set from groups.
func NewGroupSet(groups ...Group) GroupSet {
	var s GroupSet
	for _, g := range groups {
		s = s.Add(g)
	}
	return s
}

// Add returns the set with g included.
func (s GroupSet) Add(g Group) GroupSet { return s | GroupSet(g) }

// Remove returns the set with g excluded.
func (s GroupSet) Remove(g Group) GroupSet { return s &^ GroupSet(g) }

// Toggle flips g.
func (s GroupSet) Toggle(g Group) GroupSet { return s ^ GroupSet(g) }

// Has reports whether g is in the set.
func (s GroupSet) Has(g Group) bool { return s&GroupSet(g) != 0 }

// Empty reports whether no group is selected.
func (s GroupSet) Empty() bool { return s == 0 }

// Validate rejects an empty set and unknown bits.
func (s GroupSet) Validate() error {
	if s.Empty() {
		return ErrEmptyGroup
	}
	if s&^GroupSet(allGroups) != 0 {
		return errors.New(errors.ErrSignal,
			fmt.Sprintf("Unknown session group bits %#x", uint8(s&^GroupSet(allGroups))),
			"")
	}
	return nil
}

// ParseGroupSet reads letters such as "aixwo". Empty input gives an empty set.
func ParseGroupSet(letters string) (GroupSet, error) {
	var s GroupSet
	for _, r := range strings.ToLower(letters) {
		if r == ' ' || r == ',' {
			continue
		}
		found := false
		for _, g := range groupOrder {
			if r == rune(g.letter) {
				s = s.Add(g.group)
				found = true
				break
			}
		}
		if !found {
			return 0, errors.New(errors.ErrSignal,
				fmt.Sprintf("Unknown session group %q", r),
				"Use a, i, x, w or o")
		}
	}
	return s, nil
}

// String renders the set as letters, e.g. "ax".
func (s GroupSet) String() string {
	var b strings.Builder
	for _, g := range groupOrder {
		if s.Has(g.group) {
			b.WriteByte(g.letter)
		}
	}
	return b.String()
}

// Describe renders the set as names, e.g. "active, idle in xact".
func (s GroupSet) Describe() string {
	var names []string
	for _, g := range groupOrder {
		if s.Has(g.group) {
			names = append(names, g.name)
		}
	}
	return strings.Join(names, ", ")
}

func groupCondition(g Group, version int) string {
	switch g {
	case Active:
		return "state = 'active'"
	case Idle:
		return "state = 'idle'"
	case IdleInXact:
		return "state = 'idle in transaction'"
	case Waiting:
		if version > 0 && version < 90600 {
			return "waiting"
		}
		return "wait_event_type = 'Lock'"
	case Other:
		return "state IN ('idle in transaction (aborted)', 'fastpath function call', 'disabled')"
	}
	return ""
}

// BuildGroupPredicate renders the WHERE clause selecting backends in any of
// the set's states whose transaction or query is older than $1::interval,
// never including the calling backend.
func BuildGroupPredicate(set GroupSet, version int) (string, error) {
	if err := set.Validate(); err != nil {
		return "", err
	}
	var states []string
	for _, g := range groupOrder {
		if set.Has(g.group) {
			states = append(states, groupCondition(g.group, version))
		}
	}
	return "(" + strings.Join(states, " OR ") + ")" +
		" AND ((clock_timestamp() - xact_start) > $1::interval" +
		" OR (clock_timestamp() - query_start) > $1::interval)" +
		" AND pid <> pg_backend_pid()", nil
}
