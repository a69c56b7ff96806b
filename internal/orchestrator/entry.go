package orchestrator

import (
	"github.com/99souls/routingcore/internal/environment"
)

// EntryState is an entry's lifecycle state, per §3's Entry data model.
type EntryState string

const (
	StateBuilding EntryState = "BUILDING"
	StateEnabled  EntryState = "ENABLED"
	StateDisabled EntryState = "DISABLED"
	StateError    EntryState = "ERROR"
)

// Entry is one production routing entry: a name bound to (policy, filter,
// priority), plus its compiled Environment once built.
type Entry struct {
	Name       string
	PolicyName string
	FilterName string
	Priority   uint32
	State      EntryState
	Hash       string
	Env        *environment.Environment
	Err        error
}

// TestEntry is the tester-path analogue: no priority, selected by name,
// expiring after Lifetime of inactivity.
type TestEntry struct {
	Name       string
	PolicyName string
	Lifetime   int64 // seconds of inactivity before lazy reap; 0 means no expiry
	LastUseUTC int64 // unix seconds, set on build and bumped by touchTestEntry
	State      EntryState
	Env        *environment.Environment
	Err        error
}

// EntryPost is post_entry's input (§4.8).
type EntryPost struct {
	Name     string
	Policy   string
	Filter   string
	Priority uint32
	Disabled bool
}

// TestEntryPost is post_test_entry's input.
type TestEntryPost struct {
	Name     string
	Policy   string
	Lifetime int64
}

// entryRecord is the on-disk (JSON) shape persisted to router/router/0 —
// source fields only, no compiled Environment or runtime Err.
type entryRecord struct {
	Name     string `json:"name"`
	Policy   string `json:"policy"`
	Filter   string `json:"filter"`
	Priority uint32 `json:"priority"`
	Disabled bool   `json:"disabled"`
}

// testEntryRecord is the on-disk shape persisted to router/tester/0.
type testEntryRecord struct {
	Name     string `json:"name"`
	Policy   string `json:"policy"`
	Lifetime int64  `json:"lifetime"`
}
