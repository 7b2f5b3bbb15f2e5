// Package model defines domain entities used by services and stores.
package model

import (
	"strings"
	"time"
)

// User is the single current session user kept in the local store.
type User struct {
	ID       string // provider UID or device identifier for guests
	Name     string
	LastName string
	Username string
	Email    string
	Password string // placeholder, never a real secret
	Login    bool   // session-active flag
	IsGuest  bool
}

// TaskList is a titled collection of tasks owned by a user.
type TaskList struct {
	ID          string
	UserID      string
	Title       string
	IsCompleted bool   // derived from tasks, see consistency.Engine
	RemoteID    string // empty until first successful mirror write
}

// Task is a single to-do item belonging to a list.
type Task struct {
	ID          string
	ListID      string
	Text        string
	IsCompleted bool
	RemoteID    string
}

// Identity is the identity provider's snapshot of the signed-in principal.
type Identity struct {
	UID         string
	DisplayName string
	Email       string
}

// Destination is where the presentation layer goes after session resolution.
type Destination int

const (
	// DestinationAuth asks the user to sign in, register or continue as guest.
	DestinationAuth Destination = iota
	// DestinationHome shows the user's lists.
	DestinationHome
)

func (d Destination) String() string {
	if d == DestinationHome {
		return "home"
	}
	return "auth"
}

// Resolution is the outcome of session resolution.
type Resolution struct {
	Destination Destination
	User        *User // nil unless Destination is DestinationHome
}

// Filter selects which lists of a user are returned.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterCompleted Filter = "completed"
	FilterPending   Filter = "pending"
)

// ParseFilter maps user input to a Filter; unknown values fall back to FilterAll.
func ParseFilter(s string) Filter {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case FilterCompleted:
		return FilterCompleted
	case FilterPending:
		return FilterPending
	default:
		return FilterAll
	}
}

// ListSummary is a list header with task counts.
type ListSummary struct {
	TaskList
	Total int
	Done  int
}

// TaskEdit is one task row of an edit session. An empty ID means a new task.
type TaskEdit struct {
	ID          string
	Text        string
	IsCompleted bool
}

// ListEdit is the result of editing a list: new title, the tasks as they are
// now, and the ids removed during the session.
type ListEdit struct {
	ListID         string
	Title          string
	Tasks          []TaskEdit
	DeletedTaskIDs []string
}

// Credential is what the user presents to the identity provider.
// Either Email/Password or Provider/IDToken is set.
type Credential struct {
	Email    string
	Password string
	Provider string
	IDToken  string
}

// Federated reports whether the credential is a third-party id token.
func (c Credential) Federated() bool { return c.IDToken != "" }

// Account is an identity provider account (identityd storage).
type Account struct {
	ID          string
	Provider    string // "password" or a federated provider name
	Subject     string // email for password accounts, external subject otherwise
	Email       string
	DisplayName string
	PwdHash     string
	CreatedAt   time.Time
}

// AuthResult is returned by identityd on successful sign-in or sign-up.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Identity  Identity
}
