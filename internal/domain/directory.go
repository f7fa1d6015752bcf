package domain

import "errors"

// ErrNotFound is returned by directory lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Capabilities checked by the tracker.
const (
	CapabilityAccessAllProfiles     = "access_all_profiles"
	CapabilityIssueTrackerDeveloper = "issue_tracker_developer"
)

// User is an account from the users directory.
type User struct {
	ID       string
	RealName string
	Email    string
	CenterID int64
	SiteName string
}

// Site is a study center.
type Site struct {
	CenterID    int64
	Name        string
	IsStudySite bool
}

// Module is an entry of the menu/module directory.
type Module struct {
	ID    int64
	Label string
}

// Option is a value/label pair offered to the issue form.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func hasOption(opts []Option, value string) bool {
	for _, o := range opts {
		if o.Value == value {
			return true
		}
	}
	return false
}
