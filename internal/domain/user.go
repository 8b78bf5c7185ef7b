package domain

import "strings"

// UserProfile pairs one of the two allowed identities with its display color.
type UserProfile struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// UserSet is the configuration-time enumeration of the two tracked users.
// It is not a general identity system, just a partition key space of size two.
type UserSet struct {
	profiles []UserProfile
}

// NewUserSet builds the user set from configured profiles. Exactly two users
// are expected; config validation enforces that before this is called.
func NewUserSet(profiles []UserProfile) *UserSet {
	normalized := make([]UserProfile, len(profiles))
	for i, p := range profiles {
		normalized[i] = UserProfile{
			Name:  strings.ToLower(strings.TrimSpace(p.Name)),
			Color: p.Color,
		}
	}
	return &UserSet{profiles: normalized}
}

// Resolve matches a free-text name against the allowed users,
// case-insensitively. The boolean reports whether the name is allowed.
func (s *UserSet) Resolve(name string) (UserProfile, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range s.profiles {
		if p.Name == name {
			return p, true
		}
	}
	return UserProfile{}, false
}

// Partner returns the other user of the pair.
func (s *UserSet) Partner(name string) (UserProfile, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range s.profiles {
		if p.Name != name {
			return p, true
		}
	}
	return UserProfile{}, false
}

// Names lists the user identifiers in configuration order.
func (s *UserSet) Names() []string {
	names := make([]string, len(s.profiles))
	for i, p := range s.profiles {
		names[i] = p.Name
	}
	return names
}

// Profiles returns a copy of the configured profiles.
func (s *UserSet) Profiles() []UserProfile {
	out := make([]UserProfile, len(s.profiles))
	copy(out, s.profiles)
	return out
}
