package domain

import "strings"

// Role is a role assignment attached to a signed-in user.
type Role struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Profile is the person/company record the backend links to an account.
type Profile struct {
	ID        int    `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Document  string `json:"document,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Company   string `json:"company,omitempty"`
}

// FullName joins first and last name, skipping blanks.
func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// User is the identity bound to a credential. Only Email is required.
type User struct {
	Email   string   `json:"email"`
	Profile *Profile `json:"profile,omitempty"`
	Roles   []Role   `json:"roles,omitempty"`
}

// Clone returns a deep copy so snapshots handed to callers cannot alias
// session state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := &User{Email: u.Email}
	if u.Profile != nil {
		p := *u.Profile
		out.Profile = &p
	}
	if u.Roles != nil {
		out.Roles = append([]Role(nil), u.Roles...)
	}
	return out
}

// HasRole reports whether the user carries a role with the given name
// (case-insensitive).
func (u *User) HasRole(name string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

// RoleNames lists role names in assignment order.
func (u *User) RoleNames() []string {
	if u == nil {
		return nil
	}
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}
