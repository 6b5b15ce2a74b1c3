package entity

// User is a directory entry that can act on trips
type User struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Groups     []string `json:"groups"`
	LarkOpenID string   `json:"lark_open_id,omitempty"`
}

// InGroup reports whether the user belongs to the named group
func (u *User) InGroup(group string) bool {
	if u == nil {
		return false
	}
	for _, g := range u.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// DisplayName returns the name, falling back to the id
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
