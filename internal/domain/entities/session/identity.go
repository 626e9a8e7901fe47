// Package session provides visitor identity and segment-derived state
package session

// VisitorIdentity identifies the current visitor. UserID is empty for
// anonymous visitors. Owned by the auth boundary; everything else
// receives it by value.
type VisitorIdentity struct {
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
}

// IsAnonymous reports whether the visitor has no known user identity.
func (v VisitorIdentity) IsAnonymous() bool {
	return v.UserID == ""
}
