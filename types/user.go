package types

// User is the client-supplied identity attached to a session. The user id is
// a display/ownership key, not a hard identity key: several sessions may carry
// the same id (re-login, multiple devices).
type User struct {
	UserId string `json:"userId"`
	Emoji  string `json:"emoji,omitempty"`
}

// DisplayName is the emoji if set, else the raw user id; used everywhere a
// human-readable label is shown.
func (u User) DisplayName() string {
	if u.Emoji != "" {
		return u.Emoji
	}
	return u.UserId
}
