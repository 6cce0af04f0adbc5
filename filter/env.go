package filter

// Env is the expression environment a target filter is evaluated against. One
// outbound event carries at most one filter; the fan-out layer runs it once
// per candidate receiver with Target set to that receiver's session.
type Env struct {
	Room   Room
	Sender User
	Target User
	Name   string // event name
}

type Room struct {
	Id   string
	Name string
}

type User struct {
	SessionId string
	UserId    string
	Name      string // display name
}
