package duel

import "github.com/mcdev12/pathduel/go/internal/transport"

// Role is a peer's seat in the duel. The zero value means no role yet.
type Role string

const (
	RoleNone   Role = ""
	RoleHost   Role = "HOST"
	RoleClient Role = "CLIENT"
)

// Opponent returns the other seat.
func (r Role) Opponent() Role {
	switch r {
	case RoleHost:
		return RoleClient
	case RoleClient:
		return RoleHost
	default:
		return RoleNone
	}
}

func (r Role) String() string {
	if r == RoleNone {
		return "NONE"
	}
	return string(r)
}

// RoleForSide maps the end of the link a peer holds to its seat: whoever
// accepted the connection hosts.
func RoleForSide(s transport.Side) Role {
	switch s {
	case transport.SideListener:
		return RoleHost
	case transport.SideDialer:
		return RoleClient
	default:
		return RoleNone
	}
}
