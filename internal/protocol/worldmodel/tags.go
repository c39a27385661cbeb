package worldmodel

import "fmt"

// Tag identifies a message on the solver-world model connection.
type Tag uint8

const (
	TagKeepAlive Tag = iota
	TagTypeAnnounce
	TagStartTransient
	TagStopTransient
	TagSolverData
	TagCreateURI
	TagExpireURI
	TagDeleteURI
	TagExpireAttribute
	TagDeleteAttribute
)

// TagClosed is returned by clients once the connection has ended. It never
// appears on the wire.
const TagClosed Tag = 0xFF

func (t Tag) String() string {
	switch t {
	case TagKeepAlive:
		return "keep_alive"
	case TagTypeAnnounce:
		return "type_announce"
	case TagStartTransient:
		return "start_transient"
	case TagStopTransient:
		return "stop_transient"
	case TagSolverData:
		return "solver_data"
	case TagCreateURI:
		return "create_uri"
	case TagExpireURI:
		return "expire_uri"
	case TagDeleteURI:
		return "delete_uri"
	case TagExpireAttribute:
		return "expire_attribute"
	case TagDeleteAttribute:
		return "delete_attribute"
	case TagClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Known reports whether t is part of the world model tag set.
func (t Tag) Known() bool {
	return t <= TagDeleteAttribute
}
