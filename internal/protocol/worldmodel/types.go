package worldmodel

import (
	"fmt"
	"strings"
	"time"
)

// DefaultOrigin is the origin recorded on attributes built without one.
const DefaultOrigin = "empty"

// Attribute is one timestamped value of an object in the world model.
// Creation and Expiration are milliseconds since the epoch; an Expiration of
// zero means the attribute does not expire.
type Attribute struct {
	Name       string
	Data       []byte
	Creation   int64
	Expiration int64
	Origin     string
	Transient  bool
}

// NewAttribute builds a non-transient, non-expiring attribute.
func NewAttribute(name string, data []byte, creation int64) Attribute {
	return Attribute{
		Name:     name,
		Data:     data,
		Creation: creation,
		Origin:   DefaultOrigin,
	}
}

func (a Attribute) String() string {
	return fmt.Sprintf("%s, %d, %d, %s, %x", a.Name, a.Creation, a.Expiration, a.Origin, a.Data)
}

// Data is a set of attributes for one object (URI). Ticket correlates the
// data with a request; zero means none.
type Data struct {
	URI        string
	Attributes []Attribute
	Ticket     uint32
}

func (d Data) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n\tAttribute,\tCreated,\tExpires,\tOrigin,\tData", d.URI)
	for _, a := range d.Attributes {
		fmt.Fprintf(&sb, "\n\t%s", a)
	}
	return sb.String()
}

// TransientRequest asks for (or cancels) streaming of one transient type,
// limited to objects matching any of the expressions.
type TransientRequest struct {
	TypeAlias   uint32
	Expressions []string
}

// Millis converts t to the protocol's millisecond timestamps.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
