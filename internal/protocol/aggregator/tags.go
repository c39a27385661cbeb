package aggregator

import "fmt"

// Tag identifies a message on the solver-aggregator connection.
type Tag uint8

const (
	TagKeepAlive Tag = iota
	TagCertificate
	// There is no message for certificate denial.
	TagAckCertificate
	TagSubscriptionRequest
	TagSubscriptionResponse
	TagDevicePosition
	TagServerSample
	TagBufferOverrun
)

// TagClosed is returned by clients once the connection has ended. It never
// appears on the wire.
const TagClosed Tag = 0xFF

func (t Tag) String() string {
	switch t {
	case TagKeepAlive:
		return "keep_alive"
	case TagCertificate:
		return "certificate"
	case TagAckCertificate:
		return "ack_certificate"
	case TagSubscriptionRequest:
		return "subscription_request"
	case TagSubscriptionResponse:
		return "subscription_response"
	case TagDevicePosition:
		return "device_position"
	case TagServerSample:
		return "server_sample"
	case TagBufferOverrun:
		return "buffer_overrun"
	case TagClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Known reports whether t is part of the aggregator tag set.
func (t Tag) Known() bool {
	return t <= TagBufferOverrun
}
