package worldmodel

import (
	"errors"
	"fmt"

	"github.com/danmuck/grailctl/internal/protocol"
)

var ErrUnknownAttribute = errors.New("worldmodel: attribute name has no alias")

// TypeSpec is one entry of a TypeAnnounce message.
type TypeSpec struct {
	Alias     uint32
	Name      string
	Transient bool
}

// SolverRecord is one attribute value as carried by SolverData.
type SolverRecord struct {
	Alias    uint32
	Creation int64
	URI      string
	Data     []byte
}

// URICommand is the decoded form of the object and attribute lifecycle
// messages (create/expire/delete).
type URICommand struct {
	URI       string
	Alias     uint32
	Timestamp int64
	Origin    string
}

const (
	// alias u32 + name length u32 + transient u8
	minTypeSpecLen = 4 + 4 + 1

	// alias u32 + creation u64 + uri length u32 + data length u32
	minSolverRecordLen = 4 + 8 + 4 + 4

	// type alias u32 + expression count u32
	minTransientLen = 4 + 4

	minExpressionLen = 4
)

// EncodeTypeAnnounce declares aliases for attribute names, followed by the
// solver's origin string.
func EncodeTypeAnnounce(types []TypeSpec, origin string) ([]byte, error) {
	b := protocol.NewBuilder(uint8(TagTypeAnnounce))
	b.Count(len(types))
	for _, ts := range types {
		b.U32(ts.Alias)
		b.SizedString(ts.Name)
		b.Bool(ts.Transient)
	}
	b.TrailingString(origin)
	return b.Payload()
}

// DecodeTypeAnnounce is the world-model-side counterpart, used by test peers.
func DecodeTypeAnnounce(body []byte) ([]TypeSpec, string, error) {
	r := protocol.NewReader(body)
	n, err := r.Count("type_count", minTypeSpecLen)
	if err != nil {
		return nil, "", err
	}
	types := make([]TypeSpec, 0, n)
	for i := 0; i < n; i++ {
		var ts TypeSpec
		if ts.Alias, err = r.U32("alias"); err != nil {
			return nil, "", err
		}
		if ts.Name, err = r.SizedString("type name"); err != nil {
			return nil, "", err
		}
		if ts.Transient, err = r.Bool("transient"); err != nil {
			return nil, "", err
		}
		types = append(types, ts)
	}
	origin, err := r.TrailingString("origin")
	if err != nil {
		return nil, "", err
	}
	return types, origin, nil
}

// EncodeSolverData pushes every attribute of every object. Each attribute
// name must already have an alias in aliases.
func EncodeSolverData(create bool, data []Data, aliases *AliasTable) ([]byte, error) {
	total := 0
	for _, d := range data {
		total += len(d.Attributes)
	}

	b := protocol.NewBuilder(uint8(TagSolverData))
	b.Bool(create)
	b.Count(total)
	for _, d := range data {
		uri, err := protocol.EncodeString(d.URI)
		if err != nil {
			return nil, err
		}
		for _, attr := range d.Attributes {
			alias, ok := aliases.Lookup(attr.Name)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, attr.Name)
			}
			b.U32(alias)
			b.U64(uint64(attr.Creation))
			b.SizedBytes(uri)
			b.SizedBytes(attr.Data)
		}
	}
	return b.Payload()
}

// DecodeSolverData is the world-model-side counterpart, used by test peers.
func DecodeSolverData(body []byte) (bool, []SolverRecord, error) {
	r := protocol.NewReader(body)
	create, err := r.Bool("create_flag")
	if err != nil {
		return false, nil, err
	}
	n, err := r.Count("attribute_count", minSolverRecordLen)
	if err != nil {
		return false, nil, err
	}
	records := make([]SolverRecord, 0, n)
	for i := 0; i < n; i++ {
		var rec SolverRecord
		if rec.Alias, err = r.U32("alias"); err != nil {
			return false, nil, err
		}
		creation, err := r.U64("creation")
		if err != nil {
			return false, nil, err
		}
		rec.Creation = int64(creation)
		if rec.URI, err = r.SizedString("uri"); err != nil {
			return false, nil, err
		}
		if rec.Data, err = r.SizedBytes("data"); err != nil {
			return false, nil, err
		}
		records = append(records, rec)
	}
	return create, records, nil
}

func EncodeCreateURI(uri string, creation int64, origin string) ([]byte, error) {
	return encodeURICommand(TagCreateURI, URICommand{URI: uri, Timestamp: creation, Origin: origin})
}

func EncodeExpireURI(uri string, expiration int64, origin string) ([]byte, error) {
	return encodeURICommand(TagExpireURI, URICommand{URI: uri, Timestamp: expiration, Origin: origin})
}

func EncodeDeleteURI(uri string, origin string) ([]byte, error) {
	return encodeURICommand(TagDeleteURI, URICommand{URI: uri, Origin: origin})
}

func EncodeExpireAttribute(uri string, alias uint32, expiration int64, origin string) ([]byte, error) {
	return encodeURICommand(TagExpireAttribute, URICommand{URI: uri, Alias: alias, Timestamp: expiration, Origin: origin})
}

func EncodeDeleteAttribute(uri string, alias uint32, origin string) ([]byte, error) {
	return encodeURICommand(TagDeleteAttribute, URICommand{URI: uri, Alias: alias, Origin: origin})
}

func hasAlias(tag Tag) bool {
	return tag == TagExpireAttribute || tag == TagDeleteAttribute
}

func hasTimestamp(tag Tag) bool {
	return tag == TagCreateURI || tag == TagExpireURI || tag == TagExpireAttribute
}

// Layout: uri sized ++ [alias u32] ++ [timestamp u64] ++ origin (unprefixed).
func encodeURICommand(tag Tag, cmd URICommand) ([]byte, error) {
	b := protocol.NewBuilder(uint8(tag))
	b.SizedString(cmd.URI)
	if hasAlias(tag) {
		b.U32(cmd.Alias)
	}
	if hasTimestamp(tag) {
		b.U64(uint64(cmd.Timestamp))
	}
	b.TrailingString(cmd.Origin)
	return b.Payload()
}

// DecodeURICommand is the world-model-side counterpart of the create, expire
// and delete encoders, used by test peers.
func DecodeURICommand(tag Tag, body []byte) (URICommand, error) {
	switch tag {
	case TagCreateURI, TagExpireURI, TagDeleteURI, TagExpireAttribute, TagDeleteAttribute:
	default:
		return URICommand{}, fmt.Errorf("%w: %s is not a uri command", protocol.ErrProtocolViolation, tag)
	}
	r := protocol.NewReader(body)
	var cmd URICommand
	var err error
	if cmd.URI, err = r.SizedString("uri"); err != nil {
		return URICommand{}, err
	}
	if hasAlias(tag) {
		if cmd.Alias, err = r.U32("alias"); err != nil {
			return URICommand{}, err
		}
	}
	if hasTimestamp(tag) {
		ts, err := r.U64("timestamp")
		if err != nil {
			return URICommand{}, err
		}
		cmd.Timestamp = int64(ts)
	}
	if cmd.Origin, err = r.TrailingString("origin"); err != nil {
		return URICommand{}, err
	}
	return cmd, nil
}

// DecodeTransientRequests decodes the shared body of StartTransient and
// StopTransient.
func DecodeTransientRequests(body []byte) ([]TransientRequest, error) {
	r := protocol.NewReader(body)
	n, err := r.Count("entry_count", minTransientLen)
	if err != nil {
		return nil, err
	}
	out := make([]TransientRequest, 0, n)
	for i := 0; i < n; i++ {
		alias, err := r.U32("type_alias")
		if err != nil {
			return nil, err
		}
		exprCount, err := r.Count("expression_count", minExpressionLen)
		if err != nil {
			return nil, err
		}
		req := TransientRequest{TypeAlias: alias, Expressions: make([]string, 0, exprCount)}
		for j := 0; j < exprCount; j++ {
			expr, err := r.SizedString("expression")
			if err != nil {
				return nil, fmt.Errorf("transient[%d] expression[%d]: %w", i, j, err)
			}
			req.Expressions = append(req.Expressions, expr)
		}
		out = append(out, req)
	}
	return out, nil
}

// EncodeStartTransient is the world-model-side encoder, used by test peers.
func EncodeStartTransient(reqs []TransientRequest) ([]byte, error) {
	return encodeTransient(TagStartTransient, reqs)
}

// EncodeStopTransient is the world-model-side encoder, used by test peers.
func EncodeStopTransient(reqs []TransientRequest) ([]byte, error) {
	return encodeTransient(TagStopTransient, reqs)
}

func encodeTransient(tag Tag, reqs []TransientRequest) ([]byte, error) {
	b := protocol.NewBuilder(uint8(tag))
	b.Count(len(reqs))
	for _, req := range reqs {
		b.U32(req.TypeAlias)
		b.Count(len(req.Expressions))
		for _, expr := range req.Expressions {
			b.SizedString(expr)
		}
	}
	return b.Payload()
}

// EncodeKeepAlive returns an empty-bodied keep alive.
func EncodeKeepAlive() []byte {
	return []byte{uint8(TagKeepAlive)}
}
