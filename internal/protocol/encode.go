package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Builder assembles one message payload: the tag byte followed by the body.
// Errors are sticky; the first one is reported by Payload.
type Builder struct {
	buf []byte
	err error
}

// NewBuilder starts a payload with the given message tag.
func NewBuilder(tag uint8) *Builder {
	return &Builder{buf: []byte{tag}}
}

func (b *Builder) U8(v uint8) {
	b.buf = append(b.buf, v)
}

func (b *Builder) Bool(v bool) {
	if v {
		b.U8(1)
		return
	}
	b.U8(0)
}

func (b *Builder) U32(v uint32) {
	b.buf = binary.BigEndian.AppendUint32(b.buf, v)
}

func (b *Builder) U64(v uint64) {
	b.buf = binary.BigEndian.AppendUint64(b.buf, v)
}

func (b *Builder) F32(v float32) {
	b.U32(math.Float32bits(v))
}

func (b *Builder) F64(v float64) {
	b.U64(math.Float64bits(v))
}

func (b *Builder) WideID(id WideID) {
	raw := id.Bytes()
	b.buf = append(b.buf, raw[:]...)
}

// Raw appends p without a length prefix.
func (b *Builder) Raw(p []byte) {
	b.buf = append(b.buf, p...)
}

// Count appends n as a u32 element count or length. Values that do not fit
// fail the builder.
func (b *Builder) Count(n int) bool {
	if n < 0 || uint64(n) > math.MaxUint32 {
		b.fail(fmt.Errorf("protocol: count %d exceeds u32", n))
		return false
	}
	b.U32(uint32(n))
	return true
}

// SizedBytes appends a u32 byte length followed by p.
func (b *Builder) SizedBytes(p []byte) {
	if b.Count(len(p)) {
		b.Raw(p)
	}
}

// SizedString appends s as a length-prefixed UTF-16BE string.
func (b *Builder) SizedString(s string) {
	raw, err := EncodeString(s)
	if err != nil {
		b.fail(err)
		return
	}
	b.SizedBytes(raw)
}

// TrailingString appends s as UTF-16BE with no length prefix. Used for
// origin strings that occupy the rest of a body.
func (b *Builder) TrailingString(s string) {
	raw, err := EncodeString(s)
	if err != nil {
		b.fail(err)
		return
	}
	b.Raw(raw)
}

func (b *Builder) Len() int {
	return len(b.buf)
}

// Payload returns the assembled tag and body.
func (b *Builder) Payload() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.buf, nil
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
