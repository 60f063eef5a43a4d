// Copyright 2025 Certen Protocol
//
// Deterministic binary wire codec. Every multi-byte integer is little-endian
// fixed-width; every variable-length field is length-prefixed with a
// uint32. This is the one encoding every component that crosses a process
// boundary (messenger gossip, chain client submission, storage journal) is
// required to produce byte-for-byte identically, since opinions and proofs
// are hashed and signed over this representation.

package calltypes

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Encoder accumulates a deterministic little-endian byte stream.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with a pre-sized backing buffer.
func NewEncoder(sizeHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, sizeHint)}
}

func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) PutUint8(v uint8) { e.buf = append(e.buf, v) }

func (e *Encoder) PutUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

func (e *Encoder) PutUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

// PutFixed writes a fixed-width field verbatim, with no length prefix.
func (e *Encoder) PutFixed(b []byte) {
	e.buf = append(e.buf, common.CopyBytes(b)...)
}

// PutBytes writes a uint32 length prefix followed by the bytes.
func (e *Encoder) PutBytes(b []byte) {
	e.PutUint32(uint32(len(b)))
	e.buf = append(e.buf, common.CopyBytes(b)...)
}

// Decoder consumes a deterministic little-endian byte stream produced by
// Encoder.
type Decoder struct {
	buf []byte
	pos int
}

func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

func (d *Decoder) remaining() int { return len(d.buf) - d.pos }

func (d *Decoder) need(n int) error {
	if d.remaining() < n {
		return fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, n, d.remaining())
	}
	return nil
}

func (d *Decoder) GetUint8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *Decoder) GetUint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *Decoder) GetUint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

// GetFixed reads exactly n bytes verbatim.
func (d *Decoder) GetFixed(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	v := common.CopyBytes(d.buf[d.pos : d.pos+n])
	d.pos += n
	return v, nil
}

// GetBytes reads a uint32-prefixed variable-length field.
func (d *Decoder) GetBytes() ([]byte, error) {
	n, err := d.GetUint32()
	if err != nil {
		return nil, err
	}
	return d.GetFixed(int(n))
}

// Done reports whether every byte of the stream has been consumed; callers
// decoding a whole message should check this to reject trailing garbage.
func (d *Decoder) Done() error {
	if d.remaining() != 0 {
		return fmt.Errorf("%w: %d bytes left", ErrTrailingBytes, d.remaining())
	}
	return nil
}

func putKey32(e *Encoder, k [KeySize]byte) { e.PutFixed(k[:]) }

func getKey32(d *Decoder) ([KeySize]byte, error) {
	var out [KeySize]byte
	b, err := d.GetFixed(KeySize)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// Encode serializes a CallRequest deterministically.
func (c *CallRequest) Encode() []byte {
	e := NewEncoder(96 + len(c.Parameters))
	putKey32(e, c.CallId)
	e.PutUint8(uint8(c.Kind))
	putKey32(e, c.CallerKey)
	putKey32(e, c.BlockHash)
	e.PutUint64(c.BlockHeight)
	e.PutBytes(c.Parameters)
	e.PutUint32(uint32(len(c.ServicePayers)))
	for _, p := range c.ServicePayers {
		e.PutUint64(p.MosaicId)
		e.PutUint64(p.Amount)
	}
	return e.Bytes()
}

// DecodeCallRequest parses the output of CallRequest.Encode.
func DecodeCallRequest(b []byte) (CallRequest, error) {
	var c CallRequest
	d := NewDecoder(b)
	var err error
	if c.CallId, err = getKey32(d); err != nil {
		return c, err
	}
	kind, err := d.GetUint8()
	if err != nil {
		return c, err
	}
	c.Kind = CallKind(kind)
	if c.CallerKey, err = getKey32(d); err != nil {
		return c, err
	}
	if c.BlockHash, err = getKey32(d); err != nil {
		return c, err
	}
	if c.BlockHeight, err = d.GetUint64(); err != nil {
		return c, err
	}
	if c.Parameters, err = d.GetBytes(); err != nil {
		return c, err
	}
	n, err := d.GetUint32()
	if err != nil {
		return c, err
	}
	c.ServicePayers = make([]MosaicAmount, n)
	for i := range c.ServicePayers {
		mid, err := d.GetUint64()
		if err != nil {
			return c, err
		}
		amt, err := d.GetUint64()
		if err != nil {
			return c, err
		}
		c.ServicePayers[i] = MosaicAmount{MosaicId: mid, Amount: amt}
	}
	if err := d.Done(); err != nil {
		return c, err
	}
	return c, nil
}

// Encode serializes a Batch deterministically: header fields followed by
// each call request, itself length-prefixed so Batch decoding never needs
// to guess a CallRequest's width.
func (b *Batch) Encode() []byte {
	e := NewEncoder(32 + 64*len(b.CallRequests))
	e.PutUint64(b.BatchIndex)
	e.PutUint64(b.AutomaticCheckedUpTo)
	e.PutUint32(uint32(len(b.CallRequests)))
	for i := range b.CallRequests {
		e.PutBytes(b.CallRequests[i].Encode())
	}
	return e.Bytes()
}

// DecodeBatch parses the output of Batch.Encode.
func DecodeBatch(raw []byte) (Batch, error) {
	var out Batch
	d := NewDecoder(raw)
	var err error
	if out.BatchIndex, err = d.GetUint64(); err != nil {
		return out, err
	}
	if out.AutomaticCheckedUpTo, err = d.GetUint64(); err != nil {
		return out, err
	}
	n, err := d.GetUint32()
	if err != nil {
		return out, err
	}
	out.CallRequests = make([]CallRequest, n)
	for i := range out.CallRequests {
		raw, err := d.GetBytes()
		if err != nil {
			return out, err
		}
		cr, err := DecodeCallRequest(raw)
		if err != nil {
			return out, err
		}
		out.CallRequests[i] = cr
	}
	if err := d.Done(); err != nil {
		return out, err
	}
	return out, nil
}

// Encode serializes a StorageState deterministically.
func (s *StorageState) Encode() []byte {
	e := NewEncoder(KeySize + 24)
	putKey32(e, s.StorageHash)
	e.PutUint64(s.UsedDriveSize)
	e.PutUint64(s.MetaFilesSize)
	e.PutUint64(s.FileStructureSize)
	return e.Bytes()
}

// DecodeStorageState parses the output of StorageState.Encode.
func DecodeStorageState(b []byte) (StorageState, error) {
	var s StorageState
	d := NewDecoder(b)
	var err error
	if s.StorageHash, err = getKey32(d); err != nil {
		return s, err
	}
	if s.UsedDriveSize, err = d.GetUint64(); err != nil {
		return s, err
	}
	if s.MetaFilesSize, err = d.GetUint64(); err != nil {
		return s, err
	}
	if s.FileStructureSize, err = d.GetUint64(); err != nil {
		return s, err
	}
	if err := d.Done(); err != nil {
		return s, err
	}
	return s, nil
}
