// Copyright 2025 Certen Protocol
//
// Wire encoding for gossiped opinions, built on calltypes' deterministic
// codec so an opinion's signing payload and its wire form share the exact
// same point/scalar marshaling.

package opinion

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/certen/contract-executor/pkg/calltypes"
	"github.com/certen/contract-executor/pkg/poex"
)

// Encode serializes a successful opinion, signature included, for
// transmission over a Messenger.
func (o *SuccessfulEndBatchExecutionOpinion) Encode() []byte {
	e := calltypes.NewEncoder(192)
	e.PutUint8(uint8(KindSuccessful))
	e.PutUint64(o.BatchIndex)
	e.PutFixed(o.ExecutorKey[:])
	e.PutFixed(o.StorageState.Encode())
	e.PutFixed(encodeProofs(o.Proofs))
	e.PutFixed(encodeVerificationInfo(o.VerificationInfo))
	e.PutFixed(o.Signature[:])
	return e.Bytes()
}

// DecodeSuccessfulOpinion parses the output of
// SuccessfulEndBatchExecutionOpinion.Encode.
func DecodeSuccessfulOpinion(b []byte) (*SuccessfulEndBatchExecutionOpinion, error) {
	d := calltypes.NewDecoder(b)
	if _, err := d.GetUint8(); err != nil {
		return nil, err
	}
	o := &SuccessfulEndBatchExecutionOpinion{}
	var err error
	if o.BatchIndex, err = d.GetUint64(); err != nil {
		return nil, err
	}
	key, err := d.GetFixed(calltypes.KeySize)
	if err != nil {
		return nil, err
	}
	copy(o.ExecutorKey[:], key)

	stateBytes, err := d.GetFixed(calltypes.KeySize + 24)
	if err != nil {
		return nil, err
	}
	if o.StorageState, err = calltypes.DecodeStorageState(stateBytes); err != nil {
		return nil, err
	}

	if o.Proofs, err = decodeProofsFrom(d); err != nil {
		return nil, err
	}
	if o.VerificationInfo, err = decodeVerificationInfoFrom(d); err != nil {
		return nil, err
	}

	sig, err := d.GetFixed(calltypes.SignatureSize)
	if err != nil {
		return nil, err
	}
	copy(o.Signature[:], sig)

	if err := d.Done(); err != nil {
		return nil, err
	}
	return o, nil
}

// Encode serializes an unsuccessful opinion, signature included.
func (o *UnsuccessfulEndBatchExecutionOpinion) Encode() []byte {
	e := calltypes.NewEncoder(96)
	e.PutUint8(uint8(KindUnsuccessful))
	e.PutUint64(o.BatchIndex)
	e.PutFixed(o.ExecutorKey[:])
	e.PutUint8(uint8(o.Reason))
	e.PutFixed(o.Signature[:])
	return e.Bytes()
}

// DecodeUnsuccessfulOpinion parses the output of
// UnsuccessfulEndBatchExecutionOpinion.Encode.
func DecodeUnsuccessfulOpinion(b []byte) (*UnsuccessfulEndBatchExecutionOpinion, error) {
	d := calltypes.NewDecoder(b)
	if _, err := d.GetUint8(); err != nil {
		return nil, err
	}
	o := &UnsuccessfulEndBatchExecutionOpinion{}
	var err error
	if o.BatchIndex, err = d.GetUint64(); err != nil {
		return nil, err
	}
	key, err := d.GetFixed(calltypes.KeySize)
	if err != nil {
		return nil, err
	}
	copy(o.ExecutorKey[:], key)

	reason, err := d.GetUint8()
	if err != nil {
		return nil, err
	}
	o.Reason = FailureReason(reason)

	sig, err := d.GetFixed(calltypes.SignatureSize)
	if err != nil {
		return nil, err
	}
	copy(o.Signature[:], sig)

	if err := d.Done(); err != nil {
		return nil, err
	}
	return o, nil
}

// DecodeOpinionKind peeks at the leading discriminant byte without
// consuming the message, so a caller can dispatch to the right decoder.
func DecodeOpinionKind(b []byte) (Kind, error) {
	d := calltypes.NewDecoder(b)
	v, err := d.GetUint8()
	if err != nil {
		return 0, err
	}
	return Kind(v), nil
}

func decodeProofsFrom(d *calltypes.Decoder) (poex.Proofs, error) {
	var p poex.Proofs
	xb, err := d.GetFixed(fr.Bytes)
	if err != nil {
		return p, err
	}
	yb, err := d.GetFixed(fr.Bytes)
	if err != nil {
		return p, err
	}
	rb, err := d.GetFixed(fr.Bytes)
	if err != nil {
		return p, err
	}
	p.T.X.SetBytes(xb)
	p.T.Y.SetBytes(yb)
	p.R.SetBytes(rb)
	return p, nil
}

func decodeVerificationInfoFrom(d *calltypes.Decoder) (poex.VerificationInfo, error) {
	var v poex.VerificationInfo
	var err error
	if v.BatchIndex, err = d.GetUint64(); err != nil {
		return v, err
	}
	n, err := d.GetUint32()
	if err != nil {
		return v, err
	}
	v.Ys = make([]poex.Point, n)
	for i := range v.Ys {
		xb, err := d.GetFixed(fr.Bytes)
		if err != nil {
			return v, err
		}
		yb, err := d.GetFixed(fr.Bytes)
		if err != nil {
			return v, err
		}
		v.Ys[i].X.SetBytes(xb)
		v.Ys[i].Y.SetBytes(yb)
	}
	return v, nil
}
