package types

import (
	"bytes"
	"fmt"

	"github.com/ugorji/go/codec"
)

// Transactions travel as canonical msgpack so that every node sees the same
// bytes for the same transaction.
var msgpackHandle = newMsgpackHandle()

func newMsgpackHandle() *codec.MsgpackHandle {
	mh := new(codec.MsgpackHandle)
	mh.Canonical = true
	mh.WriteExt = true
	return mh
}

type wireTransaction struct {
	ID   string              `codec:"id"`
	Type wireTransactionType `codec:"transaction_type"`
	Hash string              `codec:"transaction_hash"`
}

// wireTransactionType is the tagged union on the wire: Kind names the variant
// and exactly the matching body is set.
type wireTransactionType struct {
	Kind              TransactionKind    `codec:"kind"`
	FunctionExecution *FunctionExecution `codec:"function_execution"`
}

type wireEncoder struct {
	out wireTransactionType
}

func (e *wireEncoder) VisitFunctionExecution(fe FunctionExecution) error {
	e.out = wireTransactionType{
		Kind:              KindFunctionExecution,
		FunctionExecution: &fe,
	}
	return nil
}

func toWireType(tt TransactionType) (wireTransactionType, error) {
	if tt == nil {
		return wireTransactionType{}, ErrMissingTransactionType
	}
	enc := &wireEncoder{}
	if err := tt.Accept(enc); err != nil {
		return wireTransactionType{}, err
	}
	return enc.out, nil
}

func (w wireTransactionType) toType() (TransactionType, error) {
	switch w.Kind {
	case KindFunctionExecution:
		if w.FunctionExecution == nil {
			return nil, fmt.Errorf("%w: %v", ErrTransactionBodyMissing, w.Kind)
		}
		return *w.FunctionExecution, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownTransactionKind, w.Kind)
	}
}

// EncodeTransaction serializes tx into its wire form.
func EncodeTransaction(tx *Transaction) ([]byte, error) {
	wt, err := toWireType(tx.Type)
	if err != nil {
		return nil, err
	}
	return marshal(wireTransaction{
		ID:   tx.ID,
		Type: wt,
		Hash: tx.Hash,
	})
}

// DecodeTransaction parses the wire form produced by EncodeTransaction.
// Any deviation from that form is an error: garbage, unknown kinds, a body
// that does not match the kind, or trailing bytes.
func DecodeTransaction(bz []byte) (*Transaction, error) {
	var wt wireTransaction
	if err := unmarshal(bz, &wt); err != nil {
		return nil, err
	}
	tt, err := wt.Type.toType()
	if err != nil {
		return nil, err
	}

	return &Transaction{
		ID:   wt.ID,
		Hash: wt.Hash,
		Type: tt,
	}, nil
}

// EncodeTransactionType serializes only the payload. Canonical hashers hash
// these bytes.
func EncodeTransactionType(tt TransactionType) ([]byte, error) {
	wt, err := toWireType(tt)
	if err != nil {
		return nil, err
	}
	return marshal(wt)
}

func marshal(v interface{}) ([]byte, error) {
	var bz []byte
	if err := codec.NewEncoderBytes(&bz, msgpackHandle).Encode(v); err != nil {
		return nil, fmt.Errorf("msgpack encode: %w", err)
	}
	return bz, nil
}

func unmarshal(bz []byte, v interface{}) error {
	r := bytes.NewReader(bz)
	if err := codec.NewDecoder(r, msgpackHandle).Decode(v); err != nil {
		return fmt.Errorf("msgpack decode: %w", err)
	}
	if r.Len() != 0 {
		return fmt.Errorf("%w: %d", ErrTrailingBytes, r.Len())
	}
	return nil
}
