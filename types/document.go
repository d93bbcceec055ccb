// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/fxamacker/cbor/v2"
)

var (
	errUnknownIndexProperty = errors.New("unknown index property")

	// Properties are stored in deterministic CBOR so that every node derives
	// the same bytes, and therefore the same root hash, for the same document.
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
		DupMapKey:      cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Properties holds the user-defined values of a document.
type Properties map[string]interface{}

// EncodeProperties returns the canonical encoding of [p].
func EncodeProperties(p Properties) ([]byte, error) {
	if p == nil {
		p = Properties{}
	}
	return cborEnc.Marshal(map[string]interface{}(p))
}

// DecodeProperties parses bytes produced by [EncodeProperties]. Encodings that
// are not canonical are rejected so a document has exactly one byte form.
func DecodeProperties(b []byte) (Properties, error) {
	var m map[string]interface{}
	if err := cborDec.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	canonical, err := cborEnc.Marshal(m)
	if err != nil {
		return nil, err
	}
	if string(canonical) != string(b) {
		return nil, errors.New("document properties are not canonically encoded")
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return Properties(m), nil
}

// EncodeValue returns the canonical encoding of a single property value.
func EncodeValue(v interface{}) ([]byte, error) {
	return cborEnc.Marshal(v)
}

// Document is an instance of a document type.
type Document struct {
	ID             ids.ID `serialize:"true" json:"id"`
	OwnerID        ids.ID `serialize:"true" json:"ownerId"`
	DataContractID ids.ID `serialize:"true" json:"dataContractId"`
	DocumentType   string `serialize:"true" json:"documentType"`
	Revision       uint64 `serialize:"true" json:"revision"`
	CreatedAt      uint64 `serialize:"true" json:"createdAt"`
	UpdatedAt      uint64 `serialize:"true" json:"updatedAt"`
	// Data is the canonical CBOR encoding of the document properties.
	Data []byte `serialize:"true" json:"data"`
}

// Value resolves [name] against the system fields and [props].
func (d *Document) Value(name string, props Properties) (interface{}, bool) {
	switch name {
	case FieldID:
		return d.ID[:], true
	case FieldOwnerID:
		return d.OwnerID[:], true
	case FieldCreatedAt:
		return d.CreatedAt, true
	case FieldUpdatedAt:
		return d.UpdatedAt, true
	}
	v, ok := props[name]
	return v, ok
}

// IndexKey encodes the tuple of values [d] holds for [index]. [complete] is
// false when at least one of the indexed properties is absent.
func (d *Document) IndexKey(index *Index, props Properties) (key []byte, complete bool, err error) {
	complete = true
	for _, prop := range index.Properties {
		v, ok := d.Value(prop.Name, props)
		if !ok {
			complete = false
			v = nil
		}
		enc, err := EncodeValue(v)
		if err != nil {
			return nil, false, fmt.Errorf("%w %q: %v", errUnknownIndexProperty, prop.Name, err)
		}
		lenBytes := make([]byte, wrappers.IntLen)
		binary.BigEndian.PutUint32(lenBytes, uint32(len(enc)))
		key = append(key, lenBytes...)
		key = append(key, enc...)
	}
	return key, complete, nil
}
