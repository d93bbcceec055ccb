// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
)

// System fields every document carries. They may be referenced by indices.
const (
	FieldID        = "$id"
	FieldOwnerID   = "$ownerId"
	FieldCreatedAt = "$createdAt"
	FieldUpdatedAt = "$updatedAt"
)

// PropertyType is the value type of a document property.
type PropertyType uint8

const (
	PropertyTypeString PropertyType = iota
	PropertyTypeInteger
	PropertyTypeBoolean
	PropertyTypeByteArray
	PropertyTypeIdentifier
)

func (p PropertyType) Valid() bool { return p <= PropertyTypeIdentifier }

func (p PropertyType) String() string {
	switch p {
	case PropertyTypeString:
		return "string"
	case PropertyTypeInteger:
		return "integer"
	case PropertyTypeBoolean:
		return "boolean"
	case PropertyTypeByteArray:
		return "byteArray"
	case PropertyTypeIdentifier:
		return "identifier"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// PropertyDefinition declares one property of a document type.
type PropertyDefinition struct {
	Name     string       `serialize:"true" json:"name"`
	Type     PropertyType `serialize:"true" json:"type"`
	Required bool         `serialize:"true" json:"required"`
	// MaxLength bounds strings (in bytes) and byte arrays. Zero means the
	// protocol-wide maximum applies.
	MaxLength uint32 `serialize:"true" json:"maxLength"`
}

type IndexProperty struct {
	Name      string `serialize:"true" json:"name"`
	Ascending bool   `serialize:"true" json:"ascending"`
}

type Index struct {
	Name       string          `serialize:"true" json:"name"`
	Properties []IndexProperty `serialize:"true" json:"properties"`
	Unique     bool            `serialize:"true" json:"unique"`
}

// DocumentType is the schema of one kind of document inside a contract.
type DocumentType struct {
	Name             string               `serialize:"true" json:"name"`
	Properties       []PropertyDefinition `serialize:"true" json:"properties"`
	Indices          []Index              `serialize:"true" json:"indices"`
	DocumentsMutable bool                 `serialize:"true" json:"documentsMutable"`
	CanBeDeleted     bool                 `serialize:"true" json:"canBeDeleted"`
	// SecurityLevelRequirement is the weakest key level allowed to sign
	// transitions touching documents of this type.
	SecurityLevelRequirement SecurityLevel `serialize:"true" json:"securityLevelRequirement"`
}

func (t *DocumentType) Property(name string) (*PropertyDefinition, bool) {
	for i := range t.Properties {
		if t.Properties[i].Name == name {
			return &t.Properties[i], true
		}
	}
	return nil, false
}

func (t *DocumentType) Index(name string) (*Index, bool) {
	for i := range t.Indices {
		if t.Indices[i].Name == name {
			return &t.Indices[i], true
		}
	}
	return nil, false
}

// UniqueIndices returns the indices whose key tuple must be unique among
// live documents of this type.
func (t *DocumentType) UniqueIndices() []Index {
	var unique []Index
	for _, index := range t.Indices {
		if index.Unique {
			unique = append(unique, index)
		}
	}
	return unique
}

// DataContract is a versioned set of document types owned by an identity.
type DataContract struct {
	ID            ids.ID         `serialize:"true" json:"id"`
	OwnerID       ids.ID         `serialize:"true" json:"ownerId"`
	Version       uint32         `serialize:"true" json:"version"`
	DocumentTypes []DocumentType `serialize:"true" json:"documentTypes"`
}

func (c *DataContract) DocumentType(name string) (*DocumentType, bool) {
	for i := range c.DocumentTypes {
		if c.DocumentTypes[i].Name == name {
			return &c.DocumentTypes[i], true
		}
	}
	return nil, false
}

// IsSystemField reports whether [name] is one of the document system fields.
func IsSystemField(name string) bool {
	switch name {
	case FieldID, FieldOwnerID, FieldCreatedAt, FieldUpdatedAt:
		return true
	default:
		return false
	}
}
