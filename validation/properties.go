// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validation

import (
	"strings"

	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/ava-labs/transitionvm/consensus"
	"github.com/ava-labs/transitionvm/types"
)

// decodeDocumentData checks what can be checked about document properties
// without the contract: the encoding, the total size and reserved names.
func decodeDocumentData(ctx *Context, data []byte) (types.Properties, []consensus.Error) {
	limits := &ctx.Matrix.Limits
	if len(data) > int(limits.MaxDocumentSize) {
		return nil, []consensus.Error{consensus.NewBasicError(
			consensus.CodeInvalidDocumentProperties, "document of %d bytes exceeds %d", len(data), limits.MaxDocumentSize,
		)}
	}
	props, err := types.DecodeProperties(data)
	if err != nil {
		return nil, []consensus.Error{consensus.NewBasicError(
			consensus.CodeInvalidDocumentProperties, "cannot decode document properties: %v", err,
		)}
	}
	var errs []consensus.Error
	for name := range props {
		if strings.HasPrefix(name, "$") {
			errs = append(errs, consensus.NewBasicError(
				consensus.CodeNotAllowedSystemProperty, "property %q is reserved", name,
			))
		}
	}
	return props, errs
}

// validateDocumentProperties checks [props] against the schema of [docType].
func validateDocumentProperties(ctx *Context, docType *types.DocumentType, props types.Properties) []consensus.Error {
	var errs []consensus.Error
	for name, value := range props {
		def, ok := docType.Property(name)
		if !ok {
			errs = append(errs, consensus.NewStateError(
				consensus.CodeInvalidDocumentProperties, "document type %q has no property %q", docType.Name, name,
			))
			continue
		}
		if err := checkPropertyValue(ctx, def, value); err != nil {
			errs = append(errs, err)
		}
	}
	for _, def := range docType.Properties {
		if _, ok := props[def.Name]; def.Required && !ok {
			errs = append(errs, consensus.NewStateError(
				consensus.CodeInvalidDocumentProperties, "document type %q requires property %q", docType.Name, def.Name,
			))
		}
	}
	return errs
}

func checkPropertyValue(ctx *Context, def *types.PropertyDefinition, value interface{}) consensus.Error {
	maxLen := ctx.Matrix.Limits.MaxFieldValueSize
	if def.MaxLength != 0 && def.MaxLength < maxLen {
		maxLen = def.MaxLength
	}
	var (
		ok     bool
		length = -1
	)
	switch def.Type {
	case types.PropertyTypeString:
		var s string
		s, ok = value.(string)
		length = len(s)
	case types.PropertyTypeInteger:
		switch value.(type) {
		case uint64, int64:
			ok = true
		}
	case types.PropertyTypeBoolean:
		_, ok = value.(bool)
	case types.PropertyTypeByteArray:
		var b []byte
		b, ok = value.([]byte)
		length = len(b)
	case types.PropertyTypeIdentifier:
		var b []byte
		b, ok = value.([]byte)
		ok = ok && len(b) == hashing.HashLen
	}
	if !ok {
		return consensus.NewStateError(
			consensus.CodeInvalidDocumentProperties, "property %q must be of type %s", def.Name, def.Type,
		)
	}
	if length > int(maxLen) {
		return consensus.NewStateError(
			consensus.CodeInvalidDocumentProperties, "property %q is %d bytes, limit is %d", def.Name, length, maxLen,
		)
	}
	return nil
}
