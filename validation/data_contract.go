// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validation

import (
	"errors"
	"strings"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/transitionvm/actions"
	"github.com/ava-labs/transitionvm/consensus"
	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/types"
)

func dataContractCreateBasicV0(ctx *Context, t *transitions.DataContractCreateTransitionV0) consensus.SimpleValidationResult {
	contract := &t.DataContract
	result := invalid(validateContractSchema(ctx, contract)...)
	if expected := types.ContractID(contract.OwnerID, t.Entropy); contract.ID != expected {
		result.AddError(consensus.NewBasicError(
			consensus.CodeInvalidDataContractID, "data contract id %s should be %s", contract.ID, expected,
		))
	}
	if contract.Version != 1 {
		result.AddError(consensus.NewBasicError(
			consensus.CodeInvalidDataContractVersion, "new data contracts start at version 1, got %d", contract.Version,
		))
	}
	return result
}

func dataContractUpdateBasicV0(ctx *Context, t *transitions.DataContractUpdateTransitionV0) consensus.SimpleValidationResult {
	result := invalid(validateContractSchema(ctx, &t.DataContract)...)
	if t.DataContract.Version < 2 {
		result.AddError(consensus.NewBasicError(
			consensus.CodeInvalidDataContractVersion, "updated data contracts start at version 2, got %d", t.DataContract.Version,
		))
	}
	return result
}

func validateContractSchema(ctx *Context, contract *types.DataContract) []consensus.Error {
	limits := &ctx.Matrix.Limits
	if n := len(contract.DocumentTypes); n == 0 || n > int(limits.MaxDocumentTypes) {
		return []consensus.Error{consensus.NewBasicError(
			consensus.CodeInvalidDocumentType, "data contract defines %d document types, allowed 1 to %d", n, limits.MaxDocumentTypes,
		)}
	}
	var (
		errs  []consensus.Error
		names = make(map[string]struct{}, len(contract.DocumentTypes))
	)
	for i := range contract.DocumentTypes {
		docType := &contract.DocumentTypes[i]
		if docType.Name == "" || strings.HasPrefix(docType.Name, "$") {
			errs = append(errs, consensus.NewBasicError(consensus.CodeInvalidDocumentType, "invalid document type name %q", docType.Name))
			continue
		}
		if _, ok := names[docType.Name]; ok {
			errs = append(errs, consensus.NewBasicError(consensus.CodeInvalidDocumentType, "document type %q is defined twice", docType.Name))
			continue
		}
		names[docType.Name] = struct{}{}
		if !docType.SecurityLevelRequirement.Valid() {
			errs = append(errs, consensus.NewBasicError(
				consensus.CodeInvalidDocumentType, "document type %q has unknown security level requirement", docType.Name,
			))
		}
		errs = append(errs, validateProperties(ctx, docType)...)
		errs = append(errs, validateIndices(ctx, docType)...)
	}
	return errs
}

func validateProperties(ctx *Context, docType *types.DocumentType) []consensus.Error {
	limits := &ctx.Matrix.Limits
	if len(docType.Properties) > int(limits.MaxPropertiesPerDocumentType) {
		return []consensus.Error{consensus.NewBasicError(
			consensus.CodeInvalidDocumentProperties,
			"document type %q defines %d properties, limit is %d", docType.Name, len(docType.Properties), limits.MaxPropertiesPerDocumentType,
		)}
	}
	var (
		errs  []consensus.Error
		names = make(map[string]struct{}, len(docType.Properties))
	)
	for _, prop := range docType.Properties {
		switch _, dup := names[prop.Name]; {
		case strings.HasPrefix(prop.Name, "$"):
			errs = append(errs, consensus.NewBasicError(
				consensus.CodeNotAllowedSystemProperty, "document type %q: property %q is reserved", docType.Name, prop.Name,
			))
		case prop.Name == "" || dup:
			errs = append(errs, consensus.NewBasicError(
				consensus.CodeInvalidDocumentProperties, "document type %q: invalid or duplicate property %q", docType.Name, prop.Name,
			))
		case !prop.Type.Valid():
			errs = append(errs, consensus.NewBasicError(
				consensus.CodeInvalidDocumentProperties, "document type %q: property %q has unknown type", docType.Name, prop.Name,
			))
		case prop.MaxLength > limits.MaxFieldValueSize:
			errs = append(errs, consensus.NewBasicError(
				consensus.CodeInvalidDocumentProperties,
				"document type %q: property %q max length %d exceeds %d", docType.Name, prop.Name, prop.MaxLength, limits.MaxFieldValueSize,
			))
		}
		names[prop.Name] = struct{}{}
	}
	return errs
}

func validateIndices(ctx *Context, docType *types.DocumentType) []consensus.Error {
	limits := &ctx.Matrix.Limits
	if len(docType.Indices) > int(limits.MaxIndicesPerDocumentType) {
		return []consensus.Error{consensus.NewBasicError(
			consensus.CodeInvalidIndex,
			"document type %q defines %d indices, limit is %d", docType.Name, len(docType.Indices), limits.MaxIndicesPerDocumentType,
		)}
	}
	var (
		errs  []consensus.Error
		names = make(map[string]struct{}, len(docType.Indices))
	)
	for _, index := range docType.Indices {
		if _, dup := names[index.Name]; index.Name == "" || dup {
			errs = append(errs, consensus.NewBasicError(
				consensus.CodeInvalidIndex, "document type %q: invalid or duplicate index %q", docType.Name, index.Name,
			))
			continue
		}
		names[index.Name] = struct{}{}
		if n := len(index.Properties); n == 0 || n > int(limits.MaxIndexProperties) {
			errs = append(errs, consensus.NewBasicError(
				consensus.CodeInvalidIndex, "index %q has %d properties, allowed 1 to %d", index.Name, n, limits.MaxIndexProperties,
			))
			continue
		}
		seen := make(map[string]struct{}, len(index.Properties))
		for _, prop := range index.Properties {
			_, defined := docType.Property(prop.Name)
			_, dup := seen[prop.Name]
			if dup || (!defined && !types.IsSystemField(prop.Name)) {
				errs = append(errs, consensus.NewBasicError(
					consensus.CodeInvalidIndex, "index %q: unknown or repeated property %q", index.Name, prop.Name,
				))
			}
			seen[prop.Name] = struct{}{}
		}
	}
	return errs
}

func dataContractCreateStateV0(ctx *Context, t *transitions.DataContractCreateTransitionV0) (consensus.ValidationResult[transformFunc], error) {
	if err := ctx.chargeRead(); err != nil {
		return failed(err)
	}
	exists, err := ctx.Drive.ContractExists(ctx.DB, t.DataContract.ID)
	if err != nil {
		return failed(err)
	}
	if exists {
		return rejected(consensus.NewStateError(
			consensus.CodeDataContractAlreadyPresent, "data contract %s already exists", t.DataContract.ID,
		))
	}
	return valid(func() (actions.Action, error) {
		return actions.NewDataContractCreateAction(&t.DataContract)
	})
}

func dataContractUpdateStateV0(ctx *Context, t *transitions.DataContractUpdateTransitionV0) (consensus.ValidationResult[transformFunc], error) {
	next := &t.DataContract
	if err := ctx.chargeRead(); err != nil {
		return failed(err)
	}
	current, err := ctx.Drive.FetchContract(ctx.DB, next.ID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return rejected(consensus.NewStateError(
			consensus.CodeDataContractNotPresent, "data contract %s not found", next.ID,
		))
	case err != nil:
		return failed(err)
	}

	result := consensus.NewWithErrors[transformFunc]()
	if current.OwnerID != next.OwnerID {
		result.AddError(consensus.NewStateError(
			consensus.CodeDataContractOwnerMismatch, "data contract %s is owned by %s", next.ID, current.OwnerID,
		))
	}
	if next.Version != current.Version+1 {
		result.AddError(consensus.NewStateError(
			consensus.CodeInvalidDataContractVersion, "data contract %s is at version %d, update carries %d", next.ID, current.Version, next.Version,
		))
	}
	result.AddErrors(contractCompatibility(current, next)...)
	if !result.IsValid() {
		return result, nil
	}
	return valid(func() (actions.Action, error) {
		return actions.NewDataContractUpdateAction(next)
	})
}

// contractCompatibility lists the changes that would invalidate documents
// already stored under [current].
func contractCompatibility(current, next *types.DataContract) []consensus.Error {
	var errs []consensus.Error
	incompatible := func(format string, args ...interface{}) {
		errs = append(errs, consensus.NewStateError(consensus.CodeIncompatibleDataContractUpdate, format, args...))
	}
	for i := range current.DocumentTypes {
		old := &current.DocumentTypes[i]
		updated, ok := next.DocumentType(old.Name)
		if !ok {
			incompatible("document type %q was removed", old.Name)
			continue
		}
		if old.DocumentsMutable != updated.DocumentsMutable || old.CanBeDeleted != updated.CanBeDeleted ||
			old.SecurityLevelRequirement != updated.SecurityLevelRequirement {
			incompatible("document type %q changed its flags", old.Name)
		}
		if !sameIndices(old.Indices, updated.Indices) {
			incompatible("document type %q changed its indices", old.Name)
		}
		for _, prop := range old.Properties {
			p, ok := updated.Property(prop.Name)
			switch {
			case !ok:
				incompatible("document type %q removed property %q", old.Name, prop.Name)
			case p.Type != prop.Type:
				incompatible("document type %q changed the type of %q", old.Name, prop.Name)
			case p.Required && !prop.Required:
				incompatible("document type %q made %q required", old.Name, prop.Name)
			case narrowed(prop.MaxLength, p.MaxLength):
				incompatible("document type %q narrowed %q", old.Name, prop.Name)
			}
		}
		for _, prop := range updated.Properties {
			if _, existed := old.Property(prop.Name); !existed && prop.Required {
				incompatible("document type %q added required property %q", old.Name, prop.Name)
			}
		}
	}
	return errs
}

// narrowed reports whether a max length bound got stricter. Zero is the
// protocol-wide maximum.
func narrowed(old, updated uint32) bool {
	if updated == 0 {
		return false
	}
	return old == 0 || updated < old
}

func sameIndices(a, b []types.Index) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Unique != b[i].Unique || len(a[i].Properties) != len(b[i].Properties) {
			return false
		}
		for j := range a[i].Properties {
			if a[i].Properties[j] != b[i].Properties[j] {
				return false
			}
		}
	}
	return true
}
