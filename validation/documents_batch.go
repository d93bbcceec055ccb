// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validation

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/actions"
	"github.com/ava-labs/transitionvm/consensus"
	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/version"
)

type documentRef struct {
	contractID   ids.ID
	documentType string
	id           ids.ID
}

func refOf(base *transitions.DocumentBaseTransition) documentRef {
	return documentRef{contractID: base.DataContractID, documentType: base.DocumentType, id: base.ID}
}

func documentsBatchBasicV0(ctx *Context, t *transitions.DocumentsBatchTransitionV0) consensus.SimpleValidationResult {
	limit := ctx.Matrix.Limits.MaxTransitionsInDocumentsBatch
	switch n := len(t.Transitions); {
	case n == 0:
		return invalid(consensus.NewBasicError(consensus.CodeMissingDocumentTransitions, "documents batch is empty"))
	case n > int(limit):
		return invalid(consensus.NewBasicError(
			consensus.CodeMaxDocumentsTransitionsExceeded, "documents batch holds %d transitions, limit is %d", n, limit,
		))
	}

	result := consensus.NewSimple()
	seen := make(map[documentRef]struct{}, len(t.Transitions))
	for _, dt := range t.Transitions {
		base := dt.BaseTransition()
		if base.DocumentType == "" {
			result.AddError(consensus.NewBasicError(consensus.CodeInvalidDocumentType, "document %s has no type", base.ID))
			continue
		}
		ref := refOf(base)
		if _, dup := seen[ref]; dup {
			result.AddError(consensus.NewBasicError(
				consensus.CodeDuplicateDocumentTransition, "document %s appears twice in the batch", base.ID,
			))
		}
		seen[ref] = struct{}{}

		switch d := dt.(type) {
		case *transitions.DocumentCreateTransition:
			expected := types.DocumentID(base.DataContractID, t.Owner, base.DocumentType, d.Entropy)
			if base.ID != expected {
				result.AddError(consensus.NewBasicError(
					consensus.CodeInvalidDocumentTransitionID, "document id %s should be %s", base.ID, expected,
				))
			}
			_, errs := decodeDocumentData(ctx, d.Data)
			result.AddErrors(errs...)
		case *transitions.DocumentReplaceTransition:
			if d.Revision < 2 {
				result.AddError(consensus.NewBasicError(
					consensus.CodeInvalidDocumentTransitionID, "document %s replaced with revision %d", base.ID, d.Revision,
				))
			}
			_, errs := decodeDocumentData(ctx, d.Data)
			result.AddErrors(errs...)
		}
	}
	return result
}

// batchState tracks what earlier transitions of a batch did, so later ones
// are checked against the batch as applied so far.
type batchState struct {
	contracts map[ids.ID]*types.DataContract
	// claimed maps a unique index entry to the document holding it after the
	// transitions seen so far.
	claimed map[string]ids.ID
	// released are entries freed by an earlier replace or delete.
	released map[string]struct{}
}

func uniqueEntry(doc *types.Document, indexName string, tuple []byte) string {
	return string(doc.DataContractID[:]) + doc.DocumentType + "\x00" + indexName + "\x00" + string(tuple)
}

func (b *batchState) contract(ctx *Context, id ids.ID) (*types.DataContract, error) {
	if contract, ok := b.contracts[id]; ok {
		return contract, nil
	}
	if err := ctx.chargeRead(); err != nil {
		return nil, err
	}
	contract, err := ctx.Drive.FetchContract(ctx.DB, id)
	if err != nil {
		return nil, err
	}
	b.contracts[id] = contract
	return contract, nil
}

func (b *batchState) release(docType *types.DocumentType, doc *types.Document) error {
	props, err := types.DecodeProperties(doc.Data)
	if err != nil {
		return err
	}
	for _, index := range docType.UniqueIndices() {
		index := index
		tuple, complete, err := doc.IndexKey(&index, props)
		if err != nil {
			return err
		}
		if !complete {
			continue
		}
		entry := uniqueEntry(doc, index.Name, tuple)
		if b.claimed[entry] == doc.ID {
			delete(b.claimed, entry)
		}
		b.released[entry] = struct{}{}
	}
	return nil
}

func (b *batchState) claim(ctx *Context, docType *types.DocumentType, doc *types.Document, props types.Properties) ([]consensus.Error, error) {
	switch ctx.Matrix.Documents.BatchUniqueness {
	case 0:
	default:
		return nil, version.Mismatch("validate_uniqueness_of_data", ctx.Matrix.Documents.BatchUniqueness, 0)
	}
	if err := ctx.chargeRead(); err != nil {
		return nil, err
	}
	conflicts, err := ctx.Drive.FindUniqueIndexConflicts(ctx.DB, docType, doc, props)
	if err != nil {
		return nil, err
	}
	stored := make(map[string]ids.ID, len(conflicts))
	for _, c := range conflicts {
		stored[c.IndexName] = c.DocumentID
	}

	var errs []consensus.Error
	for _, index := range docType.UniqueIndices() {
		index := index
		tuple, complete, err := doc.IndexKey(&index, props)
		if err != nil {
			return nil, err
		}
		if !complete {
			continue
		}
		entry := uniqueEntry(doc, index.Name, tuple)
		holder, claimed := b.claimed[entry]
		_, released := b.released[entry]
		storedHolder, inStore := stored[index.Name]
		switch {
		case claimed && holder != doc.ID:
		case !claimed && inStore && !released:
			holder = storedHolder
		default:
			b.claimed[entry] = doc.ID
			continue
		}
		errs = append(errs, consensus.NewStateError(
			consensus.CodeDuplicateUniqueIndex,
			"document %s duplicates unique index %q of document %s", doc.ID, index.Name, holder,
		))
	}
	return errs, nil
}

func documentsBatchStateV0(ctx *Context, t *transitions.DocumentsBatchTransitionV0, signer *types.Identity) (consensus.ValidationResult[transformFunc], error) {
	signingKey, ok := signer.PublicKey(t.KeyID)
	if !ok {
		return failed(fmt.Errorf("%w: signing key %d vanished", ErrCorruptedCodeExecution, t.KeyID))
	}
	batch := &batchState{
		contracts: make(map[ids.ID]*types.DataContract),
		claimed:   make(map[string]ids.ID),
		released:  make(map[string]struct{}),
	}
	result := consensus.NewWithErrors[transformFunc]()
	ops := make([]actionInput, 0, len(t.Transitions))
	for _, dt := range t.Transitions {
		input, errs, err := documentTransitionState(ctx, batch, t.Owner, signingKey, dt)
		if err != nil {
			return failed(err)
		}
		if len(errs) > 0 {
			result.AddErrors(errs...)
			continue
		}
		ops = append(ops, input)
	}
	if !result.IsValid() {
		return result, nil
	}
	return valid(func() (actions.Action, error) {
		action := &actions.DocumentsBatchAction{OwnerID: t.Owner}
		for i := range ops {
			op, err := actions.NewDocumentOperation(ops[i].action, ops[i].doc, ops[i].docType)
			if err != nil {
				return nil, err
			}
			action.Documents = append(action.Documents, op)
		}
		return action, nil
	})
}

type actionInput struct {
	action  transitions.DocumentAction
	doc     *types.Document
	docType *types.DocumentType
}

func documentTransitionState(
	ctx *Context,
	batch *batchState,
	owner ids.ID,
	signingKey *types.IdentityPublicKey,
	dt transitions.DocumentTransition,
) (actionInput, []consensus.Error, error) {
	base := dt.BaseTransition()
	contract, err := batch.contract(ctx, base.DataContractID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return actionInput{}, []consensus.Error{consensus.NewStateError(
			consensus.CodeDataContractNotPresent, "data contract %s not found", base.DataContractID,
		)}, nil
	case err != nil:
		return actionInput{}, nil, err
	}
	docType, ok := contract.DocumentType(base.DocumentType)
	if !ok {
		return actionInput{}, []consensus.Error{consensus.NewStateError(
			consensus.CodeDocumentTypeNotPresent, "data contract %s has no document type %q", contract.ID, base.DocumentType,
		)}, nil
	}
	if signingKey.SecurityLevel > docType.SecurityLevelRequirement {
		return actionInput{}, []consensus.Error{consensus.NewSignatureError(
			consensus.CodeInvalidSignaturePublicKeySecurityLevel,
			"document type %q requires %s keys, signed with %s", docType.Name, docType.SecurityLevelRequirement, signingKey.SecurityLevel,
		)}, nil
	}

	var (
		input = actionInput{action: dt.Action(), docType: docType}
		props types.Properties
		errs  []consensus.Error
	)
	switch d := dt.(type) {
	case *transitions.DocumentCreateTransition:
		input.doc, props, errs, err = createDocumentState(ctx, owner, docType, d)
	case *transitions.DocumentReplaceTransition:
		input.doc, props, errs, err = replaceDocumentState(ctx, batch, owner, docType, d)
	case *transitions.DocumentDeleteTransition:
		input.doc, errs, err = deleteDocumentState(ctx, batch, owner, docType, d)
	default:
		return actionInput{}, nil, fmt.Errorf("%w: document transition %T", ErrCorruptedCodeExecution, dt)
	}
	if err != nil || len(errs) > 0 {
		return actionInput{}, errs, err
	}

	if dt.Action() != transitions.DocumentActionDelete {
		errs, err = batch.claim(ctx, docType, input.doc, props)
		if err != nil || len(errs) > 0 {
			return actionInput{}, errs, err
		}
	}
	errs, err = runTriggers(ctx, owner, dt.Action(), input.doc, props)
	if err != nil || len(errs) > 0 {
		return actionInput{}, errs, err
	}
	return input, nil, nil
}

func createDocumentState(
	ctx *Context,
	owner ids.ID,
	docType *types.DocumentType,
	d *transitions.DocumentCreateTransition,
) (*types.Document, types.Properties, []consensus.Error, error) {
	props, err := types.DecodeProperties(d.Data)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrCorruptedCodeExecution, err)
	}
	if errs := validateDocumentProperties(ctx, docType, props); len(errs) > 0 {
		return nil, nil, errs, nil
	}
	if err := ctx.chargeRead(); err != nil {
		return nil, nil, nil, err
	}
	_, err = ctx.Drive.FetchDocument(ctx.DB, d.Base.DataContractID, d.Base.DocumentType, d.Base.ID)
	switch {
	case err == nil:
		return nil, nil, []consensus.Error{consensus.NewStateError(
			consensus.CodeDocumentAlreadyPresent, "document %s already exists", d.Base.ID,
		)}, nil
	case !errors.Is(err, database.ErrNotFound):
		return nil, nil, nil, err
	}
	now := ctx.BlockInfo.TimeMs
	return &types.Document{
		ID:             d.Base.ID,
		OwnerID:        owner,
		DataContractID: d.Base.DataContractID,
		DocumentType:   d.Base.DocumentType,
		Revision:       1,
		CreatedAt:      now,
		UpdatedAt:      now,
		Data:           d.Data,
	}, props, nil, nil
}

// storedDocument loads the document a replace or delete targets.
func storedDocument(ctx *Context, owner ids.ID, base *transitions.DocumentBaseTransition) (*types.Document, []consensus.Error, error) {
	if err := ctx.chargeRead(); err != nil {
		return nil, nil, err
	}
	doc, err := ctx.Drive.FetchDocument(ctx.DB, base.DataContractID, base.DocumentType, base.ID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, []consensus.Error{consensus.NewStateError(
			consensus.CodeDocumentNotFound, "document %s not found", base.ID,
		)}, nil
	case err != nil:
		return nil, nil, err
	}
	if doc.OwnerID != owner {
		return nil, []consensus.Error{consensus.NewStateError(
			consensus.CodeDocumentOwnerMismatch, "document %s is owned by %s", base.ID, doc.OwnerID,
		)}, nil
	}
	return doc, nil, nil
}

func replaceDocumentState(
	ctx *Context,
	batch *batchState,
	owner ids.ID,
	docType *types.DocumentType,
	d *transitions.DocumentReplaceTransition,
) (*types.Document, types.Properties, []consensus.Error, error) {
	if !docType.DocumentsMutable {
		return nil, nil, []consensus.Error{consensus.NewStateError(
			consensus.CodeDocumentNotMutable, "documents of type %q are immutable", docType.Name,
		)}, nil
	}
	props, err := types.DecodeProperties(d.Data)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrCorruptedCodeExecution, err)
	}
	if errs := validateDocumentProperties(ctx, docType, props); len(errs) > 0 {
		return nil, nil, errs, nil
	}
	old, errs, err := storedDocument(ctx, owner, &d.Base)
	if err != nil || len(errs) > 0 {
		return nil, nil, errs, err
	}
	if d.Revision != old.Revision+1 {
		return nil, nil, []consensus.Error{consensus.NewStateError(
			consensus.CodeInvalidDocumentRevision, "document %s is at revision %d, replace carries %d", old.ID, old.Revision, d.Revision,
		)}, nil
	}
	if err := batch.release(docType, old); err != nil {
		return nil, nil, nil, err
	}
	next := *old
	next.Revision = d.Revision
	next.UpdatedAt = ctx.BlockInfo.TimeMs
	next.Data = d.Data
	return &next, props, nil, nil
}

func deleteDocumentState(
	ctx *Context,
	batch *batchState,
	owner ids.ID,
	docType *types.DocumentType,
	d *transitions.DocumentDeleteTransition,
) (*types.Document, []consensus.Error, error) {
	if !docType.CanBeDeleted {
		return nil, []consensus.Error{consensus.NewStateError(
			consensus.CodeDocumentNotDeletable, "documents of type %q cannot be deleted", docType.Name,
		)}, nil
	}
	old, errs, err := storedDocument(ctx, owner, &d.Base)
	if err != nil || len(errs) > 0 {
		return nil, errs, err
	}
	if err := batch.release(docType, old); err != nil {
		return nil, nil, err
	}
	return old, nil, nil
}
