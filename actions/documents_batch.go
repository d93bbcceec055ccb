// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/drive"
	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/types"
)

var _ Action = &DocumentsBatchAction{}

// DocumentOperation is one resolved document transition.
type DocumentOperation struct {
	Action   transitions.DocumentAction
	Document types.Document
	Type     types.DocumentType
}

// DocumentsBatchAction applies its documents in batch order.
type DocumentsBatchAction struct {
	OwnerID   ids.ID
	Documents []DocumentOperation
}

// NewDocumentOperation copies [doc] and [docType] into an owned operation.
func NewDocumentOperation(action transitions.DocumentAction, doc *types.Document, docType *types.DocumentType) (DocumentOperation, error) {
	ownedDoc, err := clone(doc)
	if err != nil {
		return DocumentOperation{}, err
	}
	ownedType, err := clone(docType)
	if err != nil {
		return DocumentOperation{}, err
	}
	return DocumentOperation{Action: action, Document: ownedDoc, Type: ownedType}, nil
}

func (*DocumentsBatchAction) Kind() types.TransitionKind { return types.KindDocumentsBatch }

func (a *DocumentsBatchAction) Operations() []drive.DriveOperation {
	ops := make([]drive.DriveOperation, 0, len(a.Documents))
	for _, d := range a.Documents {
		switch d.Action {
		case transitions.DocumentActionCreate:
			ops = append(ops, &drive.InsertDocument{Document: d.Document, Type: d.Type})
		case transitions.DocumentActionReplace:
			ops = append(ops, &drive.ReplaceDocument{Document: d.Document, Type: d.Type})
		case transitions.DocumentActionDelete:
			ops = append(ops, &drive.DeleteDocument{
				DataContractID: d.Document.DataContractID,
				DocumentID:     d.Document.ID,
				Type:           d.Type,
			})
		}
	}
	return ops
}
