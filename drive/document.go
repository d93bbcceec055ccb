// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package drive

import (
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/types"
)

var (
	_ DriveOperation = &InsertDocument{}
	_ DriveOperation = &ReplaceDocument{}
	_ DriveOperation = &DeleteDocument{}
)

// FetchDocument returns the document or database.ErrNotFound.
func (d *Drive) FetchDocument(db database.Database, contractID ids.ID, documentType string, documentID ids.ID) (*types.Document, error) {
	b, err := subtreeDB(SubtreeDocuments, db).Get(documentKey(contractID, documentType, documentID))
	if err != nil {
		return nil, err
	}
	doc := &types.Document{}
	if err := unmarshal(b, doc); err != nil {
		return nil, fmt.Errorf("%w: document %s: %v", ErrCorruptedState, documentID, err)
	}
	return doc, nil
}

// UniqueIndexConflict is a live document holding the same unique index tuple.
type UniqueIndexConflict struct {
	IndexName  string
	DocumentID ids.ID
}

// FindUniqueIndexConflicts returns, for every unique index of [docType], the
// live document other than [doc] that holds the same tuple. Indices where
// [doc] lacks one of the values are not checked.
func (d *Drive) FindUniqueIndexConflicts(
	db database.Database,
	docType *types.DocumentType,
	doc *types.Document,
	props types.Properties,
) ([]UniqueIndexConflict, error) {
	unique := subtreeDB(SubtreeUniqueIndices, db)
	var conflicts []UniqueIndexConflict
	for _, index := range docType.UniqueIndices() {
		index := index
		tuple, complete, err := doc.IndexKey(&index, props)
		if err != nil {
			return nil, err
		}
		if !complete {
			continue
		}
		owner, err := unique.Get(uniqueIndexKey(doc.DataContractID, doc.DocumentType, index.Name, tuple))
		switch {
		case err == database.ErrNotFound:
			continue
		case err != nil:
			return nil, err
		}
		ownerID, err := ids.ToID(owner)
		if err != nil {
			return nil, fmt.Errorf("%w: unique index %s: %v", ErrCorruptedState, index.Name, err)
		}
		if ownerID != doc.ID {
			conflicts = append(conflicts, UniqueIndexConflict{IndexName: index.Name, DocumentID: ownerID})
		}
	}
	return conflicts, nil
}

// uniqueIndexKeys returns the unique index entries [doc] occupies.
func uniqueIndexKeys(docType *types.DocumentType, doc *types.Document) ([][]byte, error) {
	props, err := types.DecodeProperties(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: document %s: %v", ErrCorruptedState, doc.ID, err)
	}
	var keys [][]byte
	for _, index := range docType.UniqueIndices() {
		index := index
		tuple, complete, err := doc.IndexKey(&index, props)
		if err != nil {
			return nil, err
		}
		if complete {
			keys = append(keys, uniqueIndexKey(doc.DataContractID, doc.DocumentType, index.Name, tuple))
		}
	}
	return keys, nil
}

func (c *opContext) putDocument(docType *types.DocumentType, doc *types.Document) error {
	b, err := marshal(doc)
	if err != nil {
		return err
	}
	if err := c.put(SubtreeDocuments, documentKey(doc.DataContractID, doc.DocumentType, doc.ID), b); err != nil {
		return err
	}
	keys, err := uniqueIndexKeys(docType, doc)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := c.put(SubtreeUniqueIndices, key, doc.ID[:]); err != nil {
			return err
		}
	}
	return nil
}

func (c *opContext) loadDocument(contractID ids.ID, documentType string, documentID ids.ID) (*types.Document, error) {
	b, err := c.get(SubtreeDocuments, documentKey(contractID, documentType, documentID))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: document %s missing", ErrCorruptedState, documentID)
	}
	doc := &types.Document{}
	if err := unmarshal(b, doc); err != nil {
		return nil, fmt.Errorf("%w: document %s: %v", ErrCorruptedState, documentID, err)
	}
	return doc, nil
}

func (c *opContext) removeUniqueEntries(docType *types.DocumentType, doc *types.Document) error {
	keys, err := uniqueIndexKeys(docType, doc)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := c.delete(SubtreeUniqueIndices, key); err != nil {
			return err
		}
	}
	return nil
}

// InsertDocument stores a new document and its unique index entries.
type InsertDocument struct {
	Document types.Document
	Type     types.DocumentType
}

func (o *InsertDocument) lower(c *opContext) error {
	return c.putDocument(&o.Type, &o.Document)
}

// ReplaceDocument swaps a stored document for its next revision.
type ReplaceDocument struct {
	Document types.Document
	Type     types.DocumentType
}

func (o *ReplaceDocument) lower(c *opContext) error {
	old, err := c.loadDocument(o.Document.DataContractID, o.Document.DocumentType, o.Document.ID)
	if err != nil {
		return err
	}
	if err := c.removeUniqueEntries(&o.Type, old); err != nil {
		return err
	}
	return c.putDocument(&o.Type, &o.Document)
}

type DeleteDocument struct {
	DataContractID ids.ID
	DocumentID     ids.ID
	Type           types.DocumentType
}

func (o *DeleteDocument) lower(c *opContext) error {
	old, err := c.loadDocument(o.DataContractID, o.Type.Name, o.DocumentID)
	if err != nil {
		return err
	}
	if err := c.removeUniqueEntries(&o.Type, old); err != nil {
		return err
	}
	return c.delete(SubtreeDocuments, documentKey(o.DataContractID, o.Type.Name, o.DocumentID))
}
