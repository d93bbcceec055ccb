// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validation

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/transitionvm/consensus"
	"github.com/ava-labs/transitionvm/transitions"
	"github.com/ava-labs/transitionvm/types"
	"github.com/ava-labs/transitionvm/version"
)

// Properties of a contact request document.
const (
	ContactRequestType          = "contactRequest"
	ContactRequestToUserID      = "toUserId"
	ContactRequestCoreHeightKey = "coreHeightCreatedAt"
)

// Trigger runs extra checks on a document of a system contract after its
// transition passed every generic check.
type Trigger func(ctx *Context, owner ids.ID, doc *types.Document, props types.Properties) ([]consensus.Error, error)

// TriggerBinding attaches a trigger to one action on one document type.
type TriggerBinding struct {
	DataContractID ids.ID
	DocumentType   string
	Action         transitions.DocumentAction
	Trigger        Trigger
}

// Bindings returns the triggers active under [triggersVersion] for the
// contact request contract [contactContractID].
func Bindings(triggersVersion version.FeatureVersion, contactContractID ids.ID) ([]TriggerBinding, error) {
	bind := func(action transitions.DocumentAction, trigger Trigger) TriggerBinding {
		return TriggerBinding{
			DataContractID: contactContractID,
			DocumentType:   ContactRequestType,
			Action:         action,
			Trigger:        trigger,
		}
	}
	switch triggersVersion {
	case 0:
		return []TriggerBinding{
			bind(transitions.DocumentActionCreate, contactRequestTrigger),
		}, nil
	case 1:
		return []TriggerBinding{
			bind(transitions.DocumentActionCreate, contactRequestTrigger),
			bind(transitions.DocumentActionReplace, rejectTrigger),
			bind(transitions.DocumentActionDelete, rejectTrigger),
		}, nil
	default:
		return nil, version.Mismatch("data_triggers", triggersVersion, 0, 1)
	}
}

func runTriggers(ctx *Context, owner ids.ID, action transitions.DocumentAction, doc *types.Document, props types.Properties) ([]consensus.Error, error) {
	var errs []consensus.Error
	for _, binding := range ctx.Triggers {
		if binding.DataContractID != doc.DataContractID || binding.DocumentType != doc.DocumentType || binding.Action != action {
			continue
		}
		triggerErrs, err := binding.Trigger(ctx, owner, doc, props)
		if err != nil {
			return nil, err
		}
		errs = append(errs, triggerErrs...)
	}
	return errs, nil
}

func triggerError(doc *types.Document, format string, args ...interface{}) []consensus.Error {
	return []consensus.Error{consensus.NewStateError(
		consensus.CodeDataTriggerCondition, "document %s: "+format, append([]interface{}{doc.ID}, args...)...,
	)}
}

func contactRequestTrigger(ctx *Context, owner ids.ID, doc *types.Document, props types.Properties) ([]consensus.Error, error) {
	raw, _ := props[ContactRequestToUserID].([]byte)
	toUserID, err := ids.ToID(raw)
	if err != nil {
		return triggerError(doc, "%s is not an identifier", ContactRequestToUserID), nil
	}
	if toUserID == owner {
		return triggerError(doc, "identity %s cannot send a contact request to itself", owner), nil
	}

	if coreHeight, ok := props[ContactRequestCoreHeightKey].(uint64); ok {
		window := uint64(ctx.Matrix.Limits.ContactRequestCoreHeightWindow)
		locked := uint64(ctx.BlockInfo.CoreChainLockedHeight)
		if coreHeight+window < locked || coreHeight > locked+window {
			return triggerError(doc, "core height %d is more than %d away from %d", coreHeight, window, locked), nil
		}
	}

	if err := ctx.chargeRead(); err != nil {
		return nil, err
	}
	exists, err := ctx.Drive.IdentityExists(ctx.DB, toUserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return triggerError(doc, "identity %s not found", toUserID), nil
	}
	return nil, nil
}

func rejectTrigger(_ *Context, _ ids.ID, doc *types.Document, _ types.Properties) ([]consensus.Error, error) {
	return triggerError(doc, "%s documents cannot be changed once created", doc.DocumentType), nil
}
