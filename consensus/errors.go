// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensus defines the errors a state transition can be rejected
// with. They are data: they travel inside validation results and are
// returned to the submitter, they never abort a block.
package consensus

import (
	"fmt"
)

// Category groups codes by the pipeline phase that produces them.
type Category uint8

const (
	CategoryBasic Category = iota
	CategorySignature
	CategoryFee
	CategoryState
)

func (c Category) String() string {
	switch c {
	case CategoryBasic:
		return "basic"
	case CategorySignature:
		return "signature"
	case CategoryFee:
		return "fee"
	case CategoryState:
		return "state"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// Code is the stable numeric identifier of a consensus error.
type Code uint32

// Basic errors: malformed input, detected without reading state.
const (
	CodeProtocolVersionParsing Code = 1000 + iota
	CodeSerializedObjectParsing
	CodeUnsupportedStructureVersion
	CodeStateTransitionMaxSizeExceeded
	CodeInvalidIdentifier
	CodeInvalidIdentityPublicKeyData
	CodeInvalidIdentityPublicKeySecurityLevel
	CodeDuplicatedIdentityPublicKeyID
	CodeDuplicatedIdentityPublicKey
	CodeMissingMasterPublicKey
	CodeMaxIdentityPublicKeyLimitReached
	CodeInvalidAssetLockProofValue
	CodeInvalidCreditAmount
	CodeInvalidDataContractID
	CodeInvalidDataContractVersion
	CodeInvalidDocumentType
	CodeInvalidDocumentTransitionID
	CodeDuplicateDocumentTransition
	CodeMissingDocumentTransitions
	CodeMaxDocumentsTransitionsExceeded
	CodeInvalidDocumentProperties
	CodeInvalidIndex
	CodeNotAllowedSystemProperty
	CodeInvalidVote
	CodeInvalidOutputScript
	CodeNotImplementedWithdrawalPooling
)

// Signature errors: the signer is unknown, unauthorized or the signature is wrong.
const (
	CodeMissingPublicKey Code = 2000 + iota
	CodePublicKeyIsDisabled
	CodeInvalidSignaturePublicKeySecurityLevel
	CodeInvalidSignaturePublicKeyPurpose
	CodeInvalidStateTransitionSignature
	CodeInvalidIdentityPublicKeyType
	CodeIdentityNotFoundForSignature
	CodeInvalidAssetLockSignature
)

// Fee errors.
const (
	CodeIdentityInsufficientBalance Code = 3000 + iota
	CodeBalanceIsNotEnough
)

// State errors: the transition conflicts with current state.
const (
	CodeIdentityNotFound Code = 4000 + iota
	CodeIdentityAlreadyExists
	CodeInvalidIdentityRevision
	CodeIdentityInsufficientTransferBalance
	CodeAssetLockOutPointAlreadyUsed
	CodeIdentityPublicKeyAlreadyExists
	CodeIdentityPublicKeyDisabledNotFound
	CodeMasterKeyCannotBeDisabled
	CodeDataContractAlreadyPresent
	CodeDataContractNotPresent
	CodeDataContractOwnerMismatch
	CodeIncompatibleDataContractUpdate
	CodeDocumentAlreadyPresent
	CodeDocumentNotFound
	CodeDocumentOwnerMismatch
	CodeDocumentNotMutable
	CodeDocumentNotDeletable
	CodeInvalidDocumentRevision
	CodeDuplicateUniqueIndex
	CodeDataTriggerCondition
	CodeMasternodeVotedTooManyTimes
	CodeRecipientIdentityNotFound
	CodeDocumentTypeNotPresent
)

// Error is implemented by every consensus error.
type Error interface {
	error
	Code() Code
	Category() Category
}

type baseError struct {
	code    Code
	message string
}

func (e *baseError) Error() string { return e.message }
func (e *baseError) Code() Code    { return e.code }

type BasicError struct{ baseError }

func (*BasicError) Category() Category { return CategoryBasic }

type SignatureError struct{ baseError }

func (*SignatureError) Category() Category { return CategorySignature }

type FeeError struct{ baseError }

func (*FeeError) Category() Category { return CategoryFee }

type StateError struct{ baseError }

func (*StateError) Category() Category { return CategoryState }

func NewBasicError(code Code, format string, args ...interface{}) *BasicError {
	return &BasicError{baseError{code: code, message: fmt.Sprintf(format, args...)}}
}

func NewSignatureError(code Code, format string, args ...interface{}) *SignatureError {
	return &SignatureError{baseError{code: code, message: fmt.Sprintf(format, args...)}}
}

func NewFeeError(code Code, format string, args ...interface{}) *FeeError {
	return &FeeError{baseError{code: code, message: fmt.Sprintf(format, args...)}}
}

func NewStateError(code Code, format string, args ...interface{}) *StateError {
	return &StateError{baseError{code: code, message: fmt.Sprintf(format, args...)}}
}

// InsufficientBalanceError is returned when the payer cannot cover the
// estimated fee. It carries the estimate for check-tx diagnostics.
type InsufficientBalanceError struct {
	FeeError
	Balance     uint64
	RequiredFee uint64
}

// NewInsufficientBalanceError builds the fee error for [balance] < [required].
func NewInsufficientBalanceError(identity fmt.Stringer, balance, required uint64) *InsufficientBalanceError {
	return &InsufficientBalanceError{
		FeeError: FeeError{baseError{
			code:    CodeIdentityInsufficientBalance,
			message: fmt.Sprintf("identity %s has balance %d, needs %d", identity, balance, required),
		}},
		Balance:     balance,
		RequiredFee: required,
	}
}
