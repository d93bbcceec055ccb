// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package version

// V2 strengthens check-tx with a dry-run state validation and lowers the
// price of processing.
func V2() *FeatureMatrix {
	m := V1()
	m.ProtocolVersion = 2
	m.Transitions = v1Transitions()
	m.Fees = v1Fees()
	m.Fees.StorageProcessingCreditPerByte = 360
	m.Fees.StorageSeekCost = 3000
	m.Limits = v1Limits()
	m.Limits.MaxTransitionsInDocumentsBatch = 20
	m.Execution.CheckTx = 1
	m.Documents.DataTriggers = 1
	return m
}
