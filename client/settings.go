// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import "time"

const (
	DefaultTimeout          = 10 * time.Second
	DefaultRetries          = 5
	DefaultBanFailedAddress = true
)

// RequestSettings is one layer of request settings. Unset fields are taken
// from the layer below.
type RequestSettings struct {
	Timeout          *time.Duration
	Retries          *int
	BanFailedAddress *bool
}

func (s RequestSettings) WithTimeout(timeout time.Duration) RequestSettings {
	s.Timeout = &timeout
	return s
}

func (s RequestSettings) WithRetries(retries int) RequestSettings {
	s.Retries = &retries
	return s
}

func (s RequestSettings) WithBanFailedAddress(ban bool) RequestSettings {
	s.BanFailedAddress = &ban
	return s
}

// Override returns [s] with every field set in [o] replaced.
func (s RequestSettings) Override(o RequestSettings) RequestSettings {
	if o.Timeout != nil {
		s.Timeout = o.Timeout
	}
	if o.Retries != nil {
		s.Retries = o.Retries
	}
	if o.BanFailedAddress != nil {
		s.BanFailedAddress = o.BanFailedAddress
	}
	return s
}

// Finalize fills the unset fields with the defaults.
func (s RequestSettings) Finalize() AppliedRequestSettings {
	applied := AppliedRequestSettings{
		Timeout:          DefaultTimeout,
		Retries:          DefaultRetries,
		BanFailedAddress: DefaultBanFailedAddress,
	}
	if s.Timeout != nil {
		applied.Timeout = *s.Timeout
	}
	if s.Retries != nil && *s.Retries >= 0 {
		applied.Retries = *s.Retries
	}
	if s.BanFailedAddress != nil {
		applied.BanFailedAddress = *s.BanFailedAddress
	}
	return applied
}

// AppliedRequestSettings are the settings a request is executed with.
type AppliedRequestSettings struct {
	Timeout          time.Duration
	Retries          int
	BanFailedAddress bool
}
