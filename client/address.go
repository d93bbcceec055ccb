// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
)

var (
	ErrAddressNotFound = errors.New("address not found")

	errInvalidURI = errors.New("invalid node uri")
)

// Address is a node endpoint together with its ban record. Addresses are
// values: the pool replaces its copy whenever the ban record changes.
type Address struct {
	uri         string
	banCount    int
	bannedUntil time.Time
}

// ParseAddress validates [uri]. Only absolute http and https URIs are
// accepted.
func ParseAddress(uri string) (Address, error) {
	uri = strings.TrimSpace(uri)
	parsed, err := url.Parse(uri)
	if err != nil {
		return Address{}, fmt.Errorf("%w %q: %v", errInvalidURI, uri, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Address{}, fmt.Errorf("%w %q: scheme must be http or https", errInvalidURI, uri)
	}
	if parsed.Host == "" {
		return Address{}, fmt.Errorf("%w %q: missing host", errInvalidURI, uri)
	}
	return Address{uri: parsed.String()}, nil
}

func (a Address) URI() string { return a.uri }

func (a Address) String() string { return a.uri }

func (a Address) BanCount() int { return a.banCount }

// BannedUntil is the zero time for an address that was never banned.
func (a Address) BannedUntil() time.Time { return a.bannedUntil }

// IsBanned reports whether the address has a ban record. The ban may have
// expired already; see [IsLive].
func (a Address) IsBanned() bool { return a.banCount > 0 }

// IsLive reports whether requests may be sent to the address at [now].
func (a Address) IsLive(now time.Time) bool {
	return a.bannedUntil.IsZero() || a.bannedUntil.Before(now)
}

// banned returns the address banned for base*e^banCount from [now].
func (a Address) banned(base time.Duration, now time.Time) Address {
	period := time.Duration(float64(base) * math.Exp(float64(a.banCount)))
	a.bannedUntil = now.Add(period)
	a.banCount++
	return a
}

func (a Address) unbanned() Address {
	a.banCount = 0
	a.bannedUntil = time.Time{}
	return a
}
