// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

package http

import "errors"

// Sentinel errors used when parsing request envelopes. Callers can match
// against them with [errors.Is].
var (
	// ErrInvalidAuthorizationHeader is returned when the "Authorization"
	// header is present but carries neither valid basic credentials nor a
	// bearer token.
	ErrInvalidAuthorizationHeader = errors.New("invalid `Authorization` header")

	// ErrInvalidCredentials is returned when presented credentials do not
	// match a known account.
	ErrInvalidCredentials = errors.New("invalid login/password")

	// ErrBadIdentifier is returned when a path identifier segment is empty.
	ErrBadIdentifier = errors.New("bad row identifier")

	// ErrUnknownFormat is returned when a path carries a representation
	// suffix other than .xml, .json, or .csv.
	ErrUnknownFormat = errors.New("unknown representation format")

	// ErrMissingPeerHeader is returned when a sync call arrives without the
	// repository identity header.
	ErrMissingPeerHeader = errors.New("missing repository header")
)
