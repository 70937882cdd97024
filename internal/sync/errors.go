package sync

import "errors"

var (
	// ErrUnknownPeer indicates a repository uuid with no registration.
	ErrUnknownPeer = errors.New("unknown peer repository")
	// ErrPushNotAccepted indicates an inbound push to a peer registered
	// with accept_push disabled.
	ErrPushNotAccepted = errors.New("peer does not accept push")
	// ErrTaskAlreadyRunning indicates a re-entrant run of a task whose
	// running flag is still set.
	ErrTaskAlreadyRunning = errors.New("task is already running")
	// ErrPeerUnavailable indicates a transient transport failure talking to
	// a peer. Runs failing with it are retried with backoff.
	ErrPeerUnavailable = errors.New("peer unavailable")
	// ErrPeerRejected indicates a permanent peer-side failure
	// (authentication, schema mismatch, persistent 4xx). The task is marked
	// errored and unscheduled.
	ErrPeerRejected = errors.New("peer rejected request")
)
