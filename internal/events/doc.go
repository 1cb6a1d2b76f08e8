// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

/*
Package events carries domain events between the core and its consumers.

Every state-changing core operation publishes a models.AuditEvent. The Bus is
an in-process Watermill GoChannel with a router in front of its subscribers:

	Publisher (core, gate, moderation)
	    |
	    v
	GoChannel topic "artswap.events"
	    |
	    v
	Router (Recoverer -> Retry)
	    |
	    +--> audit consumer -> store.RecordEvent

Events published while no handler is subscribed are dropped. Handlers must
be registered with Subscribe before Run.

Publishing never fails a user-facing operation: callers log the error and
continue.
*/
package events
