/*
Package eth implements the per-peer side of block synchronization.

Every connected peer is driven by a Handler, which satisfies the Eth
capability set consumed by the sync strategy in internal/blocksync. The
strategy never talks to a peer directly: it reads the peer's SyncState and
SyncStatistics, and asks it to change state. The Handler turns its state into
requests on its own schedule:

	IDLE                  nothing is requested
	HASH_RETRIEVING       the peer is the master, headers are requested from
	                      the tip of the sync queue until the peer runs dry
	DONE_HASH_RETRIEVING  the master delivered everything it had
	BLOCK_RETRIEVING      headers are taken from the sync queue and their
	                      bodies requested from this peer

Requests carry an ID. A response to an ID that was never issued is a protocol
violation and gets the peer disconnected; a response to a request that was
revoked (state change) or timed out is silently discarded.

Message encoding and the transport are not part of this package. The Handler
hands typed messages to a Sender and receives typed messages through Receive.
*/
package eth
