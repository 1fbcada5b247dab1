/*
Package blocksync implements the long sync: the strategy catching the node up
with the network head by retrieving headers from a single master peer and
block bodies from the whole peer pool.

The LongSync strategy is a state machine over three phases. In
HASH_RETRIEVING a master peer is elected from the pool and asked to retrieve
headers into the queue. Once the queue is full, the master is done or it has
retrieved too many bunches without being done, the strategy broadcasts
BLOCK_RETRIEVING and every peer retrieves bodies for queued headers. When no
headers are left the strategy idles until the queue asks for more blocks.

The strategy only inspects pool and queue state and commands peers; all
network I/O happens in the peer handlers (see package eth). The Syncer
service drives the active strategy from a single goroutine, so ticks never
overlap, and hands over to another strategy once the node is near the head.
The Importer service moves contiguous blocks from the queue to the block
store.
*/
package blocksync
