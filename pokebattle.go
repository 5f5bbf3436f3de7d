/*
Package pokebattle implements a peer-to-peer battle session
protocol on top of raw UDP datagrams.

The reliability layer adds at-least-once delivery: every
non-acknowledgment message gets a per-sender sequence number, is
retransmitted on timeout up to a retry ceiling and is acknowledged
by the receiver. The peer node deduplicates inbound sequence
numbers so the application sees each message at most once. On top
of that, the battle state machine lets two independently computing
peers exchange a move, compute the damage on both sides, compare
the results and force-resolve any disagreement.

All exported types in this package are safe for concurrent use
unless noted otherwise.
*/
package pokebattle
