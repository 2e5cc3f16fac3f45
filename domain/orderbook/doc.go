// Package orderbook implements the matching core of a single-instrument
// limit order book: resting limit orders, cancellation, and market orders
// swept against the opposite side in price-time priority.
//
// The book is single-writer. It performs no locking and never blocks;
// callers that need concurrent submission serialize commands through one
// worker per instrument (see package service).
//
// Best prices are discovered through a max-heap of bid prices and a
// min-heap of ask prices. Heap entries are never removed on cancel or fill;
// a price is trusted only while its price level is non-empty, and stale
// tops are discarded on the next read.
package orderbook
