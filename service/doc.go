// Package service is the only write entry point into an instrument's
// book. It admits commands from any number of goroutines into a bounded
// queue drained by a single worker, so every add, cancel and market order
// is applied in one global sequence.
//
// Around each command the worker journals the request, applies it to the
// book, emits execution events and updates metrics.
package service
