// Package gate derives slices of cache state for consumers and delivers a
// slice only when it differs from the previous one.
//
// A slice combines two parts: the result of a Select function over the
// store's non-cache state (Meta), and the data of an optional local read
// document evaluated against the entity table. Select results must be maps;
// the read data is merged over them.
//
// On every store notification the gate recomputes its slice and compares it
// with IsSliceEqual: a shallow comparison in which nested maps and slices
// match only by identity. Read values that are deeply equal to the previous
// slice's values are carried over from it, so a dispatch that leaves the
// read data unchanged does not cause a delivery.
package gate
