// Package cmap provides a concurrent map split into independently
// locked shards.
//
// The coordinator keeps its live sessions in a Map and the memory
// storage backend keeps its blobs in one, so that admissions on
// different keys do not contend on a single lock.
package cmap
