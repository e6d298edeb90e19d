// Package types defines the core data model shared by all rightsgraph
// packages: canonical catalog nodes, bitemporal n-ary hyperedges, embedding
// records, resolution results, and the error taxonomy used across package
// boundaries.
package types
