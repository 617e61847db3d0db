// Package graph builds and queries the relationship graph: typed
// directed edges between files, symbols, and modules, with transitive
// dependency traversal, shortest-path search, and structural statistics.
package graph
