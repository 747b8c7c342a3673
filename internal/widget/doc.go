/*
Package widget holds the widget-tree vocabulary shared by the sandbox and the host.

# Overview

A plugin never touches host memory. It asks the host to create nodes and gets
back integer IDs; every later mutation names nodes only by those IDs. The
host keeps the nodes in a Tree:

  - ID: process-unique, monotonically assigned per tree
  - Kind: closed enumeration, immutable after creation
  - Properties: ordered, typed values (function handle, string, number, bool)
  - Children: ordered child IDs, order preserved end to end

# Mutation

Every mutation is all-or-nothing. A call that names an unknown ID fails with
ErrNotFound and leaves the tree exactly as it was; a property batch with a
single rejected value applies nothing.

# Serialization

Tree.Snapshot materializes a nested Node for one root. Snapshots are deep
copies and may be handed to other goroutines.
*/
package widget
