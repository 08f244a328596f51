// Package entity defines the logical identity and attribute types shared by
// the ledger, the change detector, and the pipeline.
//
// A logical key is (source, entity type, entity id) and names a real-world
// entity independent of its version history. Attribute values are the
// observed state of that entity at one point in time; their content hash is
// the ledger's change signal.
package entity
