// Package ledger implements the temporal (SCD Type 2) record store.
//
// Every observation of an entity either inserts the first row for its key,
// supersedes the current row with a new one, or is a no-op when the content
// hash is unchanged. Rows are never physically deleted or rewritten except to
// be closed at the instant a superseding row is inserted, so the full history
// of each key is preserved and queryable as of any timestamp.
//
// The single-current invariant is enforced by the database itself via a
// partial unique index, not just by application logic: a concurrency bug
// surfaces as a constraint violation instead of silent corruption.
package ledger
