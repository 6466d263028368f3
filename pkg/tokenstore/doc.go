// Package tokenstore owns the session tokens issued by the account service,
// one per normalized account address, and the one-shot migrations that force
// previously stored tokens to be discarded.
//
// Every read runs the migration chain first. A migration that has not yet
// been applied for the account deletes the token and sets its flag; when any
// migration fires the read reports the token as absent. Flags are never
// unset, so each migration fires at most once per account.
package tokenstore
