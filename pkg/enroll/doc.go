// Package enroll binds an account to the account service by performing a
// signing handshake and exchanging the resulting proofs for a session token.
//
// An attempt walks Idle → Authenticating → ManifestFetch → Signing →
// TokenExchange and ends in Success or Error(kind). Accounts sign either
// with host-held keys after local authentication (software path) or on a
// hardware device (device path). Device failures are classified by package
// device and alerted directly; the attempt then ends with LedgerHandled so
// callers do not show a second alert.
//
// Only one attempt runs at a time: a call made while another is in flight
// returns a skipped result without side effects. Whatever the outcome, a
// best-effort status refresh follows every attempt.
package enroll
