// Package connections persists the wallet connection records an account has
// with embedded apps.
//
// A record is stored per (account, app) pair in a kv.Store. The app part of
// the key is derived from the app URL with [ExtensionKey], so different
// spellings of the same URL (case, surrounding whitespace) share a record.
//
// Enrollment consults [Store.HasInjected] to short-circuit when a valid
// token exists and an injected connection was already recorded for the
// target domain.
package connections
