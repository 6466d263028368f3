// Package watcher keeps one realtime socket per session token open and
// forwards the account events the service pushes over it.
//
// [Start] returns an owned [Connection]. The connection reconnects after an
// unexpected close according to its [ReconnectPolicy] until [Connection.Dispose]
// is called; disposal closes the active socket and cancels any pending
// reconnect.
package watcher
