// Package bridge routes messages posted by embedded content to host
// capabilities and sends the responses back as injected scripts.
//
// Every inbound message is a JSON string. [Router.Handle] first tries to
// treat it as a structured capability event keyed by data.name (main button,
// status bar, toaster, emitter, auth, wallet, support and the always-on host
// verbs). Anything else is a generic {id, data} envelope forwarded to the
// configured inject.Engine; its result is dispatched back keyed by id, using
// a response shape selected by engine name.
//
// The router never panics and never reports errors to the content:
// malformed input is logged and dropped.
package bridge
