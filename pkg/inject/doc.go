// Package inject builds the script surface exposed to embedded content and
// executes the generic RPC methods that content calls through it.
//
// [Source] concatenates one fragment per enabled capability in a fixed order
// (main button, status bar insets, toaster, emitter, auth state, wallet
// bridge, generic client, support) followed by a caller supplied extra
// fragment and a guard that freezes an empty bridge namespace when the page
// has not defined one.
//
// [Engine] is a named method registry. Content sends {id, data:{name, args}}
// envelopes; the bridge router forwards data to [Engine.Execute] and sends the
// [Result] back using one of the outbound script builders in this package.
package inject
