// Package engine is the composition root that assembles the host bridge
// components from configuration and exposes them through a frontend-agnostic
// API. Frontends create one [WebSession] per embedded content load, start
// enrollment and watchers through [Engine], and observe activity through an
// [EventBus]; they never wire lower-level packages themselves.
package engine
