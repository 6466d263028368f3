// Package navigation derives navigation directives from the query string of
// every URL the embedded content navigates to.
//
// Side-effecting directives (closeApp, openEnrollment, openUrl) are acted on
// at most once per event in that priority order. State directives fold into
// [Options] through the pure [Reduce] function; [Controller] is the only
// holder of the current Options and the only way to change them.
package navigation
