// Package account holds the identity of a wallet account as the host sees it
// and the authenticated-or-not status the account service reports for it.
//
// [Status] is a closed variant: a value is either [NeedEnrollment] or
// [Ready], and only [Ready] carries a session token. Use [MatchStatus] where a
// status crosses a package boundary so both branches are always handled.
package account
