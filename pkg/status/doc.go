// Package status tracks whether each account holds a valid session and
// caches the account service's answers.
//
// A [Tracker] asks the service; a [Cache] keeps the last answer per
// (account, resource) and announces every refresh as an [Invalidation].
// Polling ([Cache.Poll]) and pushed watcher events ([Cache.Handler]) are
// independent triggers on the same entries.
package status
