// Package device classifies hardware signing device failures into a small
// closed set of user-facing causes.
//
// Raw transport errors never reach the user: [Classify] maps them to an
// [*Error] whose [Kind] selects the alert the host shows through an
// [Alerter].
package device
