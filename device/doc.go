// Package device scores device risk from fingerprinting signals and manages
// device trust.
//
// [Score] is pure: the same signals, first-seen time and clock always give
// the same result, and the score is clamped to 0..100. Adding a negative
// signal never raises it and adding a positive one never lowers it.
// [Service] wraps the scorer with persistence through [Store].
package device
