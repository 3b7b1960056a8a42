// Package dedupe provides a time-based cache for dropping channel events the
// sync protocol delivers more than once.
package dedupe
