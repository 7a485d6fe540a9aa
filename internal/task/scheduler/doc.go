// Package scheduler drives unattended post generation.
//
// A Service seeds the rotation once on Start and then, on every trigger of
// its schedule, pulls a fixed-size batch and creates one post request per
// item. Items run sequentially and each one is isolated: a failure is logged,
// published on the event bus and skipped.
package scheduler
