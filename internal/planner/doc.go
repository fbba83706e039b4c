// Package planner places unscheduled jobs onto free time within a bounded
// planning horizon.
//
// Jobs are ranked into A/B/C tiers, divisible jobs are split into chunks of at
// most one hour, and every chunk is placed into the first free slot that fits,
// scanning forward day by day. Free slots are the working window minus the
// daily blocked period and everything already booked on that day. Each day
// takes at most one frog chunk and at most one chunk per title.
//
// The package never re-arranges jobs that are already placed and does not
// search for a globally optimal plan.
package planner
