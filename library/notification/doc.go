// Package notification tells waiting users that an item has a copy available again.
//
// The Dispatcher drains the item's waitlist in one transaction, so two overlapping returns of
// the same item never deliver to the same entry twice, and then hands one Message per entry to
// a Deliverer. The ConnectionRegistry is the in-process Deliverer: it maps users to their live
// channel and writes JSON frames into it.
//
// Delivery is best effort. A user without a live channel, a full channel or a delivery that
// runs into its timeout simply misses the event; entries are never re-queued.
package notification
