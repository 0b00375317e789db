// Package registerwaitlist implements the Register Waitlist use case.
//
// A user asks to be notified when an exhausted item gets a copy back. The handler locks the
// item so no claim or release can change its availability meanwhile, and then either inserts
// the (user, item) entry or answers with an informational outcome: AlreadyAvailable when a copy
// is free right now, AlreadyRegistered when the entry exists. Neither outcome is a failure.
package registerwaitlist
