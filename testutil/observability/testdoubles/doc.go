// Package testdoubles provides spies for the lending observability interfaces and for
// notification delivery. All spies are safe for concurrent use. The observability spies
// record calls only when created with recordCalls set to true.
package testdoubles
