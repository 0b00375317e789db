// Package fixtures seeds lending stores and checks their inventory invariants in tests.
package fixtures
