// Package registry is the shared store tasks use to exchange resources
// at runtime without compile-time wiring.
//
// It maps a type identity to at most one live value. The task that
// inserts an entry owns it and is the only one that may remove it;
// consumers get borrowed access (With/WithMut) or copy a shared handle
// out (WaitValue). Waits are race-free: a waiter registered under the
// bucket lock cannot miss a change that races with its initial check.
package registry
