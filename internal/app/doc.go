// Package app provides the application service layer.
//
// It sits between the HTTP handlers and the event repository and triggers
// the broadcast side effect once an event is stored. Depends on domain
// interfaces, not concrete implementations.
package app
