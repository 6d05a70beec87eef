// Package domain defines the core types and contracts of the notifications
// service: events, wire frames, the broadcast transport and its sentinel
// errors. No implementation code lives here apart from NoTransport.
package domain
