// Package broadcast bridges the event topic to websocket clients.
//
// A Session owns one client connection. It subscribes to the topic, relays
// every payload verbatim and writes heartbeat frames, with the relay loop and
// the heartbeat supervised together so that either one failing stops both.
// The Hub is an actor (single goroutine + command channel) tracking live
// sessions so they can be limited and stopped on shutdown. The Producer
// publishes persisted events as a best-effort side effect.
package broadcast
