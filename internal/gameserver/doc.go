// Package gameserver provides the quiz game backend: request decoding, the
// request handler that drives the room registry, and the periodic room
// broadcast.
//
// Transports hand each inbound frame to Handler.HandleMessage and drain the
// per-client Outbound queues that Handler and Broadcaster fill.
package gameserver
