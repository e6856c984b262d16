// Package wire defines the message format exchanged with the device over
// its WebSocket.
//
// Outbound traffic is text. Simple commands are two characters, an 'X'
// followed by a command code:
//
//	XJ  request status     reply: XJ{...}
//	XA  request admin info reply: XA{...}
//	XP  heartbeat probe    reply: XP...
//	X6  reboot
//	X7  factory reset
//
// Configuration verbs travel in a JSON envelope:
//
//	{"cmd":{"get":"system"}}
//	{"cmd":{"set":{"system":{...}}}}
//	{"cmd":{"delete":{"files":[{"name":"a.fseq"}]}}}
//
// and are answered with {"get":...}, {"set":...} or {"cmd":"OK"}. A
// request for "V1" is answered with a binary frame holding the current
// pixel buffer.
//
// # Response classes
//
// Every outbound message carries a ResponseClass derived from a static
// prefix table. Short-class messages expect little or no reply and use
// a short response timeout.
//
// # Inbound
//
// Decode classifies an inbound frame exactly once into one of the
// Inbound types. Frames that match no known shape decode to
// Unrecognized rather than an error.
package wire
