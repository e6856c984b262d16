// Package discovery finds ESPixelStick devices on the local network using
// mDNS/DNS-SD.
//
// A device announces two services:
//
// # E1.31 (_e131._udp)
//
// The sACN receiver. TXT records carry Model=ESPixelStick, the
// manufacturer and the TXT record version. The Model key is what marks
// an announcement as coming from an ESPixelStick.
//
// # Web UI (_http._tcp)
//
// The HTTP server that also accepts the WebSocket upgrade on /ws. Its
// port is the one a session connects to.
//
// Announcements are aggregated by instance name. Addresses seen on
// several interfaces are merged into one Device, and a Device is
// reported once it is known to be an ESPixelStick and its web port is
// known.
package discovery
