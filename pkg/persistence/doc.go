// Package persistence reads and writes the files the client keeps on disk.
//
// Configuration backups hold the system, input and output sections of a
// device as one JSON document. Backups may carry comments and trailing
// commas; they are normalised with tidwall/jsonc before decoding.
//
// The client state file remembers the devices the client has talked to,
// so the CLI can reconnect without discovery.
package persistence
