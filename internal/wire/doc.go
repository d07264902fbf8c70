// Package wire implements the Jupyter messaging wire format.
//
// Every message travels as a multipart frame sequence: routing identities,
// the <IDS|MSG> delimiter, an HMAC-SHA256 signature, then the four JSON
// segments (header, parent_header, metadata, content) followed by any raw
// buffers. The signature covers exactly the four JSON segments; a message
// whose signature does not verify is discarded before any of its JSON is
// trusted.
//
// Typed content structs cover the message types this client sends and the
// kernel replies and broadcasts it consumes.
package wire
