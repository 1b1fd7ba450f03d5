// Package protocol implements the overlay broadcaster wire protocol.
//
// # Overview
//
// The broadcaster listens on 127.0.0.1 at a port published in a small JSON
// document ({"port": <int>}) at a well-known path. Consumers and producers hold
// a TCP connection to it and exchange newline-delimited UTF-8 JSON objects,
// one per line, in both directions.
//
// # Message shapes
//
// Two shapes share the channel:
//
//   - Broadcasts: arbitrary objects, usually with an "event" discriminator
//     (OverlayConfig, LegacyOverlay, OverlayCycle, ...), fanned out to every
//     connected consumer.
//   - Requests and acknowledgements: a caller writes
//     {"cli": "<command>", "payload": {...}} and reads lines until one carries
//     a "status" key ("ok", or an error with an "error" field). Lines read
//     before the acknowledgement are broadcasts and are delivered as such.
//
// A request that sees no acknowledgement within a bounded number of reads
// fails with ErrNoAck.
//
// # Usage Example
//
//	client, err := protocol.NewClient(protocol.Config{PortFile: path}, logger)
//	if err != nil {
//		return err
//	}
//	client.Start(ctx)
//	defer client.Close()
//
//	for frame := range client.Frames() {
//		dispatch(frame)
//	}
//
// The client reconnects with exponential backoff whenever the connection is
// lost. Close closes the socket and waits for the reader goroutine to exit.
package protocol
