// Package server implements the TCP image server and its per-connection
// command dispatcher.
//
// # Protocol
//
// Clients send one text command per line (terminated by "\n", with an
// optional "\r"). Each command gets exactly one response:
//   - an image as a framed binary packet (see package yail)
//   - a text line "OK: <message>\r\n"
//   - a text line "ERROR: <code>: <message>\r\n"
//
// Supported commands:
//   - video / camera: one frame from the snapshot camera
//   - search <terms>: a random image from a web image search
//   - gen <prompt>, gen-gemini <prompt>: a newly generated image
//   - files: a random image from the configured directories
//   - next: repeat the previous content command
//   - gfx <8|9|16>: switch the graphics mode of later images
//   - openai-config [param value]: show or change generation settings
//   - quit: close the connection
//
// # Connection Lifecycle
//
// Every accepted connection is registered in the shared session state and
// served on its own goroutine until the client quits, idles past the read
// timeout, sends an HTTP request, or the socket fails. Failed commands are
// reported with an ERROR line and the connection stays open. A panic while
// handling a command is recovered and closes only that connection.
//
// # Concurrency
//
// Image encodes run concurrently across connections up to the MaxEncodes
// limit. Each response is encoded into its own buffer and written with a
// single Write call, so a client never sees a partial packet from a failed
// encode.
//
// # Usage
//
//	srv := server.New(state, settings, server.Sources{Files: source.NewFileSource(nil)}, server.Options{})
//	if err := srv.ListenAndServe(ctx, ":5556"); err != nil {
//	    log.Fatal(err)
//	}
package server
