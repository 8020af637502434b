// Package protocol parses the line-oriented client command language.
//
// Each line is one command. Parse never fails; a line it cannot understand
// yields an Invalid command carrying a human-readable reason, which the
// server reports to the client while keeping the connection open.
package protocol
