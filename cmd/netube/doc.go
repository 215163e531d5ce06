// Package `netube` implements echo server application over TCP.
//
// Every client is greeted, then each received text is echoed back.
// Send `:quit` to end own session or `:off` to stop the server.
//
// To compile the server locally, run from package directory:
//
//	go install .
//
// Or quickly launch server on custom port with command:
//
//	go run . --left.port 2000
//
// Dump default configuration to file, edit it and launch with it:
//
//	go run . dumpconfig netube.toml
//	go run . -c netube.toml
package main
