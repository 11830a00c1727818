// Package command defines the canvasmesh-cli commands with urfave/cli/v2:
//
//   - rooms: list, inspect, flush and download room snapshots
//   - system: status, health and readiness; reload and shutdown over
//     the local socket
//   - report: send a test error report
//   - schema: print JSON Schemas of the wire and config formats
//   - config: show the CLI configuration, manage profiles, validate a
//     server configuration file
//   - shell: run commands interactively
//
// Commands parse flags, call the server through a connection.Manager and
// print results with the output package.
package command
