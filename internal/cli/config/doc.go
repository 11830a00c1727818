// Package config holds the canvasmesh-cli configuration.
//
// The file lives at ~/.canvasmesh/cli.yaml and names the default target
// (a server URL or the local socket), the output format, the request
// timeout and saved profiles. Values are layered: defaults, the file,
// the selected profile, CANVASMESH_* environment variables, then flags.
package config
