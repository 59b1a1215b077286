// Command vodmill is the CLI client for the vodmill daemon. It talks to the
// daemon's HTTP API to upload videos, inspect jobs, stream lifecycle events,
// and manage configuration.
package main
