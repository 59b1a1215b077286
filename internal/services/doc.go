// Package services holds the shared error taxonomy and the clients for
// external tools the pipeline shells out to.
package services
