// Package cli is responsible for parsing command-line arguments and flags
// into an app.Config.
package cli
