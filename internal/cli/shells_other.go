//go:build !unix

package cli

// processAlive cannot signal other processes here, so session files are
// never swept.
func processAlive(int) bool { return true }
