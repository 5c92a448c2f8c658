// Package cli wires the vkt commands (list, get,
// submit and config) onto cobra.
package cli
