// Package report renders submission outcomes, remote
// listings and download results as human-readable
// text, JSON or YAML.
package report
