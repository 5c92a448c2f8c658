// Package planner turns a local file or directory into the ordered list
// of uploads of a submission and checks the remote target for paths that
// already exist. Planning only reads: the local filesystem and, for the
// conflict gate, the forge's PathExists check.
package planner
