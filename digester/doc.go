// Package digester computes SHA256 digests of submitted content. Each
// upload item carries the hex digest of its bytes; the digests of a whole
// submission are folded into one aggregate recorded in the commit trailer
// and the pull request body.
package digester
