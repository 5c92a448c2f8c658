// Package submit orchestrates a clone-free contribution: it plans the
// uploads of a local file or directory, gates on remote conflicts, then
// creates a branch, uploads every file onto it in order and opens a pull
// request.
//
// A run walks the states
//
//	planned -> validated -> branch-ready -> uploading -> committed -> pr-opened
//
// and ends in exactly one Outcome: success, aborted (nothing was changed
// on the forge) or failed at a named stage with whatever was already
// done. Nothing is ever rolled back; a failed run leaves its branch and
// uploaded files in place and reports them.
package submit
