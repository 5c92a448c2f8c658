// Package gitlab implements a forge.Provider backed by the GitLab REST API v4.
// Each upload is a single-action commit created through the commits API so
// that the resulting commit id is known; merge requests stand in for pull
// requests. The client's built-in retries are disabled: retry policy belongs
// to the caller.
package gitlab
