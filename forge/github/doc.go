// Package github implements a forge.Provider backed by the GitHub REST API
// (cloud or enterprise). Configure with a Config containing the repository
// owner, name, personal access token and default branch. Set EnterpriseHost
// for GitHub Enterprise installations, or BaseURL to point at any
// GitHub-compatible API root.
package github
