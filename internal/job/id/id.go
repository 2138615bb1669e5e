// Package id provides unique identifier generation for jobs.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Generate creates a new unique job ID: a UUIDv4 without dashes, so it is
// safe to embed in filenames and object keys.
// Example: 9f2b6c1e4d8a4f0bb3c7a51e2d904c6f
func Generate() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Short returns the leading fragment of a job ID used to namespace local
// artifact paths. IDs shorter than 8 characters are returned unchanged.
func Short(jobID string) string {
	if len(jobID) <= 8 {
		return jobID
	}
	return jobID[:8]
}
