// Package simclient drives the analysis API end to end the way a mobile
// client would: local quality check, upload, progress stream, report and
// mentor match, with every call going through the retry executor.
package simclient

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL     string        // Base URL of the service
	NumJobs     int           // Number of photos to submit
	Workers     int           // Number of concurrent clients
	Timeout     time.Duration // Per-request HTTP timeout
	BlurryRatio float64       // Fraction of generated photos that are blurred
	Override    bool          // Submit photos that fail the local quality check
	Seed        int64         // Photo generator seed
	Verbose     bool          // Log every progress record
}

// Stats holds run statistics.
type Stats struct {
	Generated       int
	RejectedLocally int
	RejectedRemote  int
	Submitted       int
	Completed       int
	Failed          int
	Reports         int
	MentorMatches   int
	StageViolations int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
