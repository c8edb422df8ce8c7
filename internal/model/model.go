// Package model holds the data types shared across searchload's packages:
// workload specs, sweep combinations, progress snapshots and the combined
// statistics a run produces. It has no behavior of its own.
package model

import "time"

// Column is the optional custom (name, value) tag carried through to the
// quiet/JSON report and the verbose report header (spec.md §6, §4.8).
type Column struct {
	Name  string
	Value string
}

// WorkloadSpec is one immutable workload definition as parsed from the CLI.
// threads and batch_size are lists: the runner drives their Cartesian
// product, outer threads / inner batch-size (spec.md §4.5).
type WorkloadSpec struct {
	Threads          []int
	BatchSize        []int
	Total            int
	Iterations       int
	LoadTemplates    []string
	LoadDistribution []float64
	InitCommands     string
	Drop             bool
	DelaySeconds     float64
	Column           *Column
	Wait             bool

	// Reporting mode, resolved once per spec (spec.md §4.8).
	Verbose           bool
	Quiet             bool
	JSON              bool
	LatencyHistograms bool
}

// RunConfig is the fully resolved, validated configuration the orchestrator
// consumes: database connection parameters plus the list of workload specs
// produced by one or more --together sections (spec.md §6).
type RunConfig struct {
	Host     string
	Port     int
	NoColor  bool
	Workloads []WorkloadSpec
}

// Combination is one (threads, batch_size) point of a workload's Cartesian
// sweep (spec.md §4.5).
type Combination struct {
	Threads   int
	BatchSize int
}

// ProgressSnapshot is the per-workload, per-second state exposed to the
// orchestrator's aggregator (spec.md §3, §4.7). Instances are immutable once
// built; a new snapshot simply replaces the previous one on the channel.
type ProgressSnapshot struct {
	PID               int
	Time              time.Time
	Elapsed           time.Duration
	ProgressPct       float64
	QPS               float64
	DPS               float64
	CPUPct            float64
	CPUAvailable      bool
	WorkerThreadCount int
	DiskChunks        int64
	IsOptimizing      bool
	DiskBytes         int64
	RAMBytes          int64
	IndexedDocuments  map[string]int64 // table -> count, for cross-workload dedup (spec.md §4.7 step 3)
}

// QPSStats and LatencyStats are the percentile bundles shared by all three
// reporter output modes (spec.md §4.8).
type QPSStats struct {
	Avg float64
	P1  float64
	P5  float64
	P95 float64
	P99 float64
}

type LatencyStats struct {
	Avg float64
	P50 float64
	P95 float64
	P99 float64
}

// Summary is the final, immutable result of one (threads, batch_size)
// combination of one workload (spec.md §4.5 step 8, §4.8).
type Summary struct {
	WorkloadIndex int
	Combination   Combination
	InsertMode    bool

	TotalTime      time.Duration
	TotalDocs      int64 // expansions (rows), not statements
	TotalQueries   int64 // statements actually submitted
	DocsPerSec     float64
	QPS            QPSStats
	Latency        LatencyStats
	Column         *Column
	InitCommands   string
	LoadTemplates  []string

	// Grounded on stormdb's metrics.Report "WORKER BREAKDOWN" (SPEC_FULL.md §6):
	// per-connection latency sample counts for the verbose report.
	PerConnection []ConnectionStats
}

// ConnectionStats is one pooled connection's contribution to a Summary.
type ConnectionStats struct {
	ConnectionIndex int
	Queries         int64
	AvgLatencyMs    float64
}
