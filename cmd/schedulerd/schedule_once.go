package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/warren/internal/fitselect"
	"github.com/cuemby/warren/internal/gang"
	"github.com/cuemby/warren/internal/gen"
	"github.com/cuemby/warren/internal/jobspec"
	"github.com/cuemby/warren/internal/jobtable"
	"github.com/cuemby/warren/internal/license"
	"github.com/cuemby/warren/internal/log"
	"github.com/cuemby/warren/internal/placement"
	"github.com/cuemby/warren/internal/scheduler"
	"github.com/spf13/cobra"
)

const demoPartitionNodeCount = 8

var scheduleOnceCmd = &cobra.Command{
	Use:   "schedule-once",
	Short: "Run a single scheduling cycle against a small seeded demo queue",
	Long: `schedule-once seeds an in-memory job table with a single
synthetic job, runs one Main Scheduler Loop cycle against it, and prints
the result. It is meant for operators and CI smoke tests, not production
use — the job table and license pool it builds are thrown away on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadServerConfig(cmd.Flags())
		if err != nil {
			return err
		}

		table := seedDemoTable()
		pool := license.NewPool()
		if cfg.Licenses != "" {
			if err := pool.Configure(cfg.Licenses); err != nil {
				return fmt.Errorf("configuring license pool: %w", err)
			}
		}

		driver := placement.NewDriver(fitselect.New(demoPartitionNodeCount), log.WithComponent("placement"))

		loop := scheduler.NewLoop(scheduler.Deps{
			Table:     table,
			Placement: driver,
			Licenses:  pool,
			Starter:   table,
			Spawner:   table,
			Config:    &cfg.Scheduling,
			Logger:    log.WithComponent("scheduler"),
		})

		result := loop.Run(time.Now())

		row := gang.NewRow("demo", gang.GranNode, nil, log.WithComponent("gang"))
		for _, j := range table.RunningJobs() {
			row.Add(j)
		}
		row.Build()

		out, err := json.MarshalIndent(struct {
			Started    int    `json:"started"`
			Cutoff     string `json:"cutoff"`
			GangActive int    `json:"gang_active"`
		}{result.Started, result.Cutoff, countActive(row)}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func countActive(row *gang.Row) int {
	n := 0
	for _, e := range row.Entries {
		if e.State == jobspec.GangActive {
			n++
		}
	}
	return n
}

// seedDemoTable builds a tiny one-job demo queue: a pending job on a
// default partition, backed by a synthetic id from internal/gen.
func seedDemoTable() *jobtable.Store {
	table := jobtable.New()
	allNodes := jobspec.NewNodeBitmap(demoPartitionNodeCount)
	for i := 0; i < demoPartitionNodeCount; i++ {
		allNodes.Set(i)
	}
	table.PutPartition(&jobspec.Partition{
		Name:     "default",
		Nodes:    allNodes,
		MaxShare: jobspec.ShareExclusive,
		State:    jobspec.PartitionUp,
	})

	nodes := jobspec.NewNodeBitmap(demoPartitionNodeCount)
	nodes.Set(0)
	nodes.Set(1)

	table.PutJob(&jobspec.Job{
		ID:            gen.JobID(),
		Name:          "demo-sweep",
		Owner:         "demo",
		Partition:     "default",
		Priority:      100,
		State:         jobspec.JobPending,
		Resources:     jobspec.ResourceRequest{MinNodes: 1, MaxNodes: 2},
		RequiredNodes: nodes,
	})

	return table
}
