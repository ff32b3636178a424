// Copyright (C) 2017 ScyllaDB

package schema

import "github.com/scylladb/gocqlx/v2/table"

// Table models
var (
	RepairSegment = table.New(table.Metadata{
		Name: "repair_segment",
		Columns: []string{
			"id",
			"run_id",
			"unit_id",
			"start_token",
			"end_token",
			"state",
			"coordinator_host",
			"command_id",
			"start_time",
			"end_time",
			"fail_count",
		},
		PartKey: []string{"id"},
	})

	RepairRun = table.New(table.Metadata{
		Name: "repair_run",
		Columns: []string{
			"id",
			"cluster_id",
			"last_event",
			"start_time",
		},
		PartKey: []string{"id"},
	})

	RepairUnit = table.New(table.Metadata{
		Name: "repair_unit",
		Columns: []string{
			"id",
			"keyspace_name",
			"tables",
			"parallelism",
		},
		PartKey: []string{"id"},
	})
)
