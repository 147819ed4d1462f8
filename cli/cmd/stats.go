package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/arbelos-io/glean/cli/render"
	"github.com/arbelos-io/glean/cli/tui"
	"github.com/arbelos-io/glean/metrics"
)

// showStats renders the collector snapshot after a run. With --tui the
// interactive stats view is used, otherwise the configured format.
func showStats(c *cli.Context, collector *metrics.Collector) error {
	snapshot := collector.Snapshot()

	if c.Bool("tui") {
		return tui.RunStats(snapshot)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(snapshot)
}
