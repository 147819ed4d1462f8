package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/arbelos-io/glean/cli/config"
	"github.com/arbelos-io/glean/cli/render"
	"github.com/arbelos-io/glean/schema"
)

// SchemaCommand returns the schema command. It prints the snapshot a run
// would see for the given role, without contacting the model.
func SchemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Show the schema snapshot visible to a role",
		Flags: append(ReadOnlyFlags(),
			RoleFlag,
			&cli.BoolFlag{
				Name:  "describe",
				Usage: "Print the prompt-form schema description instead of structured output",
			},
		),
		Action: schemaAction,
	}
}

func schemaAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	ctx := context.Background()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	_, source, err := buildDatabase(ctx, cfg, &closers)
	if err != nil {
		return err
	}

	if rules := cfg.RoleRules(); len(rules.Roles) > 0 || rules.DefaultAllow {
		source = &schema.Filtered{Source: source, Rules: rules, Role: c.String("role")}
	}

	snapshot, err := source.Snapshot(ctx)
	if err != nil {
		return err
	}

	if c.Bool("describe") {
		fmt.Println(snapshot.Describe())
		return nil
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(snapshot)
}
