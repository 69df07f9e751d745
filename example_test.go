package flowgraph_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/flowgraph"
	"github.com/aretw0/flowgraph/pkg/dsl"
)

// ExampleLocalRunner runs a foreach split and its join in-process.
func ExampleLocalRunner() {
	spec := dsl.New("CountFlow").
		Add("start").Foreach("words", "measure").
		Add("measure").Go("total").
		Add("total").Join().Go("end").
		Add("end").
		Builder().MustBuild()

	f := flowgraph.New(spec).
		Handle("start", func(ctx context.Context, t *flowgraph.Task) error {
			t.Set("words", []string{"step", "graph", "go"})
			return t.Next(ctx, "measure", flowgraph.Foreach("words"))
		}).
		Handle("measure", func(ctx context.Context, t *flowgraph.Task) error {
			word, err := t.Input(ctx)
			if err != nil {
				return err
			}
			t.Set("length", len(word.(string)))
			return t.Next(ctx, "total")
		}).
		HandleJoin("total", func(ctx context.Context, t *flowgraph.Task, inputs flowgraph.Inputs) error {
			sum := 0
			for _, in := range inputs {
				n, err := in.Get(ctx, "length")
				if err != nil {
					return err
				}
				sum += n.(int)
			}
			fmt.Println("total length:", sum)
			return t.Next(ctx, "end")
		}).
		Handle("end", func(ctx context.Context, t *flowgraph.Task) error { return nil })

	res, err := flowgraph.NewLocalRunner(f).Run(context.Background(), "example", nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("tasks:", len(res.Tasks))

	// Output:
	// total length: 11
	// tasks: 6
}
