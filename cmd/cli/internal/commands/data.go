package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/traceledger/internal/models"
)

type DataCmd struct {
	Add    DataAddCmd    `cmd:"" help:"Append an entry to a data log"`
	Get    DataGetCmd    `cmd:"" help:"Show one data log entry"`
	Counts DataCountsCmd `cmd:"" help:"Show the number of entries per data log"`
}

type DataAddCmd struct {
	Handle   string `arg:"" help:"ledger handle"`
	Category string `arg:"" help:"data category" enum:"contributions,iot,collection,backup,primary"`
	Data     string `arg:"" help:"data to record; a content identifier for contributions"`
}

func (c *DataAddCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	entry, err := cl.RecordData(ctx, c.Handle, models.DataCategory(c.Category), c.Data)
	if err != nil {
		return err
	}
	return printJSON(entry)
}

type DataGetCmd struct {
	Handle   string `arg:"" help:"ledger handle"`
	Category string `arg:"" help:"data category" enum:"contributions,iot,collection,backup,primary"`
	Index    int    `arg:"" help:"zero based entry index"`
}

func (c *DataGetCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	entry, err := cl.GetData(ctx, c.Handle, models.DataCategory(c.Category), c.Index)
	if err != nil {
		return err
	}
	return printJSON(entry)
}

type DataCountsCmd struct {
	Handle string `arg:"" help:"ledger handle"`
}

func (c *DataCountsCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	counts, err := cl.DataCounts(ctx, c.Handle)
	if err != nil {
		return err
	}
	for _, cat := range models.DataCategories {
		fmt.Printf("%-14s %d\n", cat, counts[cat])
	}
	return nil
}
