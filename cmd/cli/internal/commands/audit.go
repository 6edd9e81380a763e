package commands

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/store"
)

type AuditCmd struct {
	Replay AuditReplayCmd `cmd:"" help:"Print audit records"`
	Stream AuditStreamCmd `cmd:"" help:"Follow audit records as they are appended"`
	Verify AuditVerifyCmd `cmd:"" help:"Verify the audit hash chain"`
}

// AuditFilterFlags select audit records.
type AuditFilterFlags struct {
	Kind   []string `help:"event kinds to include" sep:","`
	Ledger string   `help:"ledger handle" default:""`
	Key    string   `help:"primary key, such as an organization code, product ID or identity" default:""`
	SubKey string   `help:"secondary key, such as a batch ID" default:""`
	Caller string   `name:"by-caller" help:"identity that made the change" default:""`
	From   int64    `help:"first sequence to include" default:"0"`
}

func (f AuditFilterFlags) filter() (store.AuditFilter, error) {
	filter := store.AuditFilter{
		Ledger:       f.Ledger,
		Key:          f.Key,
		SubKey:       f.SubKey,
		Caller:       models.Identity(f.Caller),
		FromSequence: f.From,
	}
	for _, k := range f.Kind {
		kind := models.EventKind(strings.TrimSpace(k))
		if !kind.Valid() {
			return filter, fmt.Errorf("unknown event kind %q", k)
		}
		filter.Kinds = append(filter.Kinds, kind)
	}
	return filter, nil
}

func printRecord(rec *models.AuditRecord) {
	var b strings.Builder
	fmt.Fprintf(&b, "%6d  %s  %-28s key=%s", rec.Sequence, rec.Timestamp.Format(time.RFC3339), rec.Kind, rec.Key)
	if rec.SubKey != "" {
		fmt.Fprintf(&b, " sub_key=%s", rec.SubKey)
	}
	if rec.Ledger != "" {
		fmt.Fprintf(&b, " ledger=%s", rec.Ledger)
	}
	for _, k := range slices.Sorted(maps.Keys(rec.Values)) {
		fmt.Fprintf(&b, " %s=%q", k, rec.Values[k])
	}
	fmt.Fprintf(&b, " caller=%s", rec.Caller)
	fmt.Println(b.String())
}

type AuditReplayCmd struct {
	AuditFilterFlags `embed:""`
	Limit            int  `help:"maximum number of records, 0 for all" default:"0"`
	JSON             bool `help:"print records as JSON" default:"false"`
}

func (c *AuditReplayCmd) Run(ctx context.Context, globals *Globals) error {
	filter, err := c.filter()
	if err != nil {
		return err
	}
	filter.Limit = c.Limit

	cl, err := globals.Client()
	if err != nil {
		return err
	}
	recs, err := cl.Replay(ctx, filter)
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(recs)
	}
	for _, rec := range recs {
		printRecord(rec)
	}
	return nil
}

type AuditStreamCmd struct {
	AuditFilterFlags `embed:""`
}

func (c *AuditStreamCmd) Run(ctx context.Context, globals *Globals) error {
	filter, err := c.filter()
	if err != nil {
		return err
	}

	cl, err := globals.Client()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(os.Stderr, "Following audit log (press Ctrl+C to stop)...")

	// resume after the last record seen when the server closes the stream
	for ctx.Err() == nil {
		err := cl.Stream(ctx, filter, func(rec *models.AuditRecord) error {
			printRecord(rec)
			filter.FromSequence = rec.Sequence + 1
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
	}
	return nil
}

type AuditVerifyCmd struct{}

func (c *AuditVerifyCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	res, err := cl.Verify(ctx)
	if err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("audit chain broken after %d records: %s", res.Records, res.Error)
	}
	fmt.Printf("Audit chain valid, %d records\n", res.Records)
	return nil
}
