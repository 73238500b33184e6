package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	"github.com/angelmondragon/livebag-backend/pkg/outbox"
)

// dlqOptions are the operator flags. When neither is set the binary runs
// the publisher loop.
type dlqOptions struct {
	list    bool
	reason  string
	bagID   string
	limit   int
	requeue string
}

func (o *dlqOptions) register(fs *flag.FlagSet) {
	fs.BoolVar(&o.list, "dlq-list", false, "print dead-lettered events and exit")
	fs.StringVar(&o.reason, "dlq-reason", "", "with -dlq-list: max_attempts|non_retryable")
	fs.StringVar(&o.bagID, "dlq-bag", "", "with -dlq-list: only this bag id")
	fs.IntVar(&o.limit, "dlq-limit", 50, "with -dlq-list: max rows")
	fs.StringVar(&o.requeue, "dlq-requeue", "", "event id to move back into the outbox, then exit")
}

func (o dlqOptions) active() bool { return o.list || o.requeue != "" }

type dlqAdmin interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) error
}

func runDLQCommand(ctx context.Context, admin dlqAdmin, opts dlqOptions, out io.Writer) error {
	if opts.requeue != "" {
		id, err := uuid.Parse(opts.requeue)
		if err != nil {
			return fmt.Errorf("invalid -dlq-requeue id: %w", err)
		}
		if err := admin.Requeue(ctx, id); err != nil {
			if errors.Is(err, outbox.ErrNotDeadLettered) {
				return fmt.Errorf("%s: %w", id, err)
			}
			return fmt.Errorf("requeue %s: %w", id, err)
		}
		_, err = fmt.Fprintf(out, "requeued %s\n", id)
		return err
	}

	filter := outbox.DLQFilter{Limit: opts.limit}
	if opts.reason != "" {
		reason := enums.OutboxDLQErrorReason(opts.reason)
		if !reason.IsValid() {
			return fmt.Errorf("invalid -dlq-reason %q", opts.reason)
		}
		filter.Reason = reason
	}
	if opts.bagID != "" {
		id, err := uuid.Parse(opts.bagID)
		if err != nil {
			return fmt.Errorf("invalid -dlq-bag id: %w", err)
		}
		filter.BagID = id
	}

	rows, err := admin.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("list dlq: %w", err)
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT\tTYPE\tBAG\tREASON\tATTEMPTS\tFAILED_AT\tERROR")
	for _, row := range rows {
		msg := ""
		if row.ErrorMessage != nil {
			msg = *row.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			row.EventID, row.EventType, row.AggregateID, row.ErrorReason,
			row.AttemptCount, row.FailedAt.UTC().Format(time.RFC3339), msg)
	}
	return tw.Flush()
}
