// Command posctl provides operational helpers: enqueue background jobs and
// print on-demand valuation reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/abdulaziz27/xpresspos-inventory/internal/app"
	"github.com/abdulaziz27/xpresspos-inventory/internal/catalog"
	"github.com/abdulaziz27/xpresspos-inventory/internal/inventory"
	"github.com/abdulaziz27/xpresspos-inventory/internal/platform/db"
	"github.com/abdulaziz27/xpresspos-inventory/jobs"

	"github.com/hibiken/asynq"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "posctl:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: posctl <enqueue-cogs|enqueue-receipt|valuation> [flags]")
	}
	ctx := context.Background()
	switch os.Args[1] {
	case "enqueue-cogs":
		fs := flag.NewFlagSet("enqueue-cogs", flag.ExitOnError)
		orderID := fs.Int64("order", 0, "completed order id")
		_ = fs.Parse(os.Args[2:])
		return enqueue(ctx, cfg.RedisAddr, func(c *jobs.Client) (*asynq.TaskInfo, error) {
			return c.EnqueueOrderCogs(ctx, *orderID)
		})
	case "enqueue-receipt":
		fs := flag.NewFlagSet("enqueue-receipt", flag.ExitOnError)
		poID := fs.Int64("po", 0, "received purchase order id")
		_ = fs.Parse(os.Args[2:])
		return enqueue(ctx, cfg.RedisAddr, func(c *jobs.Client) (*asynq.TaskInfo, error) {
			return c.EnqueuePurchaseReceipt(ctx, *poID)
		})
	case "valuation":
		fs := flag.NewFlagSet("valuation", flag.ExitOnError)
		storeID := fs.Int64("store", 0, "store id")
		_ = fs.Parse(os.Args[2:])
		return printValuation(ctx, cfg, *storeID)
	default:
		return fmt.Errorf("unknown command %q", os.Args[1])
	}
}

func enqueue(ctx context.Context, redisAddr string, fn func(*jobs.Client) (*asynq.TaskInfo, error)) error {
	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	if err != nil {
		return err
	}
	defer client.Close()
	info, err := fn(client)
	if err != nil {
		return err
	}
	fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return nil
}

func printValuation(ctx context.Context, cfg *app.Config, storeID int64) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	engine := inventory.NewValuationEngine(inventory.NewRepository(pool), catalog.NewRepository(pool))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tTOTAL VALUE\tITEMS")
	for _, method := range []inventory.CostMethod{inventory.CostWeightedAverage, inventory.CostFIFO, inventory.CostLIFO} {
		report, err := engine.ValueInventory(ctx, storeID, method)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%.2f\t%d\n", method, report.TotalValue, len(report.Items))
	}
	return w.Flush()
}
