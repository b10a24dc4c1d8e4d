// Command reset_drop puts a product back to its starting price, moves its drop
// time and clears its shares so a drop can be replayed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mcdev12/dropauction/go/internal/auction"
	"github.com/mcdev12/dropauction/go/internal/auction/repository"
	"github.com/mcdev12/dropauction/go/internal/auction/repository/postgres"
	"github.com/mcdev12/dropauction/go/internal/dbconfig"
)

// resetter is the part of the store this tool needs.
type resetter interface {
	ResetItem(ctx context.Context, itemID string, price float64, dropTime *time.Time) error
}

// connectFunc opens the store and returns a release func.
type connectFunc func(ctx context.Context) (resetter, func(), error)

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, connectPostgres))
}

func connectPostgres(ctx context.Context) (resetter, func(), error) {
	// Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := postgres.NewPool(ctx, cfg.DSN(), 2)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewStore(pool), pool.Close, nil
}

// run executes the tool and returns the process exit code.
func run(args []string, stdout, stderr io.Writer, connect connectFunc) int {
	fs := flag.NewFlagSet("reset_drop", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		productID = fs.String("product", "", "product id to reset (required)")
		price     = fs.Float64("price", 150.0, "current price to restore")
		dropIn    = fs.Duration("drop-in", time.Minute, "drop starts this long from now")
		dropAt    = fs.String("drop-time", "", "explicit drop time, overrides -drop-in")
		noWindow  = fs.Bool("no-window", false, "clear the drop time so the product is always active")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *productID == "" {
		fmt.Fprintln(stderr, "-product is required")
		fs.Usage()
		return 2
	}

	dropTime, err := resolveDropTime(time.Now().UTC(), *dropIn, *dropAt, *noWindow)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, release, err := connect(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "failed to connect: %v\n", err)
		return 1
	}
	defer release()

	fmt.Fprintf(stdout, "Resetting product %s...\n", *productID)
	if dropTime != nil {
		fmt.Fprintf(stdout, "New drop time: %s\n", dropTime.Format(time.RFC3339))
	} else {
		fmt.Fprintln(stdout, "New drop time: none")
	}

	// Price, drop time and shares change together
	if err := store.ResetItem(ctx, *productID, *price, dropTime); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			fmt.Fprintf(stderr, "product %s not found\n", *productID)
		} else {
			fmt.Fprintf(stderr, "reset failed: %v\n", err)
		}
		return 1
	}

	fmt.Fprintf(stdout, "Done: price %.2f, shares cleared\n", *price)
	return 0
}

// resolveDropTime picks the new drop time from the flags. A nil result means
// no drop time.
func resolveDropTime(now time.Time, dropIn time.Duration, dropAt string, noWindow bool) (*time.Time, error) {
	if noWindow {
		return nil, nil
	}
	if dropAt != "" {
		t := auction.ParseDropTime(dropAt)
		if t == nil {
			return nil, fmt.Errorf("unrecognized -drop-time %q", dropAt)
		}
		return t, nil
	}
	t := now.Add(dropIn)
	return &t, nil
}
