package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/hotel-concierge/internal/app"
	"github.com/suPer8Hu/hotel-concierge/internal/auth"
	"github.com/suPer8Hu/hotel-concierge/internal/booking"
	"github.com/suPer8Hu/hotel-concierge/internal/knowledge"
)

func newSeedCmd(env envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo bookings into an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, gdb, err := env()
			if err != nil {
				return err
			}
			n, err := booking.NewService(booking.NewRepo(gdb), nil, logger).Seed(cmd.Context())
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "bookings already present, nothing seeded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d bookings\n", n)
			return nil
		},
	}
}

func newBookingsCmd(env envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "bookings",
		Short: "List all bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, gdb, err := env()
			if err != nil {
				return err
			}
			items, _, err := booking.NewService(booking.NewRepo(gdb), nil, logger).List(cmd.Context(), booking.Page{})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NUMBER\tGUEST\tHOTEL\tROOM\tCHECK-IN\tCHECK-OUT\tSTATUS")
			for _, d := range items {
				fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\t%s\t%s\n",
					d.BookingNumber, d.FirstName, d.LastName, d.HotelName, d.RoomType, d.CheckInDate, d.CheckOutDate, d.BookingStatus)
			}
			return tw.Flush()
		},
	}
}

func newIngestCmd(env envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Embed text files into the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, gdb, err := env()
			if err != nil {
				return err
			}
			index, err := app.Index(cfg, gdb, logger)
			if err != nil {
				return err
			}
			if _, err := index.Load(cmd.Context()); err != nil {
				return err
			}
			for _, path := range args {
				b, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				res, err := index.Ingest(cmd.Context(), knowledge.Document{ID: filepath.Base(path), Text: string(b)})
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if res.Skipped {
					fmt.Fprintf(cmd.OutOrStdout(), "%s unchanged\n", res.DocumentID)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks\n", res.DocumentID, res.Chunks)
			}
			return nil
		},
	}
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
