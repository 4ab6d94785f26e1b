package main

import (
	"fmt"
	"time"

	"github.com/pior/sfs"
	"github.com/spf13/cobra"
)

func benchCmd(opts *options) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure the round trip time to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			results := make(chan time.Duration, 1)
			sfs.On(s.client, func(e *sfs.RoundTripResponseEvent) { notify(results, e.Elapsed) })

			var total, lo, hi time.Duration
			for i := range count {
				if err := s.client.RoundTripBench(); err != nil {
					return err
				}

				var d time.Duration
				select {
				case d = <-results:
				case <-time.After(opts.timeout):
					return fmt.Errorf("round trip %d timed out", i+1)
				}

				total += d
				if i == 0 || d < lo {
					lo = d
				}
				hi = max(hi, d)
			}

			fmt.Printf("Mode:    %s\n", s.client.ConnectionMode())
			fmt.Printf("Samples: %d\n", count)
			fmt.Printf("Min:     %v\n", lo)
			fmt.Printf("Avg:     %v\n", total/time.Duration(count))
			fmt.Printf("Max:     %v\n", hi)
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of round trips")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if count < 1 {
			return fmt.Errorf("--count must be at least 1")
		}
		return nil
	}

	return cmd
}
