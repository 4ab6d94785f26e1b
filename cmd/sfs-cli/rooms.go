package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func roomsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List the rooms of the zone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tUSERS\tSPECTATORS\tFLAGS")
			for _, r := range s.client.Rooms() {
				fmt.Fprintf(w, "%d\t%s\t%d/%d\t%d/%d\t%s\n",
					r.ID(), r.Name(),
					r.UserCount(), r.MaxUsers(),
					r.SpectatorCount(), r.MaxSpectators(),
					roomFlags(r.IsGame(), r.IsPrivate(), r.IsTemp(), r.IsLimbo()))
			}
			return w.Flush()
		},
	}
}

func roomFlags(game, private, temp, limbo bool) string {
	flags := ""
	for _, f := range []struct {
		set  bool
		name string
	}{{game, "g"}, {private, "p"}, {temp, "t"}, {limbo, "l"}} {
		if f.set {
			flags += f.name
		}
	}
	if flags == "" {
		return "-"
	}
	return flags
}
