package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/gamenet/tcpserver"
)

func probeCmd() *cobra.Command {
	var (
		address string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that an address can be bound",
		Long: `Bind a TCP listener on the given address and release it right away.
Run it before serve to catch a wrong host address early.

Examples:
  gamenet probe --address 10.0.0.5
  gamenet probe --address 0.0.0.0 --port 7777`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tcpserver.Probe(address, port); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is usable\n", address)
			return nil
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "127.0.0.1", "Host address to check")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to bind, 0 for any free port")

	return cmd
}
