package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"wgpanel/internal/apiclient"
)

// peersCmd groups the peer commands. They are clients of the running
// server's API: the server is the only process that owns the state
// document and the interface.
func (c *cli) peersCmd() *cobra.Command {
	var serverURL, password string
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "Manage peers through the running server",
	}
	cmd.PersistentFlags().StringVar(&serverURL, "url", "", "server base URL (default from server.address and server.http_port)")
	cmd.PersistentFlags().StringVar(&password, "password", "", "API password (default server.password)")

	api := func() *apiclient.Client {
		u, pw := serverURL, password
		if u == "" {
			u = localURL(c.cfg.Server.Address, c.cfg.Server.HTTPPort)
		}
		if pw == "" {
			pw = c.cfg.Server.Password
		}
		return apiclient.New(u, pw)
	}

	cmd.AddCommand(
		listCmd(api),
		&cobra.Command{
			Use:   "add NAME",
			Short: "Create a peer",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := api().CreatePeer(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ID, p.Address)
				return err
			},
		},
		idCmd("remove ID", "Delete a peer", api, (*apiclient.Client).DeletePeer, "rm"),
		idCmd("enable ID", "Enable a peer", api, (*apiclient.Client).EnablePeer),
		idCmd("disable ID", "Disable a peer", api, (*apiclient.Client).DisablePeer),
		&cobra.Command{
			Use:   "config ID",
			Short: "Print a peer's client configuration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				text, err := api().PeerConfig(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), text)
				return err
			},
		},
	)
	return cmd
}

func idCmd(use, short string, api func() *apiclient.Client,
	op func(*apiclient.Client, context.Context, string) error, aliases ...string) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Aliases: aliases,
		Short:   short,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return op(api(), cmd.Context(), args[0])
		},
	}
}

// localURL points at the server on this host; a wildcard listen address
// is reached through loopback.
func localURL(address, port string) string {
	switch address {
	case "", "0.0.0.0", "::", "[::]":
		address = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(address, port)
}

// peerRow is the list output for the json and yaml formats.
type peerRow struct {
	ID                string     `json:"id" yaml:"id"`
	Name              string     `json:"name" yaml:"name"`
	Address           string     `json:"address" yaml:"address"`
	PublicKey         string     `json:"publicKey" yaml:"publicKey"`
	Enabled           bool       `json:"enabled" yaml:"enabled"`
	LatestHandshakeAt *time.Time `json:"latestHandshakeAt" yaml:"latestHandshakeAt"`
	TransferRx        *int64     `json:"transferRx" yaml:"transferRx"`
	TransferTx        *int64     `json:"transferTx" yaml:"transferTx"`
}

func listCmd(api func() *apiclient.Client) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List peers with their live status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch output {
			case "table", "json", "yaml":
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
			peers, err := api().ListPeers(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([]peerRow, 0, len(peers))
			for _, p := range peers {
				rows = append(rows, peerRow{
					ID:                p.ID,
					Name:              p.Name,
					Address:           p.Address,
					PublicKey:         p.PublicKey,
					Enabled:           p.Enabled,
					LatestHandshakeAt: p.LatestHandshakeAt,
					TransferRx:        p.TransferRx,
					TransferTx:        p.TransferTx,
				})
			}
			return writeRows(cmd.OutOrStdout(), output, rows)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table|json|yaml")
	return cmd
}

func writeRows(w io.Writer, format string, rows []peerRow) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	case "table":
	default:
		return errors.New("unknown output format " + format)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tADDRESS\tENABLED\tHANDSHAKE")
	for _, r := range rows {
		hs := "-"
		if r.LatestHandshakeAt != nil {
			hs = r.LatestHandshakeAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", r.ID, r.Name, r.Address, r.Enabled, hs)
	}
	return tw.Flush()
}
