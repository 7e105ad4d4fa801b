package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rillToMe/CrypShare/internal/classify"
	"github.com/rillToMe/CrypShare/internal/logging"
	"github.com/rillToMe/CrypShare/internal/qr"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <href> [name]",
		Short: "Show how a listing entry is classified",
		Long: `classify prints the kind, icon and preview URL the renderer would use
for an entry. The name defaults to the href.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			href, name := args[0], args[0]
			if len(args) == 2 {
				name = args[1]
			}

			kind := classify.Classify(href, name)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kind:    %s\n", kind)
			fmt.Fprintf(out, "icon:    %s\n", classify.DefaultCatalog.Ref(classify.IconFor(kind)))
			if kind.IsMedia() {
				fmt.Fprintf(out, "preview: %s\n", classify.PreviewURL(cfg.UploadsBase, name))
			}
			return nil
		},
	}
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Ask the server to forget the current share",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient(cfg).RequestReset(cmd.Context()); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			logging.Info("reset requested")
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func newQRCmd() *cobra.Command {
	var (
		host   string
		port   int
		https  bool
		png    string
		size   int
		invert bool
	)

	cmd := &cobra.Command{
		Use:   "qr [url]",
		Short: "Print a QR code of the share link",
		Long: `qr prints the share link as a terminal QR code so a phone on the same
network can open it. Without an argument the link is built from this
machine's address and the port of the base URL.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link := ""
			if len(args) == 1 {
				link = args[0]
			} else {
				if host == "" {
					host = qr.LocalIP()
				}
				if !cmd.Flags().Changed("port") {
					port = basePort(cfg.BaseURL)
				}
				link = qr.ShareURL(host, port, https)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Link:", link)

			if png != "" {
				data, err := qr.PNG(link, size)
				if err != nil {
					return err
				}
				if err := os.WriteFile(png, data, 0644); err != nil {
					return fmt.Errorf("write %s: %w", png, err)
				}
				fmt.Fprintln(out, "Saved:", png)
				return nil
			}

			text, err := qr.Terminal(link, invert)
			if err != nil {
				return err
			}
			fmt.Fprint(out, text)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&host, "host", "", "host in the link (default: first non-loopback IPv4)")
	f.IntVar(&port, "port", 8888, "port in the link (default: port of the base URL)")
	f.BoolVar(&https, "https", false, "use https in the link")
	f.StringVar(&png, "png", "", "write a PNG image instead of printing")
	f.IntVar(&size, "size", 256, "PNG size in pixels")
	f.BoolVar(&invert, "invert", false, "invert colors for dark terminals")

	return cmd
}

// basePort returns the port of rawURL, falling back to the scheme default.
func basePort(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 8888
	}
	if p, err := strconv.Atoi(u.Port()); err == nil {
		return p
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}
