package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/bher20/ebillmanager/internal/statement"
	pdfread "github.com/ledongthuc/pdf"
	"github.com/spf13/cobra"
)

func parseID(arg, what string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return uint(id), nil
}

func newResolveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <customer-id>",
		Short: "Print a customer's effective rate and its provenance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "customer")
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			c, res, err := a.rates.ResolveCustomer(cmd.Context(), id)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "CUSTOMER\tZIP\tRATE/CCF\tPROVENANCE\n")
			fmt.Fprintf(w, "%s\t%s\t$%s\t%s\n", c.Name, c.ZipCode, res.Rate.StringFixed(2), res.Provenance)
			return w.Flush()
		},
	}
}

type documentFlags struct {
	out    string
	format string
	verify bool
}

func (f *documentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output directory (default: current directory)")
	cmd.Flags().StringVar(&f.format, "format", "pdf", "pdf or json")
	cmd.Flags().BoolVar(&f.verify, "verify", false, "read the rendered PDF back and report its page count")
}

func (f *documentFlags) write(cmd *cobra.Command, doc statement.Document) error {
	var buf bytes.Buffer
	name := doc.Filename
	switch f.format {
	case "json":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return err
		}
		name = name[:len(name)-len(filepath.Ext(name))] + ".json"
	case "pdf":
		if err := statement.RenderPDF(doc, &buf); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q", f.format)
	}

	path := filepath.Join(f.out, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, buf.Len())

	if f.verify && f.format == "pdf" {
		pages, err := countPages(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		if err != nil {
			return fmt.Errorf("verify %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "verified: %d page(s)\n", pages)
	}
	return nil
}

func countPages(r io.ReaderAt, size int64) (int, error) {
	reader, err := pdfread.NewReader(r, size)
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}

func newStatementCmd(g *globals) *cobra.Command {
	flags := &documentFlags{}
	cmd := &cobra.Command{
		Use:   "statement <customer-id>",
		Short: "Render a customer's billing statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "customer")
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			c, bills, _, err := a.billing.CustomerBills(cmd.Context(), id)
			if err != nil {
				return err
			}
			if c == nil && len(bills) == 0 {
				return fmt.Errorf("customer %d not found", id)
			}
			return flags.write(cmd, a.composer.Statement(bills, c))
		},
	}
	flags.register(cmd)
	return cmd
}

func newInvoiceCmd(g *globals) *cobra.Command {
	flags := &documentFlags{}
	cmd := &cobra.Command{
		Use:   "invoice <bill-id>",
		Short: "Render a single bill invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "bill")
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			b, c, err := a.billing.Bill(cmd.Context(), id)
			if err != nil {
				return err
			}
			return flags.write(cmd, a.composer.Invoice(*b, c))
		},
	}
	flags.register(cmd)
	return cmd
}

func newZipRatesCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zip-rates",
		Short: "Inspect the zip rate catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every catalog row",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			catalog, err := a.rates.ZipRates(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID\tZIP\tRATE/CCF\tACTIVE\tDESCRIPTION\n")
			for _, zr := range catalog {
				fmt.Fprintf(w, "%d\t%s\t$%s\t%t\t%s\n", zr.ID, zr.ZipCode, zr.RatePerCCF.StringFixed(2), zr.Active, zr.Description)
			}
			return w.Flush()
		},
	})
	return cmd
}
