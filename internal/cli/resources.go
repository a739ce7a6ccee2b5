package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/portal/pkg/portalsdk"
)

const dateLayout = "2006-01-02"

func newOrdersCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Sales made through the platform",
	}
	cmd.AddCommand(newOrdersListCmd(rt))
	return cmd
}

func newOrdersListCmd(rt *runtime) *cobra.Command {
	var (
		status, method, from, to string
		page, pageSize           int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Args:  cobra.NoArgs,
		RunE: rt.run(func(cmd *cobra.Command, _ []string) error {
			f := portalsdk.OrderFilter{Metodo: method, Page: page, PageSize: pageSize}
			if status != "" {
				st, ok := portalsdk.ParseOrderStatus(status)
				if !ok {
					return fmt.Errorf("unknown order status %q", status)
				}
				f.Status = &st
			}
			var err error
			if f.DataDe, err = parseDate(from); err != nil {
				return err
			}
			if f.DataAte, err = parseDate(to); err != nil {
				return err
			}

			res, err := rt.s.client.ListOrders(cmd.Context(), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(res.Items) == 0 {
				fmt.Fprintln(out, "No orders found.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tVALUE\tSTATUS\tMETHOD\tCUSTOMER\tCREATED")
			for _, o := range res.Items {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", o.ID, o.Valor.StringFixed(2), o.Status, o.Metodo, o.Cliente, o.CriadoEmUtc)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			printShown(out, len(res.Items), res.Total)
			return nil
		}),
	}

	cmd.Flags().StringVar(&status, "status", "", "status name or code, e.g. Pago or 30")
	cmd.Flags().StringVar(&method, "method", "", "payment method, e.g. pix")
	cmd.Flags().StringVar(&from, "from", "", "created on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "created on or before (YYYY-MM-DD)")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "orders per page")
	return guarded(cmd, guardAuth)
}

func newTransfersCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfers",
		Short: "Withdrawals of the account balance",
	}
	cmd.AddCommand(newTransfersListCmd(rt), newTransfersRequestCmd(rt))
	return cmd
}

func newTransfersListCmd(rt *runtime) *cobra.Command {
	var (
		status, from, to string
		page, pageSize   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transfer requests",
		Args:  cobra.NoArgs,
		RunE: rt.run(func(cmd *cobra.Command, _ []string) error {
			f := portalsdk.TransferFilter{Page: page, PageSize: pageSize}
			if status != "" {
				st, ok := portalsdk.ParseTransferStatus(status)
				if !ok {
					return fmt.Errorf("unknown transfer status %q", status)
				}
				f.Status = &st
			}
			var err error
			if f.DataInicio, err = parseDate(from); err != nil {
				return err
			}
			if f.DataFim, err = parseDate(to); err != nil {
				return err
			}

			res, err := rt.s.client.ListTransfers(cmd.Context(), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(res.Items) == 0 {
				fmt.Fprintln(out, "No transfers found.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tREQUESTED\tFEE\tNET\tSTATUS\tPIX KEY\tDATE")
			for _, t := range res.Items {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.ValorSolicitado.StringFixed(2), t.Taxa.StringFixed(2), t.ValorFinal.StringFixed(2),
					t.Status, t.ChavePix, t.DataSolicitacao)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			printShown(out, len(res.Items), res.Total)
			return nil
		}),
	}

	cmd.Flags().StringVar(&status, "status", "", "status name or code, e.g. Pendente or 0")
	cmd.Flags().StringVar(&from, "from", "", "requested on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "requested on or before (YYYY-MM-DD)")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "transfers per page")
	return guarded(cmd, guardAuth)
}

func newTransfersRequestCmd(rt *runtime) *cobra.Command {
	var (
		amount string
		in     portalsdk.TransferCreate
	)

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request a withdrawal to a Pix key",
		Args:  cobra.NoArgs,
		RunE: rt.run(func(cmd *cobra.Command, _ []string) error {
			var err error
			if in.ValorSolicitado, err = decimal.NewFromString(amount); err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}

			t, err := rt.s.client.CreateTransfer(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Transfer %d requested: %s minus %s fee, %s to %s.\n",
				t.ID, t.ValorSolicitado.StringFixed(2), t.Taxa.StringFixed(2), t.ValorFinal.StringFixed(2), t.ChavePix)
			return nil
		}),
	}

	cmd.Flags().StringVar(&amount, "amount", "", "amount to withdraw, e.g. 150.00")
	cmd.Flags().StringVar(&in.ChavePix, "pix-key", "", "destination Pix key")
	cmd.Flags().StringVar(&in.Produto, "product", "", "product the balance came from")
	cmd.Flags().IntVar(&in.TipoEnvio, "delivery", 0, "delivery type code")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("pix-key")
	return guarded(cmd, guardAuth)
}

func newWebhooksCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhooks",
		Short: "Event notifications sent to your servers",
	}
	cmd.AddCommand(newWebhooksListCmd(rt), newWebhooksCreateCmd(rt), newWebhooksDeleteCmd(rt))
	return cmd
}

func newWebhooksListCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List webhooks",
		Args:  cobra.NoArgs,
		RunE: rt.run(func(cmd *cobra.Command, _ []string) error {
			hooks, err := rt.s.client.ListWebhooks(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(hooks) == 0 {
				fmt.Fprintln(out, "No webhooks found.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tURL\tACTIVE\tSECRET\tEVENTS")
			for _, w := range hooks {
				fmt.Fprintf(tw, "%d\t%s\t%t\t%t\t%s\n", w.ID, w.URL, w.Ativo, w.HasSecret, strings.Join(w.Events(), ","))
			}
			return tw.Flush()
		}),
	}
	return guarded(cmd, guardAuth)
}

func newWebhooksCreateCmd(rt *runtime) *cobra.Command {
	var (
		in       portalsdk.WebhookInput
		inactive bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a webhook",
		Long:  "Register a webhook. Events are any of: " + strings.Join(portalsdk.WebhookEvents, ", ") + ".",
		Args:  cobra.NoArgs,
		RunE: rt.run(func(cmd *cobra.Command, _ []string) error {
			in.Ativo = !inactive
			w, err := rt.s.client.CreateWebhook(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Webhook %d created for %s (%s).\n", w.ID, w.URL, strings.Join(w.Events(), ","))
			return nil
		}),
	}

	cmd.Flags().StringVar(&in.URL, "url", "", "endpoint URL, https:// is assumed")
	cmd.Flags().StringVar(&in.Secret, "secret", "", "shared secret used to sign deliveries")
	cmd.Flags().StringSliceVar(&in.Eventos, "events", nil, "comma separated events")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the webhook disabled")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("events")
	return guarded(cmd, guardAuth)
}

func newWebhooksDeleteCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a webhook",
		Args:  cobra.ExactArgs(1),
		RunE: rt.run(func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid webhook id %q", args[0])
			}
			if err := rt.s.client.DeleteWebhook(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Webhook %d deleted.\n", id)
			return nil
		}),
	}
	return guarded(cmd, guardAuth)
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", v)
	}
	return t, nil
}

func printShown(out io.Writer, shown, total int) {
	if shown < total {
		fmt.Fprintf(out, "\n(%d of %d shown)\n", shown, total)
	}
}
