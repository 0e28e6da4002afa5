package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"prefest/internal/checkout"
	"prefest/internal/client"
	"prefest/internal/drafts"
	"prefest/internal/matching"
	"prefest/internal/pricing"
	"prefest/internal/scanner"
	"prefest/models"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const checkoutDraftKind = "checkout"

type clientFlags struct {
	baseURL      string
	identity     string
	password     string
	subscribeKey string
}

// NewClientCmd groups the commands that talk to a running server over HTTP.
func NewClientCmd() *cobra.Command {
	flags := &clientFlags{}

	root := &cobra.Command{
		Use:   "client",
		Short: "Buy tickets, match and scan against a running server",
	}
	root.PersistentFlags().StringVar(&flags.baseURL, "url", envOr("PREFEST_URL", "http://127.0.0.1:8090"), "server base URL")
	root.PersistentFlags().StringVar(&flags.identity, "email", os.Getenv("PREFEST_EMAIL"), "account email")
	root.PersistentFlags().StringVar(&flags.password, "password", os.Getenv("PREFEST_PASSWORD"), "account password")
	root.PersistentFlags().StringVar(&flags.subscribeKey, "pubnub-subscribe-key", os.Getenv("PUBNUB_SUBSCRIBE_KEY"), "realtime subscribe key")

	root.AddCommand(
		newBuyCmd(flags),
		newMatchCmd(flags),
		newScanCmd(flags),
		newDraftCmd(flags),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (f *clientFlags) login(ctx context.Context) (*client.Client, error) {
	c := client.New(f.baseURL)
	if f.identity == "" || f.password == "" {
		return nil, errors.New("--email and --password are required")
	}
	if err := c.AuthWithPassword(ctx, f.identity, f.password); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return c, nil
}

func newBuyCmd(flags *clientFlags) *cobra.Command {
	var (
		ticketTypeID string
		couponCode   string
		personal     models.PersonalData
	)

	cmd := &cobra.Command{
		Use:   "buy <eventId>",
		Short: "Run the checkout for an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			c, err := flags.login(ctx)
			if err != nil {
				return err
			}

			details, err := c.GetEvent(ctx, args[0])
			if err != nil {
				return err
			}

			autosave := drafts.NewAutosaver(c, checkoutDraftKind, 500*time.Millisecond)
			restoreDraft(ctx, c, &personal, out)

			w := checkout.NewWizard(c, details.Event, details.TicketTypes)
			if w.Step() == checkout.StepSelectTicketType {
				if err := w.SelectTicketType(ticketTypeID); err != nil {
					return err
				}
				if err := w.Next(); err != nil {
					printTicketTypes(out, details.TicketTypes)
					return err
				}
			}

			w.SetPersonalData(personal)
			if data, err := json.Marshal(personal); err == nil {
				autosave.Update(data)
			}
			if err := w.Next(); err != nil {
				_ = autosave.Flush(ctx)
				return err
			}
			if err := autosave.Flush(ctx); err != nil {
				fmt.Fprintf(out, "could not save draft: %v\n", err)
			}

			if couponCode != "" {
				coupon, err := w.ApplyCoupon(ctx, couponCode)
				if err != nil {
					fmt.Fprintf(out, "coupon not applied: %v\n", err)
				} else {
					fmt.Fprintf(out, "coupon %s applied\n", coupon.Code)
				}
			}

			printQuote(out, w.Quote())

			res, err := w.Submit(ctx)
			if err != nil {
				return err
			}
			if err := autosave.Clear(ctx); err != nil {
				fmt.Fprintf(out, "could not clear draft: %v\n", err)
			}

			if res.Free() {
				fmt.Fprintf(out, "registered, ticket %s\n", res.Participant.TicketCode)
				return nil
			}
			fmt.Fprintf(out, "payment %s created, complete it at:\n%s\n", res.PaymentID, res.RedirectURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&ticketTypeID, "ticket-type", "", "ticket type id")
	cmd.Flags().StringVar(&couponCode, "coupon", "", "coupon code")
	cmd.Flags().StringVar(&personal.Name, "name", "", "holder name")
	cmd.Flags().StringVar(&personal.CPF, "cpf", "", "holder CPF")
	cmd.Flags().StringVar(&personal.Email, "holder-email", "", "holder email")
	cmd.Flags().StringVar(&personal.Phone, "phone", "", "holder phone")
	cmd.Flags().IntVar(&personal.Age, "age", 0, "holder age")
	return cmd
}

// restoreDraft fills the fields left empty on the command line from the saved
// checkout draft.
func restoreDraft(ctx context.Context, c *client.Client, p *models.PersonalData, out io.Writer) {
	d, err := c.LoadDraft(ctx, checkoutDraftKind)
	if err != nil {
		if !client.IsStatus(err, 404) {
			fmt.Fprintf(out, "could not load draft: %v\n", err)
		}
		return
	}

	var saved models.PersonalData
	if err := json.Unmarshal(d.Data, &saved); err != nil {
		return
	}
	if p.Name == "" {
		p.Name = saved.Name
	}
	if p.CPF == "" {
		p.CPF = saved.CPF
	}
	if p.Email == "" {
		p.Email = saved.Email
	}
	if p.Phone == "" {
		p.Phone = saved.Phone
	}
	if p.Age == 0 {
		p.Age = saved.Age
	}
	fmt.Fprintf(out, "restored draft from %s\n", d.UpdatedAt.Local().Format(time.DateTime))
}

func printTicketTypes(out io.Writer, types []models.TicketType) {
	fmt.Fprintln(out, "available ticket types:")
	for _, tt := range types {
		fmt.Fprintf(out, "  %s  %-24s %s\n", tt.ID, tt.Name, pricing.Display(tt.Price))
	}
}

func printQuote(out io.Writer, q pricing.Breakdown) {
	fmt.Fprintf(out, "base      %s\n", pricing.Display(q.Base))
	fmt.Fprintf(out, "fee       %s\n", pricing.Display(q.Fee))
	if !q.Discount.IsZero() {
		fmt.Fprintf(out, "discount -%s\n", pricing.Display(q.Discount))
	}
	fmt.Fprintf(out, "total     %s\n", pricing.Display(q.Total))
}

func newMatchCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "match <eventId>",
		Short: "Browse attendees of an event: l to like, s to skip, q to quit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			out := cmd.OutOrStdout()
			eventID := args[0]

			c, err := flags.login(ctx)
			if err != nil {
				return err
			}

			feed := matching.NewFeedBuilder(c)
			cards, err := feed.Build(ctx, eventID, c.UserID())
			if err != nil {
				return err
			}
			queue := matching.NewQueue(cards)
			coordinator := matching.NewCoordinator(c, eventID, queue)

			g, gctx := errgroup.WithContext(ctx)
			if flags.subscribeKey != "" {
				reconciler := matching.NewReconciler(32, func(ctx context.Context, batch []models.Notification) error {
					for _, n := range batch {
						fmt.Fprintf(out, "\n* %s\n", describeNotification(n))
					}
					fresh, err := feed.Build(ctx, eventID, c.UserID())
					if err != nil {
						return err
					}
					queue.Reset(fresh)
					return nil
				})
				sub := client.NewSubscriber(flags.subscribeKey, c.UserID())
				g.Go(func() error { return reconciler.Run(gctx) })
				g.Go(func() error {
					defer reconciler.Close()
					return sub.Run(gctx, reconciler.Deliver)
				})
			}

			browseErr := browse(gctx, cmd.InOrStdin(), out, queue, coordinator)
			cancel()
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return browseErr
		},
	}
}

func browse(ctx context.Context, in io.Reader, out io.Writer, queue *matching.Queue, coordinator *matching.Coordinator) error {
	lines := bufio.NewScanner(in)
	for {
		card, ok := queue.Current()
		if !ok {
			fmt.Fprintln(out, "no more people to show, check back later")
			return nil
		}
		printCard(out, card)
		fmt.Fprint(out, "[l]ike / [s]kip / [q]uit > ")

		if !lines.Scan() {
			return lines.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch strings.ToLower(strings.TrimSpace(lines.Text())) {
		case "l", "like":
			outcome, err := coordinator.Like(ctx, card.UserID)
			if err != nil {
				fmt.Fprintf(out, "like failed, try again: %v\n", err)
				continue
			}
			fmt.Fprintln(out, outcome.Message)
			if outcome.Celebrate {
				fmt.Fprintf(out, "It's a match! chat id %s\n", coordinator.LastMatchID())
			}
		case "s", "skip":
			coordinator.Skip(card.UserID)
		case "q", "quit":
			return nil
		}
	}
}

func printCard(out io.Writer, card matching.Card) {
	fmt.Fprintf(out, "\n%s", card.Name)
	if card.Age > 0 {
		fmt.Fprintf(out, ", %d", card.Age)
	}
	if card.CompatibilityScore != nil {
		fmt.Fprintf(out, "  (%.0f%% compatible)", *card.CompatibilityScore*100)
	}
	fmt.Fprintln(out)
	if card.Bio != "" {
		fmt.Fprintln(out, card.Bio)
	}
	if len(card.Interests) > 0 {
		fmt.Fprintf(out, "interests: %s\n", strings.Join(card.Interests, ", "))
	}
}

func describeNotification(n models.Notification) string {
	switch n.Type {
	case models.NotifyNewLike:
		return "someone liked you"
	case models.NotifyMatch:
		return "new match " + n.MatchID
	case models.NotifyChatMessage:
		return "new message in " + n.MatchID
	case models.NotifyPaymentSuccess:
		return "payment confirmed"
	case models.NotifyPaymentFailed:
		return "payment failed"
	}
	return string(n.Type)
}

func newScanCmd(flags *clientFlags) *cobra.Command {
	var cooldown time.Duration

	cmd := &cobra.Command{
		Use:   "scan <eventId>",
		Short: "Validate tickets read line by line from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			c, err := flags.login(ctx)
			if err != nil {
				return err
			}

			session := scanner.NewSession(c, args[0], scanner.WithCooldown(cooldown))
			lines := bufio.NewScanner(cmd.InOrStdin())
			for lines.Scan() {
				raw := strings.TrimSpace(lines.Text())
				if raw == "" {
					continue
				}
				outcome, handled := session.Process(ctx, raw)
				if !handled {
					fmt.Fprintln(out, "skipped, scanner is cooling down")
					continue
				}
				fmt.Fprintf(out, "%-13s %s", strings.ToUpper(outcome.State.String()), outcome.Message)
				if p := outcome.Participant; p != nil {
					fmt.Fprintf(out, " (%s, %s)", p.HolderName, p.TicketTypeName)
				}
				fmt.Fprintln(out)
			}
			return lines.Err()
		},
	}
	cmd.Flags().DurationVar(&cooldown, "cooldown", scanner.Cooldown, "pause after each result")
	return cmd
}

func newDraftCmd(flags *clientFlags) *cobra.Command {
	draft := &cobra.Command{
		Use:   "draft",
		Short: "Inspect or discard saved form drafts",
	}

	draft.AddCommand(&cobra.Command{
		Use:   "show <kind>",
		Short: "Print a saved draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.login(cmd.Context())
			if err != nil {
				return err
			}
			d, err := c.LoadDraft(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (saved %s)\n%s\n", d.Kind, d.UpdatedAt.Local().Format(time.DateTime), d.Data)
			return nil
		},
	})

	draft.AddCommand(&cobra.Command{
		Use:   "clear <kind>",
		Short: "Delete a saved draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.login(cmd.Context())
			if err != nil {
				return err
			}
			return c.ClearDraft(cmd.Context(), args[0])
		},
	})

	return draft
}
