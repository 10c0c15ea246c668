package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tournevent/shippo-platforms/internal/filter"
	"github.com/tournevent/shippo-platforms/pkg/shippo"
)

// session is what a one-shot command needs: a client and somewhere to print.
type session struct {
	client *shippo.Client
	flags  *globalFlags
	out    io.Writer
}

// openSession loads configuration and builds a client. Logs go to stderr so
// stdout stays valid JSON.
func openSession(cmd *cobra.Command, flags *globalFlags, opts ...shippo.Option) (*session, error) {
	cfg, err := loadConfig(flags.EnvFile)
	if err != nil {
		return nil, err
	}
	logger, err := initLogger(cfg, "stderr")
	if err != nil {
		return nil, err
	}
	return &session{
		client: initClient(cfg, logger, nil, nil, opts...),
		flags:  flags,
		out:    cmd.OutOrStdout(),
	}, nil
}

func (s *session) print(resp *shippo.Response) error {
	return s.printJSON(resp.Raw)
}

func (s *session) printValue(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return s.printJSON(raw)
}

func (s *session) printJSON(raw []byte) error {
	out, err := filter.ApplyToJSON(raw, s.flags.JQ)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.out, string(out))
	return err
}

// run opens a session and prints the response of call.
func run(cmd *cobra.Command, flags *globalFlags, call func(ctx context.Context, c *shippo.Client) (*shippo.Response, error)) error {
	s, err := openSession(cmd, flags)
	if err != nil {
		return err
	}
	resp, err := call(cmd.Context(), s.client)
	if err != nil {
		return err
	}
	return s.print(resp)
}

// readJSONInput decodes the file at path into v; "-" reads stdin.
func readJSONInput(cmd *cobra.Command, path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decoding input: %w", err)
	}
	return nil
}

func staticDirectory(displayName string) shippo.UserDirectory {
	return shippo.UserDirectoryFunc(func(ctx context.Context, uid string) (string, error) {
		return displayName, nil
	})
}

func addPageFlags(cmd *cobra.Command, page *shippo.Page) {
	cmd.Flags().IntVar(&page.Number, "page", 0, "Page number")
	cmd.Flags().IntVar(&page.Results, "results", 0, "Results per page (0 uses the endpoint default)")
}

func addMerchantFlags(cmd *cobra.Command, in *shippo.MerchantInput) {
	cmd.Flags().StringVar(&in.Email, "email", "", "Merchant email")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "Merchant first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "Merchant last name")
	cmd.Flags().StringVar(&in.MerchantName, "merchant-name", "", "Merchant (store) name")
}

func newMerchantsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merchants",
		Short: "Manage merchant accounts",
	}
	cmd.AddCommand(
		newMerchantsListCmd(flags),
		newMerchantsCreateCmd(flags),
		newMerchantsUpdateCmd(flags),
		newMerchantsCarriersCmd(flags),
		newMerchantsShipmentsCmd(flags),
		newMerchantsLabelsCmd(flags),
	)
	return cmd
}

func newMerchantsListCmd(flags *globalFlags) *cobra.Command {
	var page shippo.Page
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List merchants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, func(ctx context.Context, c *shippo.Client) (*shippo.Response, error) {
				return c.ListMerchants(ctx, page)
			})
		},
	}
	addPageFlags(cmd, &page)
	return cmd
}

func newMerchantsCreateCmd(flags *globalFlags) *cobra.Command {
	var in shippo.MerchantInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a merchant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, func(ctx context.Context, c *shippo.Client) (*shippo.Response, error) {
				return c.CreateMerchant(ctx, in)
			})
		},
	}
	addMerchantFlags(cmd, &in)
	return cmd
}

func newMerchantsUpdateCmd(flags *globalFlags) *cobra.Command {
	var in shippo.MerchantInput
	cmd := &cobra.Command{
		Use:   "update <merchant-id>",
		Short: "Update a merchant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, func(ctx context.Context, c *shippo.Client) (*shippo.Response, error) {
				return c.UpdateMerchant(ctx, args[0], in)
			})
		},
	}
	addMerchantFlags(cmd, &in)
	return cmd
}

func newMerchantsCarriersCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "carriers <merchant-id>",
		Short: "List a merchant's carrier accounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, func(ctx context.Context, c *shippo.Client) (*shippo.Response, error) {
				return c.ListMerchantCarriers(ctx, args[0])
			})
		},
	}
}

func newMerchantsShipmentsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "shipments <merchant-id>",
		Short: "List a merchant's shipments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, func(ctx context.Context, c *shippo.Client) (*shippo.Response, error) {
				return c.ListMerchantShipments(ctx, args[0])
			})
		},
	}
}

func newMerchantsLabelsCmd(flags *globalFlags) *cobra.Command {
	var page shippo.Page
	cmd := &cobra.Command{
		Use:   "labels <merchant-id>",
		Short: "List a merchant's purchased labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, func(ctx context.Context, c *shippo.Client) (*shippo.Response, error) {
				return c.ListMerchantLabels(ctx, args[0], page)
			})
		},
	}
	addPageFlags(cmd, &page)
	return cmd
}

type accountFlags struct {
	UID          string
	DisplayName  string
	Email        string
	MerchantName string
}

func addAccountFlags(cmd *cobra.Command, f *accountFlags) {
	cmd.Flags().StringVar(&f.UID, "uid", "", "Platform user id")
	cmd.Flags().StringVar(&f.DisplayName, "display-name", "", "User display name, used as first and last name")
	cmd.Flags().StringVar(&f.Email, "email", "", "Merchant email")
	cmd.Flags().StringVar(&f.MerchantName, "merchant-name", "", "Merchant (store) name")
	_ = cmd.MarkFlagRequired("display-name")
}

func newAccountsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage merchants on behalf of platform users",
	}
	cmd.AddCommand(newAccountsCreateCmd(flags), newAccountsUpdateCmd(flags))
	return cmd
}

func newAccountsCreateCmd(flags *globalFlags) *cobra.Command {
	var f accountFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a merchant for a user and register the default carrier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, shippo.WithUserDirectory(staticDirectory(f.DisplayName)))
			if err != nil {
				return err
			}
			id, err := s.client.CreateMerchantForUser(cmd.Context(), f.UID, f.Email, f.MerchantName)
			if err != nil {
				return err
			}
			return s.printValue(map[string]string{"object_id": id})
		},
	}
	addAccountFlags(cmd, &f)
	return cmd
}

func newAccountsUpdateCmd(flags *globalFlags) *cobra.Command {
	var f accountFlags
	cmd := &cobra.Command{
		Use:   "update <merchant-id>",
		Short: "Update a user's merchant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, shippo.WithUserDirectory(staticDirectory(f.DisplayName)))
			if err != nil {
				return err
			}
			resp, err := s.client.UpdateMerchantForUser(cmd.Context(), f.UID, args[0], f.Email, f.MerchantName)
			if err != nil {
				return err
			}
			return s.print(resp)
		},
	}
	addAccountFlags(cmd, &f)
	return cmd
}

func newCarriersCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "carriers",
		Short: "Manage carrier accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "register <merchant-id> <carrier>",
		Short: "Register a carrier account for a merchant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, func(ctx context.Context, c *shippo.Client) (*shippo.Response, error) {
				return c.CreateCarrierAccount(ctx, args[0], args[1])
			})
		},
	})
	return cmd
}
