package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tournevent/shippo-platforms/pkg/shippo"
)

func newShipmentsCmd(flags *globalFlags) *cobra.Command {
	var file string
	create := &cobra.Command{
		Use:   "create <merchant-id>",
		Short: "Create a shipment from a JSON file with address_from, address_to and parcels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in shippo.ShipmentInput
			if err := readJSONInput(cmd, file, &in); err != nil {
				return err
			}
			return run(cmd, flags, func(ctx context.Context, c *shippo.Client) (*shippo.Response, error) {
				return c.CreateShipment(ctx, args[0], in.AddressFrom, in.AddressTo, in.Parcels)
			})
		},
	}
	create.Flags().StringVarP(&file, "file", "f", "-", "Shipment JSON file ('-' for stdin)")

	cmd := &cobra.Command{
		Use:   "shipments",
		Short: "Manage shipments",
	}
	cmd.AddCommand(create)
	return cmd
}

func newRatesCmd(flags *globalFlags) *cobra.Command {
	var currency string
	get := &cobra.Command{
		Use:   "get <merchant-id> <shipment-id>",
		Short: "List a shipment's rates",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, func(ctx context.Context, c *shippo.Client) (*shippo.Response, error) {
				return c.GetRates(ctx, args[0], args[1], currency)
			})
		},
	}
	get.Flags().StringVar(&currency, "currency", "USD", "Rate currency (ISO 4217)")

	carrier := &cobra.Command{
		Use:   "carrier <merchant-id> <rate-id>",
		Short: "Show a rate and its carrier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, func(ctx context.Context, c *shippo.Client) (*shippo.Response, error) {
				return c.GetCarrierFromRate(ctx, args[0], args[1])
			})
		},
	}

	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Inspect shipment rates",
	}
	cmd.AddCommand(get, carrier)
	return cmd
}

func newLabelsCmd(flags *globalFlags) *cobra.Command {
	var format string
	create := &cobra.Command{
		Use:   "create <merchant-id> <rate-id>",
		Short: "Purchase a label for a rate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, func(ctx context.Context, c *shippo.Client) (*shippo.Response, error) {
				return c.CreateLabel(ctx, args[0], args[1], shippo.LabelFileType(format))
			})
		},
	}
	create.Flags().StringVar(&format, "format", string(shippo.LabelPDF), "Label file type (PDF, PDF_4x6, PNG, ZPLII, ...)")

	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Purchase shipping labels",
	}
	cmd.AddCommand(create)
	return cmd
}

func newTracksCmd(flags *globalFlags) *cobra.Command {
	get := &cobra.Command{
		Use:   "get <merchant-id> <carrier> <tracking-number>",
		Short: "Show a shipment's tracking status",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, func(ctx context.Context, c *shippo.Client) (*shippo.Response, error) {
				return c.GetTrackStatus(ctx, args[0], args[1], args[2])
			})
		},
	}

	register := &cobra.Command{
		Use:   "register <merchant-id> <carrier> <tracking-number>",
		Short: "Register a tracking number for status updates",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, func(ctx context.Context, c *shippo.Client) (*shippo.Response, error) {
				return c.RegisterTrackStatus(ctx, args[0], args[1], args[2])
			})
		},
	}

	var limit int
	poll := &cobra.Command{
		Use:   "poll <merchant-id> <carrier:tracking-number>...",
		Short: "Fetch the tracking status of several shipments in parallel",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := parseTrackRefs(args[1:])
			if err != nil {
				return err
			}
			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			results, err := s.client.TrackAll(cmd.Context(), args[0], refs, limit)
			if err != nil {
				return err
			}

			out := make([]map[string]any, len(results))
			for i, r := range results {
				entry := map[string]any{
					"carrier":         r.Ref.Carrier,
					"tracking_number": r.Ref.TrackingNumber,
				}
				if r.Err != nil {
					entry["error"] = r.Err.Error()
				} else {
					entry["status"] = r.Response.Object("tracking_status")
				}
				out[i] = entry
			}
			return s.printValue(out)
		},
	}
	poll.Flags().IntVar(&limit, "limit", shippo.DefaultTrackConcurrency, "Maximum concurrent lookups")

	cmd := &cobra.Command{
		Use:   "tracks",
		Short: "Track shipments",
	}
	cmd.AddCommand(get, register, poll)
	return cmd
}

func parseTrackRefs(args []string) ([]shippo.TrackRef, error) {
	refs := make([]shippo.TrackRef, 0, len(args))
	for _, arg := range args {
		carrier, number, ok := strings.Cut(arg, ":")
		if !ok || carrier == "" || number == "" {
			return nil, fmt.Errorf("invalid tracking reference %q, want carrier:number", arg)
		}
		refs = append(refs, shippo.TrackRef{Carrier: carrier, TrackingNumber: number})
	}
	return refs, nil
}

func newAddressesCmd(flags *globalFlags) *cobra.Command {
	var addr shippo.Address
	validate := &cobra.Command{
		Use:   "validate <merchant-id>",
		Short: "Check whether an address is complete and valid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			addr.Validate = true
			valid, err := s.client.ValidateAddress(cmd.Context(), args[0], addr)
			if err != nil {
				return err
			}
			return s.printValue(map[string]bool{"valid": valid})
		},
	}
	validate.Flags().StringVar(&addr.Name, "name", "", "Addressee name")
	validate.Flags().StringVar(&addr.Company, "company", "", "Company")
	validate.Flags().StringVar(&addr.Street1, "street1", "", "First street line")
	validate.Flags().StringVar(&addr.Street2, "street2", "", "Second street line")
	validate.Flags().StringVar(&addr.City, "city", "", "City")
	validate.Flags().StringVar(&addr.State, "state", "", "State or province")
	validate.Flags().StringVar(&addr.Zip, "zip", "", "Postal code")
	validate.Flags().StringVar(&addr.Country, "country", "US", "ISO 3166-1 alpha-2 country code")
	validate.Flags().StringVar(&addr.Phone, "phone", "", "Phone")
	validate.Flags().StringVar(&addr.Email, "email", "", "Email")

	cmd := &cobra.Command{
		Use:   "addresses",
		Short: "Validate addresses",
	}
	cmd.AddCommand(validate)
	return cmd
}
