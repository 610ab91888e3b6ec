package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/momoworks/momo-ops/internal/adapter/handler"
	"github.com/momoworks/momo-ops/internal/adapter/storage"
	"github.com/momoworks/momo-ops/internal/config"
	"github.com/momoworks/momo-ops/internal/core/service"
	"github.com/momoworks/momo-ops/pkg/client"
)

func newLoginCmd(opts *options) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("email", email); err != nil {
				return err
			}
			if password == "" {
				password = os.Getenv("MOMO_PASSWORD")
			}
			if err := requireFlag("password", password); err != nil {
				return err
			}
			c := client.New(opts.server)
			res, err := c.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := opts.saveToken(res.AccessToken); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s), token valid until %s\n",
				res.Employee.Name, res.Employee.Role, res.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "employee email")
	cmd.Flags().StringVar(&password, "password", "", "password (or $MOMO_PASSWORD)")
	return cmd
}

func newSeedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Create locations, employees and items from a YAML fixture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireToken(); err != nil {
				return err
			}
			fx, err := loadFixtures(args[0])
			if err != nil {
				return err
			}
			return seed(cmd.Context(), opts.client(), fx, cmd.OutOrStdout())
		},
	}
}

func newStockCmd(opts *options) *cobra.Command {
	var location, month, xlsx string
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Print the stock summary of a location",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("location", location); err != nil {
				return err
			}
			c := opts.client()
			if xlsx != "" {
				body, err := c.StockReport(cmd.Context(), location, month)
				if err != nil {
					return err
				}
				return os.WriteFile(xlsx, body, 0o644)
			}
			rows, err := c.StockSummary(cmd.Context(), location, month)
			if err != nil {
				return err
			}
			printStock(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "location id")
	cmd.Flags().StringVar(&month, "month", "", "YYYY-MM, defaults to the current month")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "write the XLSX report to this file instead of printing")
	return cmd
}

func printStock(out io.Writer, rows []client.StockRow) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SKU\tNAME\tOPENING\tIN\tOUT\tCLOSING\t")
	for _, r := range rows {
		flag := ""
		if r.Low {
			flag = "LOW"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.SKU, r.Name, r.Opening, r.Inward, r.Outward, r.Closing, flag)
	}
	tw.Flush()
}

func newRecalibrateCmd(opts *options) *cobra.Command {
	var location, file, month string
	cmd := &cobra.Command{
		Use:   "recalibrate",
		Short: "Submit this month's physical counts from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("location", location); err != nil {
				return err
			}
			if err := requireFlag("file", file); err != nil {
				return err
			}
			if err := opts.requireToken(); err != nil {
				return err
			}
			counts, err := loadCounts(file)
			if err != nil {
				return err
			}
			rc, err := recalibrate(cmd.Context(), opts.client(), location, month, counts)
			if err != nil {
				return err
			}
			printRecalibration(cmd.OutOrStdout(), rc)
			return nil
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "location id")
	cmd.Flags().StringVar(&file, "file", "", "YAML file of sku/counted pairs")
	cmd.Flags().StringVar(&month, "month", "", "YYYY-MM, defaults to the current month")
	return cmd
}

func newKitchenCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "kitchen",
		Short: "Production house commands over gRPC",
	}
	cmd.PersistentFlags().StringVar(&addr, "grpc", envOr("MOMO_GRPC", "localhost:50051"), "KitchenService address")

	dial := func() (*grpc.ClientConn, *handler.KitchenClient, error) {
		if err := opts.requireToken(); err != nil {
			return nil, nil, err
		}
		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, err
		}
		return conn, handler.NewKitchenClient(conn, opts.bearer()), nil
	}

	var house string
	pending := &cobra.Command{
		Use:   "pending",
		Short: "List requests waiting for a production house",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("house", house); err != nil {
				return err
			}
			conn, kc, err := dial()
			if err != nil {
				return err
			}
			defer conn.Close()
			reqs, err := kc.ListPending(cmd.Context(), house)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTORE\tLINES\tCREATED\t")
			for _, r := range reqs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t\n", r.ID, r.StoreID, len(r.Lines), r.CreatedAt.Format(time.DateOnly))
			}
			return tw.Flush()
		},
	}
	pending.Flags().StringVar(&house, "house", "", "production house id")

	dispatch := &cobra.Command{
		Use:   "dispatch REQUEST_ID [SKU=QTY ...]",
		Short: "Dispatch an accepted request; omitted lines ship in full",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := parseDispatchLines(args[1:])
			if err != nil {
				return err
			}
			conn, kc, err := dial()
			if err != nil {
				return err
			}
			defer conn.Close()
			r, err := kc.Dispatch(cmd.Context(), args[0], lines...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "request %s is %s\n", r.ID, r.Status)
			return nil
		},
	}

	cmd.AddCommand(pending, dispatch)
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the MySQL schema using the server configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := storage.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "server config file (defaults to $MOMO_CONFIG)")
	return cmd
}

func newBootstrapCmd() *cobra.Command {
	var configPath, name, email, password string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the first cluster head directly in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("name", name); err != nil {
				return err
			}
			if err := requireFlag("email", email); err != nil {
				return err
			}
			if err := requireFlag("password", password); err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			db, err := storage.OpenMySQL(cmd.Context(), cfg.MySQLDSN)
			if err != nil {
				return err
			}
			defer db.Close()

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			store := storage.NewMySQLAdapter(db)
			svc := service.New(*cfg, store, storage.NewMemoryCache(cfg.CacheFreshTTL, cfg.CacheStaleTTL), logger)
			e, err := svc.Employees.Bootstrap(cmd.Context(), service.EmployeeInput{Name: name, Email: email, Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created cluster head %s (%s)\n", e.Name, e.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "server config file (defaults to $MOMO_CONFIG)")
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	return cmd
}
