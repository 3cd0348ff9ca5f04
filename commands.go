package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liontech/auth"
	"liontech/backup"
	"liontech/product"
)

func addCommands(root *cobra.Command) {
	root.AddCommand(migrateCmd(), userCmd(), backupCmd(), importCmd())
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema and seed defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			logger.Info("database initialization complete")
			return nil
		},
	}
}

func userCmd() *cobra.Command {
	var email, name, role, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a dashboard user",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			u, err := auth.CreateUser(cmd.Context(), db, email, name, role, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) %s\n", u.Email, u.Role, u.ID)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "login e-mail")
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().StringVar(&role, "role", "admin", "admin, manager or support")
	create.Flags().StringVar(&password, "password", "", "initial password")
	create.MarkFlagRequired("email")
	create.MarkFlagRequired("name")
	create.MarkFlagRequired("password")

	user := &cobra.Command{Use: "user", Short: "Manage dashboard users"}
	user.AddCommand(create)
	return user
}

func backupCmd() *cobra.Command {
	var out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write a backup document to a file or stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			doc, err := backup.Export(cmd.Context(), db)
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				bw := bufio.NewWriter(f)
				defer bw.Flush()
				w = bw
			}
			if err := backup.Encode(w, doc); err != nil {
				return err
			}
			logger.Info("backup exported", zap.String("out", out), zap.Int("rows", doc.Rows()))
			return nil
		},
	}
	export.Flags().StringVarP(&out, "out", "o", "", "output file (stdout when empty)")

	restore := &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace the database contents with a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			doc, err := backup.Decode(bufio.NewReader(f))
			if err != nil {
				return err
			}
			if err := backup.Restore(cmd.Context(), db, doc); err != nil {
				return err
			}
			logger.Info("backup restored", zap.String("file", args[0]), zap.Time("createdAt", doc.CreatedAt), zap.Int("rows", doc.Rows()))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the backups kept in storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(cmd.Context())
			if err != nil {
				return err
			}
			defer app.db.Close()
			backups, err := app.backups.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSIZE\tCREATED")
			for _, b := range backups {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Key, b.SizeHuman, b.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}

	cmd := &cobra.Command{Use: "backup", Short: "Export, restore and list backups"}
	cmd.AddCommand(export, restore, list)
	return cmd
}

func importCmd() *cobra.Command {
	var encoding string
	products := &cobra.Command{
		Use:   "products <csv>",
		Short: "Import the product catalog from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			res, err := product.ImportCSV(cmd.Context(), db, f, encoding, "", logger)
			if err != nil {
				return err
			}
			for _, re := range res.RowErrors {
				fmt.Fprintf(cmd.ErrOrStderr(), "line %d: %s\n", re.Line, re.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d, stock changes %d, skipped %d\n",
				res.Created, res.Updated, res.StockMoves, len(res.RowErrors))
			return nil
		},
	}
	products.Flags().StringVar(&encoding, "encoding", "utf-8", "file encoding: utf-8 or latin1")

	cmd := &cobra.Command{Use: "import", Short: "Bulk imports"}
	cmd.AddCommand(products)
	return cmd
}
