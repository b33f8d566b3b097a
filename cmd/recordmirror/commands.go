package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentworkforce/recordmirror/internal/mirror"
	"github.com/agentworkforce/recordmirror/internal/records"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var search string
	var page int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show one page of records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.load(cmd); err != nil {
				return err
			}
			a.session.SetSearchTerm(search)
			printPage(cmd.OutOrStdout(), a.session.SetPage(page))
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive name filter")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print one record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var rec records.Record
			if remote {
				ctx, cancel := a.context(cmd.Context())
				defer cancel()
				rec, err = a.client.Fetch(ctx, id)
				if err != nil {
					return err
				}
			} else {
				if err := a.load(cmd); err != nil {
					return err
				}
				var ok bool
				rec, ok = a.store.Get(id)
				if !ok {
					return &mirror.NotFoundError{ID: id}
				}
			}
			return printRecord(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "read the record from the remote collection instead of the mirror")
	return cmd
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	fields := &formFlags{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.load(cmd); err != nil {
				return err
			}
			ctx, cancel := a.context(cmd.Context())
			defer cancel()
			created, err := a.session.Create(ctx, fields.form(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", created)
			return nil
		},
	}
	fields.register(cmd)
	return cmd
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	fields := &formFlags{}
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update the supplied fields of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.load(cmd); err != nil {
				return err
			}
			ctx, cancel := a.context(cmd.Context())
			defer cancel()
			updated, err := a.session.Update(ctx, id, fields.form(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", updated)
			return nil
		},
	}
	fields.register(cmd)
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.load(cmd); err != nil {
				return err
			}
			ctx, cancel := a.context(cmd.Context())
			defer cancel()
			if err := a.session.Remove(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted #%d\n", id)
			return nil
		},
	}
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard local changes and fetch the remote collection again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, cancel := a.context(cmd.Context())
			defer cancel()
			page, err := a.session.Reset(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset: %d records\n", page.TotalRecords)
			return nil
		},
	}
}

// formFlags maps form fields to flags. Only flags the user set end up in the
// form, so update leaves everything else untouched.
type formFlags struct {
	name, username, email, phone, website, city, company string
}

func (f *formFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.name, "name", "", "name")
	flags.StringVar(&f.username, "username", "", "username")
	flags.StringVar(&f.email, "email", "", "email")
	flags.StringVar(&f.phone, "phone", "", "phone")
	flags.StringVar(&f.website, "website", "", "website")
	flags.StringVar(&f.city, "city", "", "address city")
	flags.StringVar(&f.company, "company", "", "company name")
}

func (f *formFlags) form(cmd *cobra.Command) records.FormData {
	pick := func(flag, value string) *string {
		if !changed(cmd, flag) {
			return nil
		}
		return records.Str(value)
	}
	form := records.FormData{
		Name:     pick("name", f.name),
		Username: pick("username", f.username),
		Email:    pick("email", f.email),
		Phone:    pick("phone", f.phone),
		Website:  pick("website", f.website),
	}
	if city := pick("city", f.city); city != nil {
		form.Address = &records.FormAddress{City: city}
	}
	if company := pick("company", f.company); company != nil {
		form.Company = &records.FormCompany{Name: company}
	}
	return form
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid record id %q", raw)
	}
	return id, nil
}

func printPage(w io.Writer, page mirror.Page) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tUSERNAME\tEMAIL\tCITY\tCOMPANY")
	for _, r := range page.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, r.Username, r.Email, r.Address.String("city"), r.Company.String("name"))
	}
	_ = tw.Flush()
	totalPages := page.TotalPages
	if totalPages < 1 {
		totalPages = 1
	}
	fmt.Fprintf(w, "page %d of %d, %d records", page.CurrentPage, totalPages, page.TotalRecords)
	if page.SearchTerm != "" {
		fmt.Fprintf(w, " matching %q", page.SearchTerm)
	}
	fmt.Fprintln(w)
}

func printRecord(w io.Writer, rec records.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
