package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/clinic/agenda/internal/client"
	"github.com/clinic/agenda/internal/domain/booking"
	"github.com/clinic/agenda/internal/platform/db"
)

// errRejected signals that the submission failed validation; the details
// were already printed.
var errRejected = errors.New("submission rejected")

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a form submission against the default exam catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			in, err := readSubmission(path, cmd.InOrStdin())
			if err != nil {
				return err
			}
			_, err = validateAndReport(cmd.OutOrStdout(), in, booking.DefaultCatalog().Exams)
			return err
		},
	}
	cmd.Flags().StringP("file", "f", "-", "JSON submission file, - for stdin")
	return cmd
}

func bookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Validate a form submission and book it through the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			in, err := readSubmission(path, cmd.InOrStdin())
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			api := client.New(cfg.APIURL, client.WithTimeout(cfg.ClientTimeout))

			exams, err := api.Exams(cmd.Context())
			if err != nil {
				return fmt.Errorf("load exam catalog: %w", err)
			}
			req, err := validateAndReport(cmd.OutOrStdout(), in, exams)
			if err != nil {
				return err
			}

			a, err := api.Create(cmd.Context(), *req)
			if err != nil {
				return reportAPIError(cmd.OutOrStdout(), err)
			}
			return writeJSON(cmd.OutOrStdout(), a)
		},
	}
	cmd.Flags().StringP("file", "f", "-", "JSON submission file, - for stdin")
	return cmd
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a scheduled appointment through the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid appointment id %q", args[0])
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			api := client.New(cfg.APIURL, client.WithTimeout(cfg.ClientTimeout))

			a, err := api.Cancel(cmd.Context(), id)
			if err != nil {
				return reportAPIError(cmd.OutOrStdout(), err)
			}
			return writeJSON(cmd.OutOrStdout(), a)
		},
	}
}

func readSubmission(path string, stdin io.Reader) (booking.RawSubmission, error) {
	var in booking.RawSubmission
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return in, fmt.Errorf("open submission: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return in, fmt.Errorf("decode submission: %w", err)
	}
	return in, nil
}

// validateAndReport prints either the normalized request or one line per
// field error.
func validateAndReport(w io.Writer, in booking.RawSubmission, exams []booking.Exam) (*booking.AppointmentRequest, error) {
	req, verrs := booking.Validate(in, exams)
	if verrs != nil {
		printFieldErrors(w, verrs)
		return nil, errRejected
	}
	if err := writeJSON(w, req); err != nil {
		return nil, err
	}
	return req, nil
}

func printFieldErrors(w io.Writer, verrs booking.ValidationErrors) {
	fields := make([]string, 0, len(verrs))
	for f := range verrs {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(w, "%s: %s\n", f, verrs[booking.Field(f)])
	}
}

func reportAPIError(w io.Writer, err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	fmt.Fprintln(w, apiErr.Message)
	if len(apiErr.Fields) > 0 {
		printFieldErrors(w, apiErr.Fields)
	}
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMigrations(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %s\n", "VERSION", "NAME", "STATUS")
	for _, s := range statuses {
		status := "pending"
		if s.Applied {
			status = "applied"
		}
		fmt.Fprintf(w, "%-10d %-40s %s\n", s.Version, s.Name, status)
	}
}
