package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tradexpert/whatsnew-admin/internal/config"
	"github.com/tradexpert/whatsnew-admin/internal/dates"
	"github.com/tradexpert/whatsnew-admin/internal/newsfeed"
	"github.com/tradexpert/whatsnew-admin/internal/richtext"
	"github.com/tradexpert/whatsnew-admin/internal/upstream"
	"github.com/tradexpert/whatsnew-admin/internal/whatsnew"
	"github.com/tradexpert/whatsnew-admin/pkg/logger"
)

var errNeedsConfirm = errors.New("refusing to delete without --yes")

// cli carries what every subcommand shares.
type cli struct {
	cfg    *config.Config
	client *upstream.Client
	output string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "whatsnewctl",
		Short:         "Manage What's New records on the TradeXpert API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				logger.Init(lvl)
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if base, _ := cmd.Flags().GetString("base-url"); base != "" {
				cfg.Upstream.BaseURL = strings.TrimRight(base, "/")
			}
			c.cfg = cfg
			c.client = upstream.NewClient(cfg.Upstream, nil)
			switch c.output {
			case "table", "json", "yaml":
			default:
				return fmt.Errorf("unknown --output %q (table, json, yaml)", c.output)
			}
			return nil
		},
	}
	root.PersistentFlags().String("base-url", "", "upstream API base URL (default from UPSTREAM_BASE_URL)")
	root.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", "table", "output format: table, json or yaml")

	root.AddCommand(c.listCmd(), c.getCmd(), c.deleteCmd(), c.pushCmd(), c.feedCmd(), dateCmd())
	return root
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := c.client.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", upstream.MessageOr(err, "Failed to fetch data"), err)
			}
			if c.output != "table" {
				return c.write(cmd.OutOrStdout(), docs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tEXCERPT")
			for _, d := range docs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.Title(), richtext.Excerpt(d.Scalars["description"], 60))
			}
			return tw.Flush()
		},
	}
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := c.client.Find(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", upstream.MessageOr(err, "Failed to fetch data"), err)
			}
			out := c.output
			if out == "table" {
				out = "json"
			}
			return writeAs(cmd.OutOrStdout(), out, doc)
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNeedsConfirm
			}
			if err := c.client.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("%s: %w", upstream.MessageOr(err, "Failed to delete data"), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Data deleted successfully")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")
	return cmd
}

// pushCmd sends a JSON or YAML document through the same fill and sanitize
// steps the screens use: create without --id, update with it.
func (c *cli) pushCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "push <file>",
		Short: "Create or update a record from a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			doc = dates.SanitizeDocument(whatsnew.FillDefaults(doc))
			if id == "" {
				if err := c.client.Create(cmd.Context(), doc); err != nil {
					return fmt.Errorf("%s: %w", upstream.MessageOr(err, "Error saving data"), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Data saved successfully!")
				return nil
			}
			if err := c.client.Update(cmd.Context(), id, doc); err != nil {
				return fmt.Errorf("%s: %w", upstream.MessageOr(err, "Failed to update data"), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Data updated successfully")
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "update this record instead of creating one")
	return cmd
}

func (c *cli) feedCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "feed [url...]",
		Short: "Preview RSS items as news rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := args
			if len(urls) == 0 {
				urls = c.cfg.News.Feeds
			}
			if limit <= 0 {
				limit = c.cfg.News.Limit
			}
			items, err := newsfeed.NewFetcher(nil, c.cfg.News.FetchTimeout).FetchAll(cmd.Context(), urls, limit)
			if err != nil {
				return err
			}
			rows := newsfeed.ToRows(items)
			if c.output != "table" {
				return c.write(cmd.OutOrStdout(), rows)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PUBDATE\tTITLE")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\n", r.Field("pubDate"), r.Field("title"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of items (default NEWS_FEED_LIMIT)")
	return cmd
}

func dateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "date <value>",
		Short: "Show how a date value is stored and edited",
		Args:  cobra.ExactArgs(1),
		// config is not needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			stored := dates.ToStorageFormat(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "storage: %q\nedit:    %q\n", stored, dates.ToEditFormat(stored))
			return nil
		},
	}
}

func (c *cli) write(w io.Writer, v interface{}) error {
	return writeAs(w, c.output, v)
}

func writeAs(w io.Writer, format string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if format != "yaml" {
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	// round-trip through a generic value so custom JSON marshalers shape the YAML
	var generic interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func readDocument(path string) (whatsnew.Document, error) {
	var doc whatsnew.Document
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var generic interface{}
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			return doc, fmt.Errorf("parse %s: %w", path, err)
		}
		if raw, err = json.Marshal(normalizeYAML(generic)); err != nil {
			return doc, fmt.Errorf("convert %s: %w", path, err)
		}
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// normalizeYAML turns YAML scalars the record format keeps as strings
// (numbers, booleans, dates) back into strings.
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	case time.Time:
		return t.Format(dates.EditLayout)
	case nil, string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
