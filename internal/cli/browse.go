package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/facet"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/session"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/config"
)

func newCategoriesCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List catalog categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.catalog(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSLUG\tTITLE\tLISTINGS\tFILTERS")
			for _, cat := range c.Categories {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
					cat.ID, cat.Slug, cat.Title, c.Listings(cat.ID).Len(), len(c.Filters(cat.ID)))
			}
			return tw.Flush()
		},
	}
}

func newFiltersCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "filters <category>",
		Short: "List the filters a category offers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.catalog(cmd.Context())
			if err != nil {
				return err
			}
			cat, err := c.Category(args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ATTRIBUTE\tTYPE\tTITLE\tOPTIONS")
			for _, d := range c.Filters(cat.ID) {
				keys := make([]string, 0, len(d.Options))
				for _, o := range d.SearchOptions("") {
					keys = append(keys, o.Key)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Attribute, d.Kind, d.Title, strings.Join(keys, ","))
			}
			return tw.Flush()
		},
	}
}

type listOptions struct {
	options  []string
	ranges   []string
	flags    []string
	sort     string
	pages    int
	pageSize int
	json     bool
}

func newListCommand(opts *globalOptions) *cobra.Command {
	lo := &listOptions{}
	cmd := &cobra.Command{
		Use:   "list <category>",
		Short: "Browse a category's listings",
		Long: `Browse a category's listings with filters and a sort order applied,
revealing one page per --pages step the way infinite scroll does.

  catalogctl list hydrocycles --option brand=yamaha,brp --range sell.priceNum=:500000 --sort price_asc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.catalog(cmd.Context())
			if err != nil {
				return err
			}
			filters, err := lo.filters()
			if err != nil {
				return err
			}

			m := session.NewManager(config.SessionConfig{}, session.Options{})
			s, err := m.Create(c, args[0], lo.pageSize)
			if err != nil {
				return err
			}
			for _, f := range filters {
				if _, err := s.ApplyFilter(f); err != nil {
					return err
				}
			}
			if lo.sort != "" {
				if _, err := s.SetSort(lo.sort); err != nil {
					return err
				}
			}
			for i := 1; i < lo.pages; i++ {
				if len(s.LoadMore().Listings) == 0 {
					break
				}
			}
			view := s.View()

			if lo.json {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			return printView(cmd, view)
		},
	}
	cmd.Flags().StringArrayVar(&lo.options, "option", nil, "option filter attr=key[,key...] (repeatable)")
	cmd.Flags().StringArrayVar(&lo.ranges, "range", nil, "range filter attr=min:max, either bound may be empty (repeatable)")
	cmd.Flags().StringArrayVar(&lo.flags, "flag", nil, "boolean filter attribute to switch on (repeatable)")
	cmd.Flags().StringVar(&lo.sort, "sort", "", "sort option id (relevance, price_asc, price_desc)")
	cmd.Flags().IntVar(&lo.pages, "pages", 1, "number of pages to reveal")
	cmd.Flags().IntVar(&lo.pageSize, "page-size", 0, "listings per page (default from config)")
	cmd.Flags().BoolVar(&lo.json, "json", false, "print the view as JSON")
	return cmd
}

// filters parses the filter flags. Option kinds are resolved against the
// category's definitions when applied.
func (lo *listOptions) filters() ([]facet.Active, error) {
	var out []facet.Active
	for _, raw := range lo.options {
		attr, keys, ok := strings.Cut(raw, "=")
		if !ok || attr == "" || keys == "" {
			return nil, fmt.Errorf("--option %q: want attr=key[,key...]", raw)
		}
		f, err := facet.NewOptions(attr, facet.KindOptionSelect, strings.Split(keys, ",")...)
		if err != nil {
			return nil, fmt.Errorf("--option %q: %w", raw, err)
		}
		out = append(out, f)
	}
	for _, raw := range lo.ranges {
		attr, bounds, ok := strings.Cut(raw, "=")
		if !ok || attr == "" {
			return nil, fmt.Errorf("--range %q: want attr=min:max", raw)
		}
		minText, maxText, ok := strings.Cut(bounds, ":")
		if !ok {
			return nil, fmt.Errorf("--range %q: want attr=min:max", raw)
		}
		minV, err := parseBound(minText)
		if err != nil {
			return nil, fmt.Errorf("--range %q: %w", raw, err)
		}
		maxV, err := parseBound(maxText)
		if err != nil {
			return nil, fmt.Errorf("--range %q: %w", raw, err)
		}
		f, err := facet.NewRange(attr, minV, maxV)
		if err != nil {
			return nil, fmt.Errorf("--range %q: %w", raw, err)
		}
		out = append(out, f)
	}
	for _, attr := range lo.flags {
		out = append(out, facet.NewBoolean(attr))
	}
	return out, nil
}

func parseBound(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("bound %q is not a number", s)
	}
	return &v, nil
}

func printView(cmd *cobra.Command, view session.View) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: showing %d of %d (%d before filters), sorted by %s\n",
		view.Category.Title, view.Revealed, view.Total, view.Original, view.SortTitle)
	for _, f := range view.Filters {
		raw, err := json.Marshal(f)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  filter %s\n", raw)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRICE\tSUBJECT")
	for _, r := range view.Listings {
		subject := ""
		if v, ok := r.Get("subject"); ok {
			subject = v.Text()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID(), strconv.FormatFloat(r.Price(), 'f', -1, 64), subject)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if view.HasMore {
		fmt.Fprintf(out, "more listings available; use --pages %d\n", view.Pages+1)
	}
	return nil
}
