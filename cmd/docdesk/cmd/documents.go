package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docdesk/docdesk/internal/adapter/outbound/cel"
	"github.com/docdesk/docdesk/internal/adapter/outbound/rest"
	"github.com/docdesk/docdesk/internal/domain/document"
)

var (
	listQuery document.Query
	listWhere string

	docTitle       string
	docDescription string
	docCategory    string
	docTags        []string
	docPublic      bool

	bulkData     string
	trendsMonths int
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Manage documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Long: `List documents. Query flags are sent to the backend; --where filters the
returned page locally with a CEL expression over "doc".

Examples:
  docdesk documents list --status active --limit 50
  docdesk documents list --where 'doc.size > 1048576 && has_tag(doc.tags, "q3")'
  docdesk documents list --where 'glob("*.pdf", doc.originalName)'`,
	Args: cobra.NoArgs,
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		var eval *cel.Evaluator
		if listWhere != "" {
			var err error
			if eval, err = cel.NewEvaluator(); err != nil {
				return err
			}
			// Compile before the network call so a typo fails fast.
			if _, err := eval.Compile(listWhere); err != nil {
				return err
			}
		}

		page, err := a.client.ListDocuments(cmd.Context(), listQuery)
		if err != nil {
			return err
		}
		if eval != nil {
			if page.Documents, err = eval.Filter(listWhere, page.Documents); err != nil {
				return err
			}
		}
		return printResult(cmd, page)
	}),
}

var documentsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a document",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		doc, err := a.client.GetDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, doc)
	}),
}

var documentsUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a file",
	Long: `Upload a file. The title defaults to the file name.

Example:
  docdesk documents upload report.pdf --category finance --tags q3,draft`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		doc, err := a.client.UploadDocument(cmd.Context(), rest.Upload{
			Filename:    filepath.Base(args[0]),
			Content:     f,
			Title:       docTitle,
			Description: docDescription,
			Category:    docCategory,
			Tags:        docTags,
		})
		if err != nil {
			return err
		}
		return printResult(cmd, doc)
	}),
}

var documentsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update document metadata",
	Long: `Update document metadata. Only the flags you pass are sent.

Example:
  docdesk documents update 64f0c2 --title "Q3 report (final)" --public`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		upd := document.Update{
			Title:       docTitle,
			Description: docDescription,
			Category:    docCategory,
			Tags:        docTags,
		}
		if cmd.Flags().Changed("public") {
			public := docPublic
			upd.IsPublic = &public
		}
		doc, err := a.client.UpdateDocument(cmd.Context(), args[0], upd)
		if err != nil {
			return err
		}
		return printResult(cmd, doc)
	}),
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		if err := a.client.DeleteDocument(cmd.Context(), args[0]); err != nil {
			return err
		}
		printMessage(cmd, "Deleted document %s", args[0])
		return nil
	}),
}

var documentsStatusCmd = &cobra.Command{
	Use:       "status <id> <status>",
	Short:     "Set a document's status",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"active", "archived"},
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		doc, err := a.client.UpdateDocumentStatus(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printResult(cmd, doc)
	}),
}

var documentsBulkDeleteCmd = &cobra.Command{
	Use:   "bulk-delete <criteria>",
	Short: "Delete documents matching a backend criteria",
	Long: `Delete documents in bulk. The criteria and the optional JSON body are
passed to the backend as-is.

Example:
  docdesk documents bulk-delete ids --data '{"ids":["a1","b2"]}'`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		body, err := parseJSONFlag("data", bulkData)
		if err != nil {
			return err
		}
		out, err := a.client.BulkDeleteDocuments(cmd.Context(), args[0], body)
		if err != nil {
			return err
		}
		return printResult(cmd, out)
	}),
}

var documentsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document statistics",
	Args:  cobra.NoArgs,
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		stats, err := a.client.DocumentStats(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(cmd, stats)
	}),
}

var documentsTrendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Show monthly upload trends",
	Args:  cobra.NoArgs,
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		trends, err := a.client.DocumentTrends(cmd.Context(), trendsMonths)
		if err != nil {
			return err
		}
		return printResult(cmd, trends)
	}),
}

// parseJSONFlag decodes a JSON flag value. Empty means no value.
func parseJSONFlag(name, value string) (any, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		return nil, fmt.Errorf("--%s: invalid JSON: %w", name, err)
	}
	return v, nil
}

func init() {
	f := documentsListCmd.Flags()
	f.IntVar(&listQuery.Page, "page", 0, "page number")
	f.IntVar(&listQuery.Limit, "limit", 0, "page size")
	f.StringVar(&listQuery.Status, "status", "", "filter by status (active, archived)")
	f.StringVar(&listQuery.Search, "search", "", "full-text search")
	f.StringVar(&listQuery.SortBy, "sort-by", "", "sort field, e.g. createdAt")
	f.StringVar(&listQuery.SortOrder, "sort-order", "", "asc or desc")
	f.StringVar(&listWhere, "where", "", "CEL filter over doc, applied to the returned page")

	for _, c := range []*cobra.Command{documentsUploadCmd, documentsUpdateCmd} {
		c.Flags().StringVar(&docTitle, "title", "", "document title")
		c.Flags().StringVar(&docDescription, "description", "", "document description")
		c.Flags().StringVar(&docCategory, "category", "", "document category")
		c.Flags().StringSliceVar(&docTags, "tags", nil, "comma-separated tags")
	}
	documentsUpdateCmd.Flags().BoolVar(&docPublic, "public", false, "make the document public (--public=false to make it private)")

	documentsBulkDeleteCmd.Flags().StringVar(&bulkData, "data", "", "JSON request body")
	documentsTrendsCmd.Flags().IntVar(&trendsMonths, "months", 6, "number of months")

	documentsCmd.AddCommand(
		documentsListCmd,
		documentsGetCmd,
		documentsUploadCmd,
		documentsUpdateCmd,
		documentsDeleteCmd,
		documentsStatusCmd,
		documentsBulkDeleteCmd,
		documentsStatsCmd,
		documentsTrendsCmd,
	)
	rootCmd.AddCommand(documentsCmd)
}
