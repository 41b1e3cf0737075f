package cel

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/ext"

	"github.com/docdesk/docdesk/internal/domain/document"
)

// NewDocumentEnvironment creates the CEL environment for document filters:
//   - doc: the document, keyed by its JSON field names
//   - now: the evaluation time
//   - glob(pattern, s): shell-style match
//   - has_tag(doc.tags, tag): case-insensitive tag membership
func NewDocumentEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(),
		ext.Sets(),

		cel.Variable("doc", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("now", cel.TimestampType),

		cel.Function("glob",
			cel.Overload("glob_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(pattern, name ref.Val) ref.Val {
					p, ok1 := pattern.Value().(string)
					n, ok2 := name.Value().(string)
					if !ok1 || !ok2 {
						return types.Bool(false)
					}
					matched, _ := filepath.Match(p, n)
					return types.Bool(matched)
				}),
			),
		),

		cel.Function("has_tag",
			cel.Overload("has_tag_dyn_string",
				[]*cel.Type{cel.DynType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(tagsVal, tagVal ref.Val) ref.Val {
					tag, _ := tagVal.Value().(string)
					lister, ok := tagsVal.(traits.Lister)
					if !ok {
						return types.Bool(false)
					}
					it := lister.Iterator()
					for it.HasNext() == types.True {
						if s, ok := it.Next().Value().(string); ok && strings.EqualFold(s, tag) {
							return types.Bool(true)
						}
					}
					return types.Bool(false)
				}),
			),
		),
	)
}

// BuildActivation maps a document onto the filter variables. Every field is
// present so that expressions never fail on an absent key.
func BuildActivation(d document.Document, now time.Time) map[string]any {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	uploadedBy := ""
	if d.UploadedBy != nil {
		uploadedBy = d.UploadedBy.Email
	}

	return map[string]any{
		"doc": map[string]any{
			"_id":           d.ID,
			"title":         d.Title,
			"description":   d.Description,
			"originalName":  d.OriginalName,
			"filename":      d.Filename,
			"mimeType":      d.MimeType,
			"size":          d.Size,
			"uploadedBy":    uploadedBy,
			"category":      d.Category,
			"tags":          tags,
			"status":        d.Status,
			"isPublic":      d.IsPublic,
			"downloadCount": int64(d.DownloadCount),
			"createdAt":     d.CreatedAt,
			"updatedAt":     d.UpdatedAt,
			"fileType":      d.FileType,
		},
		"now": now,
	}
}
