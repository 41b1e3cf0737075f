// Package document holds the document, analytics and health records exchanged
// with the backend. Payloads are passed through as the backend defines them.
package document

import (
	"net/url"
	"strconv"
	"time"

	"github.com/docdesk/docdesk/internal/domain/session"
)

// Document is a stored file and its metadata.
type Document struct {
	ID            string        `json:"_id" yaml:"id"`
	Title         string        `json:"title" yaml:"title"`
	Description   string        `json:"description,omitempty" yaml:"description,omitempty"`
	OriginalName  string        `json:"originalName" yaml:"original_name"`
	Filename      string        `json:"filename" yaml:"filename"`
	MimeType      string        `json:"mimeType" yaml:"mime_type"`
	Size          int64         `json:"size" yaml:"size"`
	Path          string        `json:"path" yaml:"path"`
	UploadedBy    *session.User `json:"uploadedBy,omitempty" yaml:"uploaded_by,omitempty"`
	Category      string        `json:"category" yaml:"category"`
	Tags          []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
	Status        string        `json:"status" yaml:"status"`
	IsPublic      bool          `json:"isPublic" yaml:"is_public"`
	DownloadCount int           `json:"downloadCount" yaml:"download_count"`
	CreatedAt     time.Time     `json:"createdAt" yaml:"created_at"`
	UpdatedAt     time.Time     `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
	FileType      string        `json:"fileType,omitempty" yaml:"file_type,omitempty"`
}

// Update is a partial document update. Nil and empty fields are omitted.
type Update struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	IsPublic    *bool    `json:"isPublic,omitempty"`
}

// Query selects a page of documents.
type Query struct {
	Page      int
	Limit     int
	Status    string
	Search    string
	SortBy    string
	SortOrder string
}

// Values encodes the non-zero fields as list parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.SortOrder != "" {
		v.Set("sortOrder", q.SortOrder)
	}
	return v
}

// Page is a list response. Pagination is whatever the backend reports.
type Page struct {
	Documents  []Document     `json:"documents" yaml:"documents"`
	Pagination map[string]any `json:"pagination,omitempty" yaml:"pagination,omitempty"`
}

// Stats is the document analytics summary.
type Stats struct {
	Stats struct {
		TotalDocuments    int        `json:"totalDocuments" yaml:"total_documents"`
		ArchivedDocuments int        `json:"archivedDocuments" yaml:"archived_documents"`
		TotalSize         int64      `json:"totalSize" yaml:"total_size"`
		RecentUploads     []Document `json:"recentUploads" yaml:"recent_uploads"`
	} `json:"stats" yaml:"stats"`
}

// TrendPoint is one month of upload activity.
type TrendPoint struct {
	Month   string `json:"month" yaml:"month"`
	Uploads int    `json:"uploads" yaml:"uploads"`
	Storage int64  `json:"storage" yaml:"storage"`
}

// Trends is the monthly upload series.
type Trends struct {
	Series []TrendPoint `json:"series" yaml:"series"`
}

// ServiceStatus is the health of one backend dependency.
type ServiceStatus struct {
	Status  string `json:"status" yaml:"status"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Health is the backend health report.
type Health struct {
	Status   string `json:"status" yaml:"status"`
	Services struct {
		Server   ServiceStatus `json:"server" yaml:"server"`
		Database ServiceStatus `json:"database" yaml:"database"`
	} `json:"services" yaml:"services"`
	System *struct {
		Uptime float64 `json:"uptime" yaml:"uptime"`
		Memory *struct {
			UsagePercent float64 `json:"usagePercent" yaml:"usage_percent"`
		} `json:"memory,omitempty" yaml:"memory,omitempty"`
	} `json:"system,omitempty" yaml:"system,omitempty"`
}
