package models

import (
	"database/sql"
	"time"
)

// Attachment represents one file bound to an issue.
type Attachment struct {
	ID                   int64          `json:"id" db:"id"`
	ContainerID          int64          `json:"containerId" db:"container_id"`
	ContainerType        string         `json:"containerType" db:"container_type"`
	Filename             string         `json:"filename" db:"filename"`
	Filesize             int64          `json:"filesize" db:"filesize"`
	Downloads            int64          `json:"downloads" db:"downloads"`
	ContentType          string         `json:"contentType" db:"content_type"`
	Description          string         `json:"description" db:"description"`
	AuthorID             int64          `json:"authorId" db:"author_id"`
	CreatedOn            time.Time      `json:"createdOn" db:"created_on"`
	AttachmentCategoryID sql.NullInt64  `json:"attachmentCategoryId" db:"attachment_category_id"`

	// Joined display fields, populated by the listing query.
	IssueSubject   string         `json:"issueSubject" db:"issue_subject"`
	ProjectID      int64          `json:"projectId" db:"project_id"`
	ProjectName    string         `json:"projectName" db:"project_name"`
	StatusName     string         `json:"statusName" db:"status_name"`
	StatusIsClosed bool           `json:"statusIsClosed" db:"status_is_closed"`
	AuthorLogin    sql.NullString `json:"authorLogin" db:"author_login"`
	CategoryName   sql.NullString `json:"categoryName" db:"category_name"`
}

// ListResult is one page of an executed listing with its aggregates.
type ListResult struct {
	Attachments   []Attachment       `json:"attachments"`
	Count         int64              `json:"count"`
	CountByGroup  map[string]int64   `json:"countByGroup,omitempty"`
	Totals        map[string]float64 `json:"totals,omitempty"`
	TotalsByGroup map[string]map[string]float64 `json:"totalsByGroup,omitempty"`
	GroupLabels   map[string]string  `json:"groupLabels,omitempty"`
	Page          int                `json:"page"`
	PerPage       int                `json:"perPage"`
}
