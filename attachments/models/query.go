package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
)

// Visibility of a saved query definition. The enumeration is closed;
// there is never a fourth state.
const (
	VisibilityPrivate = 0
	VisibilityRoles   = 1
	VisibilityPublic  = 2
)

// DefaultQueryName is the placeholder name carried by anonymous,
// session-held definitions. Name is required even for those.
const DefaultQueryName = "_"

// Filter is one stored field/operator/values triple.
type Filter struct {
	Field    string   `json:"field"`
	Operator string   `json:"operator"`
	Values   []string `json:"values"`
}

// FilterList is the ordered filter sequence stored as JSONB.
type FilterList []Filter

// Value implements driver.Valuer interface
func (f FilterList) Value() (driver.Value, error) {
	if f == nil {
		return json.Marshal(FilterList{})
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner interface
func (f *FilterList) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, f)
}

// SortCriterion is one (field, direction) pair. Direction is "asc" or "desc".
type SortCriterion struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// SortCriteria is the ordered sort sequence stored as JSONB.
type SortCriteria []SortCriterion

// Value implements driver.Valuer interface
func (s SortCriteria) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal(SortCriteria{})
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner interface
func (s *SortCriteria) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, s)
}

// AttachmentQuery is a named or anonymous listing specification, persisted
// in attachment_queries or reconstructed from the session shape.
type AttachmentQuery struct {
	ID             int64          `json:"id" db:"id"`
	ProjectID      sql.NullInt64  `json:"projectId" db:"project_id"`
	Name           string         `json:"name" db:"name"`
	UserID         int64          `json:"userId" db:"user_id"`
	Visibility     int            `json:"visibility" db:"visibility"`
	Filters        FilterList     `json:"filters" db:"filters"`
	ColumnNames    pq.StringArray `json:"columnNames" db:"column_names"`
	SortCriteria   SortCriteria   `json:"sortCriteria" db:"sort_criteria"`
	GroupBy        string         `json:"groupBy" db:"group_by"`
	TotalableNames pq.StringArray `json:"totalableNames" db:"totalable_names"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`

	// Role ids from queries_roles; meaningful only when Visibility is
	// VisibilityRoles. Loaded separately from the join table.
	RoleIDs []int64 `json:"roleIds" db:"-"`
}

// Persisted reports whether the definition is backed by a stored row.
func (q *AttachmentQuery) Persisted() bool {
	return q.ID > 0
}

// GlobalScope reports whether the definition is cross-project.
func (q *AttachmentQuery) GlobalScope() bool {
	return !q.ProjectID.Valid
}

// HasFilter reports whether a filter for the field is present.
func (q *AttachmentQuery) HasFilter(field string) bool {
	for _, f := range q.Filters {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Grouped reports whether a group-by field is active.
func (q *AttachmentQuery) Grouped() bool {
	return q.GroupBy != ""
}

// SessionShape is the small serialized form of an ad-hoc definition
// round-tripped through the session store between requests. Filters
// serialize without omitempty so a cleared (empty, non-nil) filter set
// survives the round trip distinct from a never-set (nil) one.
type SessionShape struct {
	QueryID        int64        `json:"query_id,omitempty"`
	ProjectID      int64        `json:"project_id,omitempty"`
	Filters        FilterList   `json:"filters"`
	GroupBy        string       `json:"group_by,omitempty"`
	ColumnNames    []string     `json:"column_names,omitempty"`
	SortCriteria   SortCriteria `json:"sort_criteria,omitempty"`
	TotalableNames []string     `json:"totalable_names,omitempty"`
}

// Shape extracts the session-serializable form of the definition.
func (q *AttachmentQuery) Shape() SessionShape {
	shape := SessionShape{
		QueryID:        q.ID,
		Filters:        q.Filters,
		GroupBy:        q.GroupBy,
		ColumnNames:    []string(q.ColumnNames),
		SortCriteria:   q.SortCriteria,
		TotalableNames: []string(q.TotalableNames),
	}
	if q.ProjectID.Valid {
		shape.ProjectID = q.ProjectID.Int64
	}
	return shape
}

// FromShape rebuilds an anonymous definition from a session shape.
func FromShape(shape SessionShape, userID int64) *AttachmentQuery {
	q := &AttachmentQuery{
		Name:           DefaultQueryName,
		UserID:         userID,
		Visibility:     VisibilityPrivate,
		Filters:        shape.Filters,
		ColumnNames:    pq.StringArray(shape.ColumnNames),
		SortCriteria:   shape.SortCriteria,
		GroupBy:        shape.GroupBy,
		TotalableNames: pq.StringArray(shape.TotalableNames),
	}
	if shape.ProjectID > 0 {
		q.ProjectID = sql.NullInt64{Int64: shape.ProjectID, Valid: true}
	}
	return q
}
