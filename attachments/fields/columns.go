package fields

// ColumnMeta describes one selectable listing column.
type ColumnMeta struct {
	Name         string `json:"name"`
	Label        string `json:"label"`
	SortSQL      string `json:"-"`
	GroupSQL     string `json:"-"`
	DefaultOrder string `json:"-"`
	Totalable    bool   `json:"totalable"`
	Frozen       bool   `json:"frozen"`
}

// Sortable reports whether the column can appear in sort criteria.
func (c ColumnMeta) Sortable() bool {
	return c.SortSQL != ""
}

// Groupable reports whether the column can be the group-by field.
func (c ColumnMeta) Groupable() bool {
	return c.GroupSQL != ""
}

// AvailableColumns returns the ordered column set. The category column
// appears only when the capability flag is on.
func (c *Catalog) AvailableColumns() []ColumnMeta {
	columns := []ColumnMeta{
		{Name: "id", Label: "#", SortSQL: "attachments.id", DefaultOrder: "desc", Frozen: true},
		{Name: "filename", Label: "Filename", SortSQL: "attachments.filename", GroupSQL: "attachments.filename"},
		{Name: "filesize", Label: "Filesize", SortSQL: "attachments.filesize", Totalable: true},
		{Name: "downloads", Label: "Downloads", SortSQL: "attachments.downloads", Totalable: true},
		{Name: "description", Label: "Description", SortSQL: "attachments.description", GroupSQL: "attachments.description"},
		{Name: "content_type", Label: "Content type", SortSQL: "attachments.content_type", GroupSQL: "attachments.content_type"},
		{Name: "author", Label: "Author", SortSQL: "authors.login", GroupSQL: "attachments.author_id"},
		{Name: "created_on", Label: "Created", SortSQL: "attachments.created_on", DefaultOrder: "desc"},
		{Name: "container", Label: "Issue", SortSQL: "issues.id", GroupSQL: "issues.id", DefaultOrder: "desc"},
		{Name: "project", Label: "Project", SortSQL: "projects.name", GroupSQL: "projects.name"},
		{Name: "status", Label: "Status", SortSQL: "issue_statuses.position", GroupSQL: "issue_statuses.name"},
		{Name: "thumbnail", Label: "Thumbnail"},
	}
	if c.categoriesEnabled {
		columns = append(columns, ColumnMeta{
			Name:     "attachment_category",
			Label:    "Category",
			SortSQL:  "attachment_categories.name",
			GroupSQL: "attachments.attachment_category_id",
		})
	}
	return columns
}

// Column resolves a column by name; ok is false for unknown names and
// for the category column when the capability is off.
func (c *Catalog) Column(name string) (ColumnMeta, bool) {
	for _, col := range c.AvailableColumns() {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnMeta{}, false
}
