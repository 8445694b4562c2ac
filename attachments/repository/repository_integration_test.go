package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/fields"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/models"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/query"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/database/postgres"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/permissions"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/testutil"
)

// fixture ids seeded by seedFixture.
type fixture struct {
	memberUser   int64
	otherUser    int64
	publicProj   int64
	privateProj  int64
	openIssue    int64
	closedIssue  int64
	privateIssue int64
}

func seedFixture(t *testing.T, client *postgres.Client) fixture {
	t.Helper()
	ctx := context.Background()
	db := client.DB()

	var f fixture
	require.NoError(t, db.GetContext(ctx, &f.memberUser,
		`INSERT INTO users (login) VALUES ('member') RETURNING id`))
	require.NoError(t, db.GetContext(ctx, &f.otherUser,
		`INSERT INTO users (login) VALUES ('outsider') RETURNING id`))

	require.NoError(t, db.GetContext(ctx, &f.publicProj,
		`INSERT INTO projects (name, is_public) VALUES ('Alpha', FALSE) RETURNING id`))
	require.NoError(t, db.GetContext(ctx, &f.privateProj,
		`INSERT INTO projects (name, is_public) VALUES ('Beta', FALSE) RETURNING id`))

	var roleID int64
	require.NoError(t, db.GetContext(ctx, &roleID,
		`INSERT INTO roles (name, permissions) VALUES ('Developer', ARRAY['view_issue_attachments','save_queries']) RETURNING id`))

	var memberID int64
	require.NoError(t, db.GetContext(ctx, &memberID,
		`INSERT INTO members (user_id, project_id) VALUES ($1, $2) RETURNING id`, f.memberUser, f.publicProj))
	_, err := db.ExecContext(ctx,
		`INSERT INTO member_roles (member_id, role_id) VALUES ($1, $2)`, memberID, roleID)
	require.NoError(t, err)

	var openStatus, closedStatus int64
	require.NoError(t, db.GetContext(ctx, &openStatus,
		`INSERT INTO issue_statuses (name, is_closed, position) VALUES ('New', FALSE, 1) RETURNING id`))
	require.NoError(t, db.GetContext(ctx, &closedStatus,
		`INSERT INTO issue_statuses (name, is_closed, position) VALUES ('Closed', TRUE, 2) RETURNING id`))

	require.NoError(t, db.GetContext(ctx, &f.openIssue,
		`INSERT INTO issues (project_id, subject, status_id) VALUES ($1, 'Open issue', $2) RETURNING id`,
		f.publicProj, openStatus))
	require.NoError(t, db.GetContext(ctx, &f.closedIssue,
		`INSERT INTO issues (project_id, subject, status_id) VALUES ($1, 'Closed issue', $2) RETURNING id`,
		f.publicProj, closedStatus))
	require.NoError(t, db.GetContext(ctx, &f.privateIssue,
		`INSERT INTO issues (project_id, subject, status_id) VALUES ($1, 'Hidden issue', $2) RETURNING id`,
		f.privateProj, openStatus))

	now := time.Now().UTC()
	attach := func(issueID int64, filename string, filesize int64, downloads int, createdOn time.Time) {
		_, err := db.ExecContext(ctx, `INSERT INTO attachments
			(container_id, container_type, filename, filesize, downloads, content_type, author_id, created_on)
			VALUES ($1, 'Issue', $2, $3, $4, 'application/pdf', $5, $6)`,
			issueID, filename, filesize, downloads, f.memberUser, createdOn)
		require.NoError(t, err)
	}
	attach(f.openIssue, "open.pdf", 1000, 3, now)
	attach(f.closedIssue, "closed.pdf", 2500, 7, now)
	attach(f.privateIssue, "hidden.pdf", 512, 1, now)

	return f
}

func memberStatement(t *testing.T, f fixture, q *models.AttachmentQuery) (*query.Statement, permissions.Scope) {
	t.Helper()
	scope := permissions.Scope{
		UserID: f.memberUser, Logged: true,
		HasMemberships: true, ProjectIDs: []int64{f.publicProj},
	}
	catalog := fields.NewCatalog(nil, false)
	builder := query.NewBuilder(query.NewCompiler(catalog), catalog)
	stmt, err := builder.Build(q, scope)
	require.NoError(t, err)
	return stmt, scope
}

func TestPostgresAttachmentRepository_Integration(t *testing.T) {
	if os.Getenv("RUN_DB_TESTS") != "1" {
		t.Skip("set RUN_DB_TESTS=1 to run database tests")
	}
	client := testutil.SetupDB(t)
	if client == nil {
		t.Skip("postgres not available, skipping")
	}

	f := seedFixture(t, client)
	repo := NewPostgresAttachmentRepository(client.DB())
	ctx := context.Background()

	t.Run("visibility restricts cross-project count", func(t *testing.T) {
		// Three attachments exist; only the member's project is visible.
		stmt, _ := memberStatement(t, f, &models.AttachmentQuery{
			Name:    "_",
			Filters: models.FilterList{{Field: "created_on", Operator: "*", Values: nil}},
		})
		count, err := repo.Count(ctx, stmt)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("open status filter excludes closed issues", func(t *testing.T) {
		stmt, _ := memberStatement(t, f, &models.AttachmentQuery{
			Name:    "_",
			Filters: models.FilterList{{Field: "issue_status", Operator: "o", Values: nil}},
		})
		rows, err := repo.Find(ctx, stmt, 0, 25)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "open.pdf", rows[0].Filename)
		assert.False(t, rows[0].StatusIsClosed)
	})

	t.Run("grouped counts sum to total", func(t *testing.T) {
		stmt, _ := memberStatement(t, f, &models.AttachmentQuery{
			Name:    "_",
			GroupBy: "status",
			Filters: models.FilterList{{Field: "created_on", Operator: "*", Values: nil}},
		})
		count, err := repo.Count(ctx, stmt)
		require.NoError(t, err)

		byGroup, err := repo.CountByGroup(ctx, stmt)
		require.NoError(t, err)
		var sum int64
		for _, n := range byGroup {
			sum += n
		}
		assert.Equal(t, count, sum)
		assert.Equal(t, int64(1), byGroup["New"])
		assert.Equal(t, int64(1), byGroup["Closed"])
	})

	t.Run("grouped listing keeps groups contiguous", func(t *testing.T) {
		stmt, _ := memberStatement(t, f, &models.AttachmentQuery{
			Name:    "_",
			GroupBy: "status",
			Filters: models.FilterList{{Field: "created_on", Operator: "*", Values: nil}},
		})
		rows, err := repo.Find(ctx, stmt, 0, 25)
		require.NoError(t, err)

		seen := map[string]bool{}
		last := ""
		for _, row := range rows {
			if row.StatusName != last {
				require.False(t, seen[row.StatusName], "group %q interleaved", row.StatusName)
				seen[row.StatusName] = true
				last = row.StatusName
			}
		}
	})

	t.Run("ids projection matches listing order", func(t *testing.T) {
		q := &models.AttachmentQuery{
			Name:    "_",
			Filters: models.FilterList{{Field: "created_on", Operator: "*", Values: nil}},
		}
		stmt, _ := memberStatement(t, f, q)

		rows, err := repo.Find(ctx, stmt, 0, 25)
		require.NoError(t, err)
		ids, err := repo.IDs(ctx, stmt, 0, 25)
		require.NoError(t, err)

		require.Len(t, ids, len(rows))
		for i, row := range rows {
			assert.Equal(t, row.ID, ids[i])
		}
	})

	t.Run("totals over ungrouped predicate", func(t *testing.T) {
		stmt, _ := memberStatement(t, f, &models.AttachmentQuery{
			Name:    "_",
			Filters: models.FilterList{{Field: "created_on", Operator: "*", Values: nil}},
		})
		filesize, err := repo.Total(ctx, stmt, "filesize")
		require.NoError(t, err)
		assert.Equal(t, float64(3500), filesize)

		downloads, err := repo.Total(ctx, stmt, "downloads")
		require.NoError(t, err)
		assert.Equal(t, float64(10), downloads)
	})

	t.Run("totals by group", func(t *testing.T) {
		stmt, _ := memberStatement(t, f, &models.AttachmentQuery{
			Name:    "_",
			GroupBy: "status",
			Filters: models.FilterList{{Field: "created_on", Operator: "*", Values: nil}},
		})
		byGroup, err := repo.TotalByGroup(ctx, stmt, "filesize")
		require.NoError(t, err)
		assert.Equal(t, float64(1000), byGroup["New"])
		assert.Equal(t, float64(2500), byGroup["Closed"])
	})

	t.Run("digitless id filter matches nothing", func(t *testing.T) {
		stmt, _ := memberStatement(t, f, &models.AttachmentQuery{
			Name:    "_",
			Filters: models.FilterList{{Field: "container_id", Operator: "=", Values: []string{"none"}}},
		})
		count, err := repo.Count(ctx, stmt)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}

func TestPostgresQueryRepository_Integration(t *testing.T) {
	if os.Getenv("RUN_DB_TESTS") != "1" {
		t.Skip("set RUN_DB_TESTS=1 to run database tests")
	}
	client := testutil.SetupDB(t)
	if client == nil {
		t.Skip("postgres not available, skipping")
	}

	f := seedFixture(t, client)
	repo := NewPostgresQueryRepository(client.DB())
	ctx := context.Background()

	memberScope := permissions.Scope{
		UserID: f.memberUser, Logged: true,
		HasMemberships: true, ProjectIDs: []int64{f.publicProj},
	}
	outsiderScope := permissions.Scope{UserID: f.otherUser, Logged: true}

	t.Run("create and get round-trips definition", func(t *testing.T) {
		q := &models.AttachmentQuery{
			Name:       "weekly pdfs",
			UserID:     f.memberUser,
			Visibility: models.VisibilityPrivate,
			ProjectID:  sql.NullInt64{Int64: f.publicProj, Valid: true},
			Filters: models.FilterList{
				{Field: "created_on", Operator: "w", Values: []string{""}},
				{Field: "content_type", Operator: "~", Values: []string{"pdf"}},
			},
			ColumnNames:    []string{"id", "filename", "created_on"},
			SortCriteria:   models.SortCriteria{{Field: "created_on", Direction: "desc"}},
			TotalableNames: []string{"filesize"},
		}
		created, err := repo.Create(ctx, q)
		require.NoError(t, err)
		require.True(t, created.Persisted())

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, q.Name, got.Name)
		assert.Equal(t, q.Filters, got.Filters)
		assert.Equal(t, q.SortCriteria, got.SortCriteria)
		assert.Equal(t, []string{"id", "filename", "created_on"}, []string(got.ColumnNames))
	})

	t.Run("roles visibility round-trips role links", func(t *testing.T) {
		var roleID int64
		require.NoError(t, client.DB().GetContext(ctx, &roleID,
			`INSERT INTO roles (name) VALUES ('Reviewer') RETURNING id`))

		q := &models.AttachmentQuery{
			Name:       "team view",
			UserID:     f.memberUser,
			Visibility: models.VisibilityRoles,
			RoleIDs:    []int64{roleID},
		}
		created, err := repo.Create(ctx, q)
		require.NoError(t, err)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{roleID}, got.RoleIDs)
	})

	t.Run("list visible excludes others' private definitions", func(t *testing.T) {
		_, err := repo.Create(ctx, &models.AttachmentQuery{
			Name: "shared", UserID: f.memberUser, Visibility: models.VisibilityPublic,
		})
		require.NoError(t, err)

		mine, _, err := repo.ListVisible(ctx, memberScope, 0, 0, 50)
		require.NoError(t, err)
		theirs, _, err := repo.ListVisible(ctx, outsiderScope, 0, 0, 50)
		require.NoError(t, err)

		names := func(qs []models.AttachmentQuery) map[string]bool {
			out := map[string]bool{}
			for _, q := range qs {
				out[q.Name] = true
			}
			return out
		}
		assert.True(t, names(mine)["weekly pdfs"])
		assert.False(t, names(theirs)["weekly pdfs"])
		assert.True(t, names(theirs)["shared"])
	})

	t.Run("update and delete", func(t *testing.T) {
		created, err := repo.Create(ctx, &models.AttachmentQuery{
			Name: "to change", UserID: f.memberUser, Visibility: models.VisibilityPrivate,
		})
		require.NoError(t, err)

		created.Name = "changed"
		created.GroupBy = "status"
		require.NoError(t, repo.Update(ctx, created))

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "changed", got.Name)
		assert.Equal(t, "status", got.GroupBy)

		deleted, err := repo.Delete(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		gone, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("membership roles and permissions", func(t *testing.T) {
		roles, err := repo.MembershipRoles(ctx, f.memberUser)
		require.NoError(t, err)
		require.NotEmpty(t, roles)
		assert.Equal(t, f.publicProj, roles[0].ProjectID)

		can, err := repo.HasPermission(ctx, memberScope, permissions.SaveQueries)
		require.NoError(t, err)
		assert.True(t, can)

		cant, err := repo.HasPermission(ctx, outsiderScope, permissions.SaveQueries)
		require.NoError(t, err)
		assert.False(t, cant)
	})

	t.Run("project view permission", func(t *testing.T) {
		can, err := repo.CanViewProject(ctx, memberScope, f.publicProj)
		require.NoError(t, err)
		assert.True(t, can)

		// Without a membership carrying the view permission the project
		// stays out of reach.
		cant, err := repo.CanViewProject(ctx, outsiderScope, f.publicProj)
		require.NoError(t, err)
		assert.False(t, cant)

		cant, err = repo.CanViewProject(ctx, memberScope, f.privateProj)
		require.NoError(t, err)
		assert.False(t, cant)
	})
}

func TestPostgresLookupRepository_Integration(t *testing.T) {
	if os.Getenv("RUN_DB_TESTS") != "1" {
		t.Skip("set RUN_DB_TESTS=1 to run database tests")
	}
	client := testutil.SetupDB(t)
	if client == nil {
		t.Skip("postgres not available, skipping")
	}

	f := seedFixture(t, client)
	repo := NewPostgresLookupRepository(client.DB())
	ctx := context.Background()

	scope := permissions.Scope{
		UserID: f.memberUser, Logged: true,
		HasMemberships: true, ProjectIDs: []int64{f.publicProj},
	}

	t.Run("visible projects honor permission condition", func(t *testing.T) {
		projects, err := repo.VisibleProjects(ctx, scope)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, "Alpha", projects[0].Label)
	})

	t.Run("statuses ordered by position", func(t *testing.T) {
		statuses, err := repo.Statuses(ctx)
		require.NoError(t, err)
		require.Len(t, statuses, 2)
		assert.Equal(t, "New", statuses[0].Label)
		assert.Equal(t, "Closed", statuses[1].Label)
	})

	t.Run("member users", func(t *testing.T) {
		users, err := repo.MemberUsers(ctx, f.publicProj)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "member", users[0].Label)
	})
}
