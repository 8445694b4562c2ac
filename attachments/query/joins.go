package query

import "strings"

// Join identifies one join requirement a predicate fragment can declare.
type Join int

const (
	JoinIssue Join = 1 << iota
	JoinProject
	JoinStatus
	JoinAuthor
	JoinCategory
)

// JoinSet is a set of join requirements, merged across fragments so each
// join appears at most once in the final statement.
type JoinSet int

// With returns the set extended by the given join and its dependencies.
// Project and status joins go through the issue join.
func (s JoinSet) With(j Join) JoinSet {
	out := s | JoinSet(j)
	if j == JoinProject || j == JoinStatus {
		out |= JoinSet(JoinIssue)
	}
	return out
}

// Has reports whether the set contains the join.
func (s JoinSet) Has(j Join) bool {
	return s&JoinSet(j) != 0
}

// Merge unions two join sets.
func (s JoinSet) Merge(other JoinSet) JoinSet {
	return s | other
}

// joinClauses renders joins in a fixed order so generated SQL is stable.
// The issue join restricts containers to issues; the engine never lists
// attachments of other container types.
var joinOrder = []struct {
	join   Join
	clause string
}{
	{JoinIssue, "INNER JOIN issues ON issues.id = attachments.container_id AND attachments.container_type = 'Issue'"},
	{JoinProject, "INNER JOIN projects ON projects.id = issues.project_id"},
	{JoinStatus, "INNER JOIN issue_statuses ON issue_statuses.id = issues.status_id"},
	{JoinAuthor, "LEFT JOIN users AS authors ON authors.id = attachments.author_id"},
	{JoinCategory, "LEFT JOIN attachment_categories ON attachment_categories.id = attachments.attachment_category_id"},
}

// SQL renders the join clauses for the set.
func (s JoinSet) SQL() string {
	var clauses []string
	for _, j := range joinOrder {
		if s.Has(j.join) {
			clauses = append(clauses, j.clause)
		}
	}
	return strings.Join(clauses, " ")
}
