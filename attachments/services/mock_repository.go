package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/models"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/query"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/repository"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/permissions"
)

// MockAttachmentRepository is a mock implementation of repository.AttachmentRepository
type MockAttachmentRepository struct {
	mock.Mock
}

var _ repository.AttachmentRepository = (*MockAttachmentRepository)(nil)

func (m *MockAttachmentRepository) Count(ctx context.Context, stmt *query.Statement) (int64, error) {
	args := m.Called(ctx, stmt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAttachmentRepository) CountByGroup(ctx context.Context, stmt *query.Statement) (map[string]int64, error) {
	args := m.Called(ctx, stmt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockAttachmentRepository) Find(ctx context.Context, stmt *query.Statement, offset, limit int) ([]models.Attachment, error) {
	args := m.Called(ctx, stmt, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

func (m *MockAttachmentRepository) IDs(ctx context.Context, stmt *query.Statement, offset, limit int) ([]int64, error) {
	args := m.Called(ctx, stmt, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockAttachmentRepository) Total(ctx context.Context, stmt *query.Statement, column string) (float64, error) {
	args := m.Called(ctx, stmt, column)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockAttachmentRepository) TotalByGroup(ctx context.Context, stmt *query.Statement, column string) (map[string]float64, error) {
	args := m.Called(ctx, stmt, column)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

// MockQueryRepository is a mock implementation of repository.QueryRepository
type MockQueryRepository struct {
	mock.Mock
}

var _ repository.QueryRepository = (*MockQueryRepository)(nil)

func (m *MockQueryRepository) Get(ctx context.Context, id int64) (*models.AttachmentQuery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AttachmentQuery), args.Error(1)
}

func (m *MockQueryRepository) ListVisible(ctx context.Context, scope permissions.Scope, projectID int64, offset, limit int) ([]models.AttachmentQuery, int64, error) {
	args := m.Called(ctx, scope, projectID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]models.AttachmentQuery), args.Get(1).(int64), args.Error(2)
}

func (m *MockQueryRepository) Create(ctx context.Context, q *models.AttachmentQuery) (*models.AttachmentQuery, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AttachmentQuery), args.Error(1)
}

func (m *MockQueryRepository) Update(ctx context.Context, q *models.AttachmentQuery) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

func (m *MockQueryRepository) Delete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockQueryRepository) MembershipRoles(ctx context.Context, userID int64) ([]query.MembershipRole, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]query.MembershipRole), args.Error(1)
}

func (m *MockQueryRepository) CanViewProject(ctx context.Context, scope permissions.Scope, projectID int64) (bool, error) {
	args := m.Called(ctx, scope, projectID)
	return args.Bool(0), args.Error(1)
}

func (m *MockQueryRepository) HasPermission(ctx context.Context, scope permissions.Scope, permission string) (bool, error) {
	args := m.Called(ctx, scope, permission)
	return args.Bool(0), args.Error(1)
}
