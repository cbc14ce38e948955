package usecase

import (
	"context"

	identity "shorewatch/internal/pkg/identity/domain"
	"shorewatch/internal/pkg/identity/port"
)

// SearchUsersInput is a directory query scoped to everyone but the caller.
type SearchUsersInput struct {
	CallerID int64
	Query    string
	Limit    int
}

// SearchUsersUseCase finds people to start conversations with.
type SearchUsersUseCase struct {
	Directory port.Directory
}

func NewSearchUsersUseCase(dir port.Directory) *SearchUsersUseCase {
	return &SearchUsersUseCase{Directory: dir}
}

func (uc *SearchUsersUseCase) Execute(ctx context.Context, in SearchUsersInput) ([]identity.User, error) {
	return uc.Directory.Search(ctx, in.Query, in.CallerID, in.Limit)
}
