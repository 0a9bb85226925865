// Package repository declares the storage interfaces of the embedded provider.
package repository

import (
	"context"

	"github.com/sakif/student-library/internal/model"
)

// AccountRepository stores authentication accounts.
// Create returns an apperror.ErrConflict error when the email is taken;
// lookups return apperror.ErrNotFound when nothing matches.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
}

// StudentRepository is the "students" row store.
type StudentRepository interface {
	InsertStudent(ctx context.Context, student *model.Student) error
	GetStudentByID(ctx context.Context, id string) (*model.Student, error)
}
