package repository

import (
	"errors"

	"github.com/yz4230/rolling/internal/entity"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = gorm.ErrRecordNotFound
	ErrDuplicate = gorm.ErrDuplicatedKey
)

func translate(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return entity.ErrNotFound
	case errors.Is(err, ErrDuplicate):
		return entity.ErrConflict
	}
	return err
}
