package api

import (
	"context"
	"errors"

	"taskmanager/internal/model"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedDemoData 初始化本地演示用的管理员账号。
func (s *Server) SeedDemoData(ctx context.Context) error {
	const demoEmail = "demo@taskmanager.local"

	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", demoEmail).First(&user).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, hashErr := bcrypt.GenerateFromPassword([]byte("demo-password"), bcrypt.DefaultCost)
	if hashErr != nil {
		return hashErr
	}
	user = model.User{
		Email:    demoEmail,
		FullName: "Demo Admin",
		Password: string(hash),
		Role:     "admin",
	}
	return s.db.WithContext(ctx).Create(&user).Error
}
