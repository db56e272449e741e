// services/users.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"community-engagement-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// EnsureUser creates the member aggregate for a Slack identity if it does not
// exist yet (idempotent).
func (s *UserService) EnsureUser(slackID, displayName string) (*models.User, error) {
	slackID = strings.TrimSpace(slackID)
	if slackID == "" {
		return nil, fmt.Errorf("%w: slack_id is required", models.ErrValidation)
	}

	var user models.User
	err := s.DB.Where("slack_id = ?", slackID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("fetching user by slack id: %w", err)
	}

	user = models.User{
		ID:          uuid.NewString(),
		SlackID:     slackID,
		DisplayName: displayName,
	}
	if err := s.DB.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return &user, nil
}

// GetUser fetches the aggregate by internal id.
func (s *UserService) GetUser(userID string) (*models.User, error) {
	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	return &user, nil
}

// GetUserBySlackID fetches the aggregate by chat-platform identity.
func (s *UserService) GetUserBySlackID(slackID string) (*models.User, error) {
	var user models.User
	if err := s.DB.Where("slack_id = ?", slackID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: slack user %s", models.ErrNotFound, slackID)
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	return &user, nil
}
