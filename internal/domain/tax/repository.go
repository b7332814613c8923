package tax

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrRuleNotFound = errors.New("tax rule not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ActiveRules(ctx context.Context) ([]Rule, error) {
	var rules []Rule
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("position ASC, id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *Repository) List(ctx context.Context) ([]Rule, error) {
	var rules []Rule
	if err := r.db.WithContext(ctx).Order("position ASC, id ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *Repository) GetByID(ctx context.Context, id uint) (*Rule, error) {
	var rule Rule
	if err := r.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

func (r *Repository) Create(ctx context.Context, rule *Rule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *Repository) Update(ctx context.Context, rule *Rule) error {
	return r.db.WithContext(ctx).Model(&Rule{}).Where("id = ?", rule.ID).Updates(map[string]interface{}{
		"name":       rule.Name,
		"percentage": rule.Percentage,
		"position":   rule.Position,
		"active":     rule.Active,
	}).Error
}

func (r *Repository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&Rule{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}
