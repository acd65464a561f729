package config

import (
	"fmt"
	"os"
	"strings"

	"agrirent/internal/models"

	"gopkg.in/yaml.v2"
)

// EquipmentFile is the layout of the seed catalog.
type EquipmentFile struct {
	Equipment []models.Equipment `yaml:"equipment"`
}

// LoadEquipment reads and validates the seed catalog.
func LoadEquipment(path string) ([]models.Equipment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read equipment file: %w", err)
	}

	var file EquipmentFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse equipment file: %w", err)
	}

	if err := ValidateEquipment(file.Equipment); err != nil {
		return nil, err
	}
	return file.Equipment, nil
}

// ValidateEquipment checks seed listings for ids, owners and prices.
func ValidateEquipment(items []models.Equipment) error {
	ids := make(map[int64]bool, len(items))
	for _, item := range items {
		if item.ID == 0 {
			return fmt.Errorf("equipment '%s' has invalid ID 0", item.Title)
		}
		if ids[item.ID] {
			return fmt.Errorf("duplicate equipment ID found: %d", item.ID)
		}
		ids[item.ID] = true

		if strings.TrimSpace(item.Title) == "" {
			return fmt.Errorf("equipment %d has no title", item.ID)
		}
		if item.OwnerID == "" {
			return fmt.Errorf("equipment %d has no owner", item.ID)
		}
		if item.PricePerDay <= 0 {
			return fmt.Errorf("equipment %d has non-positive price_per_day", item.ID)
		}
		if !models.IsValidCategory(item.Category) {
			return fmt.Errorf("equipment %d has unknown category %q", item.ID, item.Category)
		}
	}
	return nil
}
