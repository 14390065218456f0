package models

import "gorm.io/gorm"

// SeedSectors inserts the base sector catalogue when it is missing
func SeedSectors(db *gorm.DB) error {
	defaultSectors := []Sector{
		{Name: "Technology", Description: "Technology and software companies", Active: true},
		{Name: "Health", Description: "Clinics, hospitals and medical services", Active: true},
		{Name: "Education", Description: "Educational institutions", Active: true},
		{Name: "Retail", Description: "Retail commerce", Active: true},
		{Name: "Finance", Description: "Banks and financial services", Active: true},
	}
	for _, sector := range defaultSectors {
		if err := db.FirstOrCreate(&sector, "name = ?", sector.Name).Error; err != nil {
			return err
		}
	}
	return nil
}
