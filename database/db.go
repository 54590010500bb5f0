package database

import (
	"github.com/NahanaBanahnah/trell-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func Init(dbPath string) *gorm.DB {
	dbFile := sqlite.Open(dbPath)
	db, err := gorm.Open(dbFile, &gorm.Config{})
	if err != nil {
		zap.L().Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(&models.CrossReference{}); err != nil {
		zap.L().Fatal("Failed to migrate database", zap.Error(err))
	}

	zap.L().Info("Database initialised and migrated successfully")

	return db
}

// SaveCrossReference records the Discord message id produced for a card.
func SaveCrossReference(db *gorm.DB, cardID, messageID string) error {
	ref := models.CrossReference{
		CardID:    cardID,
		MessageID: messageID,
	}
	return db.Create(&ref).Error
}

// CrossReferencesForCard returns every stored message reference for a card.
func CrossReferencesForCard(db *gorm.DB, cardID string) ([]models.CrossReference, error) {
	var refs []models.CrossReference
	if err := db.Where("card_id = ?", cardID).Find(&refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}

// DeleteCrossReferences removes every stored reference for a card.
func DeleteCrossReferences(db *gorm.DB, cardID string) error {
	return db.Where("card_id = ?", cardID).Delete(&models.CrossReference{}).Error
}
