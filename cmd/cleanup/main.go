package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/plateguard/backend/database"
	"github.com/plateguard/backend/models"
	"gorm.io/gorm"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Connect to database
	if err := database.Connect(); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	fmt.Println("Start cleanup...")

	// Delete all Alerts (before their detections)
	if err := database.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Alert{}).Error; err != nil {
		log.Fatalf("Failed to delete alerts: %v", err)
	}
	fmt.Println("✅ Deleted all alerts")

	// Delete all Detections
	if err := database.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Detection{}).Error; err != nil {
		log.Fatalf("Failed to delete detections: %v", err)
	}
	fmt.Println("✅ Deleted all detections")

	// Delete closed vehicle reports and their documents
	var closed []models.VehicleReport
	if err := database.DB.Where("is_active = ?", false).Find(&closed).Error; err != nil {
		log.Fatalf("Failed to fetch closed reports: %v", err)
	}
	for _, report := range closed {
		if err := database.DB.Where("report_id = ?", report.ID).Delete(&models.ReportDocument{}).Error; err != nil {
			log.Fatalf("Failed to delete documents for report %d: %v", report.ID, err)
		}
	}
	if err := database.DB.Where("is_active = ?", false).Delete(&models.VehicleReport{}).Error; err != nil {
		log.Fatalf("Failed to delete closed reports: %v", err)
	}
	fmt.Printf("✅ Deleted %d closed reports\n", len(closed))

	fmt.Println("Cleanup finished successfully")
}
