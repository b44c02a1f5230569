package main

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/joho/godotenv"
	"github.com/plateguard/backend/database"
	"github.com/plateguard/backend/models"
	"github.com/plateguard/backend/stations"
)

var sampleReports = []struct {
	Plate       string
	Owner       string
	Model       string
	Color       string
	Description string
}{
	{"PB65XY1234", "Harpreet Singh", "Maruti Swift", "White", "Stolen from Ranjit Avenue parking overnight"},
	{"PB10AB4521", "Simran Kaur", "Hyundai i20", "Red", "Taken outside Model Town market"},
	{"PB02CD8890", "Rajesh Kumar", "Honda City", "Silver", "Missing from office parking, Civil Lines"},
	{"PB31EF3307", "Gurpreet Dhillon", "Tata Nexon", "Blue", "Stolen near bus stand, keys snatched"},
	{"PB08GH7755", "Amanpreet Gill", "Bajaj Pulsar", "Black", "Motorcycle stolen from college lot"},
	{"PB22JK1098", "Navdeep Sharma", "Toyota Innova", "Gray", "Carjacked on GT Road"},
	{"PB46LM6642", "Manjit Sandhu", "Hero Splendor", "Black", "Stolen from residence gate"},
	{"PB13NP2281", "Jaswinder Bedi", "Mahindra XUV", "White", "Missing from wedding venue parking"},
}

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

	fmt.Println("🌱 Starting seed...")

	// Station directory seeds itself on first load
	directory, err := stations.LoadOrSeed(database.DB)
	if err != nil {
		log.Fatalf("❌ Failed to seed stations: %v", err)
	}
	fmt.Printf("✅ Station directory ready (%d stations)\n", directory.Len())

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now()
	created := 0

	for _, sample := range sampleReports {
		var count int64
		database.DB.Model(&models.VehicleReport{}).
			Where("plate_number = ?", sample.Plate).
			Count(&count)
		if count > 0 {
			continue
		}

		model := sample.Model
		color := sample.Color

		// Reported some time in the last 14 days
		reportedAt := now.Add(-time.Duration(rng.Intn(14*24)) * time.Hour)

		report := models.VehicleReport{
			PlateNumber: sample.Plate,
			OwnerName:   sample.Owner,
			Description: sample.Description,
			Model:       &model,
			Color:       &color,
			ReportedAt:  reportedAt,
			IsActive:    true,
		}

		// Roughly half the owners know where the vehicle was last seen
		if rng.Float64() < 0.5 {
			lat := 30.5 + rng.Float64()*1.5
			lng := 74.5 + rng.Float64()*2.0
			report.LastKnownLat = &lat
			report.LastKnownLng = &lng
		}

		if err := database.DB.Create(&report).Error; err != nil {
			log.Printf("Failed to create report for %s: %v", sample.Plate, err)
			continue
		}
		created++
	}

	fmt.Printf("✅ Created %d vehicle reports\n", created)
	fmt.Println("✅ All seeding completed.")
}
