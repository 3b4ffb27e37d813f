package main

import (
	"math/rand"

	"ecowaste-service/internal/model"
	"ecowaste-service/pkg/config"
	"ecowaste-service/pkg/database"
	"ecowaste-service/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var regionNames = []string{
	"Nairobi", "Mombasa", "Kisumu", "Nakuru", "Eldoret",
	"Thika", "Nyeri", "Machakos", "Meru", "Garissa",
}

type sampleCompany struct {
	Name        string
	Email       string
	Phone       string
	Description string
}

var sampleCompanies = []sampleCompany{
	{"GreenCycle Ltd", "greencycle@example.com", "0712345678", "Recycling and composting services"},
	{"EcoCollect", "ecocollect@example.com", "0722123456", "Door-to-door garbage collection"},
	{"TrashAway Services", "trashaway@example.com", "0700123456", "Commercial waste disposal"},
	{"JijiClean Ltd", "jijiclean@example.com", "0740123123", "City-wide garbage clearance"},
	{"Wasteline Kenya", "wasteline@example.com", "0798765432", "Environmentally responsible waste disposal"},
	{"Biogreen Waste Co", "biogreen@example.com", "0755123456", "Organic waste solutions"},
	{"UrbanBin Solutions", "urbanbin@example.com", "0766789012", "Bin rental and garbage pickup"},
	{"KleanEarth Ltd", "kleanearth@example.com", "0788987654", "Zero-waste initiative services"},
}

// Seeds the database with the admin account, the Kenyan regions and a set
// of sample companies. Safe to run repeatedly: existing rows are skipped.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger.InitLogger(cfg)
	log := logger.GetLogger()

	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	db := database.GetDB()

	// Admin account
	var admin model.User
	if result := db.Where("email = ?", "admin@ecowaste.com").First(&admin); result.Error != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte("adminpass"), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal("Failed to hash admin password", zap.Error(err))
		}
		admin = model.User{
			Email:    "admin@ecowaste.com",
			Password: string(hashed),
			Role:     model.RoleAdmin,
		}
		if result := db.Create(&admin); result.Error != nil {
			log.Fatal("Failed to create admin user", zap.Error(result.Error))
		}
		log.Info("Admin user created", zap.String("email", admin.Email))
	}

	// Regions
	for _, name := range regionNames {
		var region model.Region
		if result := db.Where("name = ?", name).First(&region); result.Error == nil {
			continue
		}
		if result := db.Create(&model.Region{Name: name}); result.Error != nil {
			log.Fatal("Failed to create region", zap.String("name", name), zap.Error(result.Error))
		}
	}

	var regions []model.Region
	if result := db.Find(&regions); result.Error != nil {
		log.Fatal("Failed to load regions", zap.Error(result.Error))
	}
	log.Info("Regions seeded", zap.Int("count", len(regions)))

	// Sample companies, each serving 1-2 random regions
	for _, sample := range sampleCompanies {
		var existing model.User
		if result := db.Where("email = ?", sample.Email).First(&existing); result.Error == nil {
			continue
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte("companypass"), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal("Failed to hash company password", zap.Error(err))
		}

		assigned := make([]model.Region, len(regions))
		copy(assigned, regions)
		rand.Shuffle(len(assigned), func(i, j int) {
			assigned[i], assigned[j] = assigned[j], assigned[i]
		})
		assigned = assigned[:1+rand.Intn(2)]

		tx := db.Begin()
		user := model.User{
			Email:    sample.Email,
			Password: string(hashed),
			Role:     model.RoleCompany,
		}
		if result := tx.Create(&user); result.Error != nil {
			tx.Rollback()
			log.Fatal("Failed to create company user", zap.String("email", sample.Email), zap.Error(result.Error))
		}

		company := model.Company{
			UserID:      user.ID,
			Name:        sample.Name,
			Phone:       sample.Phone,
			Email:       sample.Email,
			Description: sample.Description,
			Regions:     assigned,
		}
		if result := tx.Create(&company); result.Error != nil {
			tx.Rollback()
			log.Fatal("Failed to create company", zap.String("name", sample.Name), zap.Error(result.Error))
		}
		if err := tx.Commit().Error; err != nil {
			log.Fatal("Failed to commit company seed", zap.Error(err))
		}

		log.Info("Company seeded",
			zap.String("name", company.Name),
			zap.Int("regions", len(assigned)))
	}

	log.Info("Database seeded with admin, regions, and sample companies")
}
