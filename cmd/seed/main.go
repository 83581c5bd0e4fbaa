package main

import (
	"fmt"

	"github.com/referral-next/internal/config"
	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/logger"
	"github.com/referral-next/internal/models"
	"github.com/referral-next/internal/repository"
	"github.com/referral-next/internal/service"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 演示身份（推荐人 + 两个被推荐人候选）
	identities := []models.Identity{
		{
			Email:        "tutor@example.com",
			DisplayName:  "Demo Tutor",
			ReferralCode: "TUT0R01",
			Roles:        models.StringArray([]string{constants.IdentityRoleTutor}),
			Status:       constants.IdentityStatusActive,
		},
		{
			Email:        "client@example.com",
			DisplayName:  "Demo Client",
			ReferralCode: "CL1ENT1",
			Roles:        models.StringArray([]string{constants.IdentityRoleClient}),
			Status:       constants.IdentityStatusActive,
		},
		{
			Email:        "agent@example.com",
			DisplayName:  "Demo Agent",
			ReferralCode: "AG3NT01",
			Roles:        models.StringArray([]string{constants.IdentityRoleAgent}),
			Status:       constants.IdentityStatusActive,
		},
	}

	for _, identity := range identities {
		var existing models.Identity
		if err := models.DB.Where("email = ?", identity.Email).First(&existing).Error; err != nil {
			if err := models.DB.Create(&identity).Error; err != nil {
				stdLog.Printf("Failed to create identity %s: %v", identity.Email, err)
			} else {
				stdLog.Printf("Created identity: %s (code %s)", identity.Email, identity.ReferralCode)
			}
		} else {
			stdLog.Printf("Identity already exists: %s", identity.Email)
		}
	}

	// 演示条目（归属 tutor）
	var tutor models.Identity
	if err := models.DB.Where("email = ?", "tutor@example.com").First(&tutor).Error; err != nil {
		stdLog.Fatalf("Failed to load demo tutor: %v", err)
	}

	listing := models.Listing{
		OwnerID:  tutor.ID,
		Title:    "Demo Listing - GCSE Maths",
		IsActive: true,
	}
	var existingListing models.Listing
	if err := models.DB.Where("owner_id = ? AND title = ?", listing.OwnerID, listing.Title).First(&existingListing).Error; err != nil {
		if err := models.DB.Create(&listing).Error; err != nil {
			stdLog.Printf("Failed to create listing: %v", err)
		} else {
			stdLog.Printf("Created listing: %s (id %d)", listing.Title, listing.ID)
		}
	} else {
		stdLog.Printf("Listing already exists: %s", existingListing.Title)
	}

	// 演示合作方 API Key（明文只在此打印一次）
	apiKeyRepo := repository.NewAPIKeyRepository(models.DB)
	apiKeyService := service.NewAPIKeyService(apiKeyRepo)
	key, plaintext, err := apiKeyService.Create("demo-partner", nil, constants.KnownScopes)
	if err != nil {
		stdLog.Printf("Failed to create partner api key: %v", err)
	} else {
		stdLog.Printf("Created partner api key: %s (prefix %s)", key.Name, key.Prefix)
		fmt.Println("\nPartner API key (store it now, it is not shown again):")
		fmt.Println("  " + plaintext)
	}

	fmt.Println("\n✅ Demo data created successfully!")
	fmt.Println("Summary:")
	fmt.Println("- 3 Identities (tutor / client / agent with referral codes)")
	fmt.Println("- 1 Listing owned by the demo tutor")
	fmt.Println("- 1 Partner API key with all scopes")
}
