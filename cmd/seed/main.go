package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shinyyama/foodrescue-backend/internal/config"
	"github.com/shinyyama/foodrescue-backend/internal/db"
	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type seedEstablishment struct {
	Name      string
	Address   string
	Category  string
	Latitude  float64
	Longitude float64
	Packs     []seedPack
}

type seedPack struct {
	Title      string
	Original   string
	Discounted string
	Quantity   int
	CO2Kg      float64
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func run() error {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	canSeed, err := shouldSeed(ctx, gdb)
	if err != nil {
		return err
	}
	if !canSeed {
		log.Printf("establishments already exist; skipping seed (set FORCE_SEED=true to override)")
		return nil
	}

	owner := os.Getenv("SEED_OWNER_UID")
	if owner == "" {
		owner = "seed-owner"
	}
	now := time.Now().UTC()
	// Packs open an hour ago and close tonight, so a fresh seed is purchasable.
	from := now.Add(-time.Hour)
	until := time.Date(now.Year(), now.Month(), now.Day(), 21, 0, 0, 0, time.UTC)
	if !until.After(now) {
		until = until.Add(24 * time.Hour)
	}

	packs := 0
	err = gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, se := range buildSeedEstablishments() {
			e := model.Establishment{
				OwnerUID:           owner,
				Name:               se.Name,
				Description:        fmt.Sprintf("%s rescues its unsold food every evening.", se.Name),
				Address:            se.Address,
				Category:           se.Category,
				Latitude:           se.Latitude,
				Longitude:          se.Longitude,
				VerificationStatus: model.VerificationApproved,
				VerifiedAt:         &now,
				IsActive:           true,
			}
			if err := tx.Create(&e).Error; err != nil {
				return fmt.Errorf("insert establishment %q: %w", se.Name, err)
			}
			for k, sp := range se.Packs {
				img := picsumURL(se.Category, i+1, k+1)
				p := model.Pack{
					EstablishmentID: e.ID,
					Title:           strings.TrimSpace(sp.Title),
					Description:     "Contents vary with what is left at the end of the day.",
					OriginalPrice:   decimal.RequireFromString(sp.Original),
					DiscountedPrice: decimal.RequireFromString(sp.Discounted),
					Quantity:        sp.Quantity,
					AvailableFrom:   from,
					AvailableUntil:  until,
					PickupTimeStart: "18:00",
					PickupTimeEnd:   "21:00",
					ImageURL:        &img,
					CO2SavedKg:      sp.CO2Kg,
					IsActive:        true,
				}
				if err := tx.Create(&p).Error; err != nil {
					return fmt.Errorf("insert pack %q: %w", sp.Title, err)
				}
				packs++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("seeded %d packs", packs)
	return nil
}

func buildSeedEstablishments() []seedEstablishment {
	return []seedEstablishment{
		{
			Name: "Panadería La Espiga", Address: "Av. Corrientes 1234", Category: "bakery",
			Latitude: -34.6037, Longitude: -58.3816,
			Packs: []seedPack{
				{Title: "Bread surprise bag", Original: "12.00", Discounted: "4.50", Quantity: 6, CO2Kg: 1.8},
				{Title: "Pastry box", Original: "15.00", Discounted: "5.00", Quantity: 4, CO2Kg: 1.2},
			},
		},
		{
			Name: "Verdulería Don Pepe", Address: "Av. Santa Fe 2100", Category: "grocery",
			Latitude: -34.5955, Longitude: -58.3975,
			Packs: []seedPack{
				{Title: "Fruit and veg pack", Original: "10.00", Discounted: "3.50", Quantity: 8, CO2Kg: 2.4},
			},
		},
		{
			Name: "Sushi Kaze", Address: "Honduras 4800", Category: "restaurant",
			Latitude: -34.5889, Longitude: -58.4306,
			Packs: []seedPack{
				{Title: "Closing time sushi box", Original: "22.00", Discounted: "8.00", Quantity: 3, CO2Kg: 2.9},
			},
		},
		{
			Name: "Café del Parque", Address: "Av. Sarmiento 2601", Category: "cafe",
			Latitude: -34.5712, Longitude: -58.4166,
			Packs: []seedPack{
				{Title: "Sandwich and cake bag", Original: "9.00", Discounted: "3.00", Quantity: 5, CO2Kg: 1.1},
				{Title: "Coffee shop mix", Original: "11.00", Discounted: "4.00", Quantity: 0, CO2Kg: 1.0},
			},
		},
	}
}

func shouldSeed(ctx context.Context, gdb *gorm.DB) (bool, error) {
	var cnt int64
	if err := gdb.WithContext(ctx).Model(&model.Establishment{}).Count(&cnt).Error; err != nil {
		return false, fmt.Errorf("count establishments: %w", err)
	}
	if cnt == 0 {
		return true, nil
	}
	force := os.Getenv("FORCE_SEED")
	return strings.EqualFold(force, "true"), nil
}

func picsumURL(slug string, index int, k int) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s-%d-%d/600/600", slug, index, k)
}
