package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gosimple/slug"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"hotelpms/internal/config"
	"hotelpms/internal/database"
	"hotelpms/internal/domain/booking"
	"hotelpms/internal/domain/catalog"
	"hotelpms/internal/domain/ledger"
	"hotelpms/internal/domain/promo"
	"hotelpms/internal/domain/tax"
	"hotelpms/internal/pkg/jwt"
	"hotelpms/internal/pkg/keylock"
	"hotelpms/internal/pkg/logging"
)

type seedType struct {
	name      string
	price     string
	maxGuests int
	floor     int
	rooms     int
}

var roomTypes = []seedType{
	{name: "Standard", price: "3000", maxGuests: 2, floor: 1, rooms: 6},
	{name: "Deluxe", price: "4500", maxGuests: 2, floor: 2, rooms: 4},
	{name: "Family Suite", price: "9000", maxGuests: 4, floor: 3, rooms: 2},
}

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	// ================== ROOM TYPES ==================
	log.Println("Creating room types and rooms...")
	for _, st := range roomTypes {
		rt := catalog.RoomType{}
		err := db.Where(catalog.RoomType{Slug: slug.Make(st.name)}).
			Attrs(catalog.RoomType{
				Name:      st.name,
				BasePrice: decimal.RequireFromString(st.price),
				MaxGuests: st.maxGuests,
				Active:    true,
			}).
			FirstOrCreate(&rt).Error
		if err != nil {
			log.Fatalf("room type %s: %v", st.name, err)
		}
		for i := 1; i <= st.rooms; i++ {
			number := fmt.Sprintf("%d%02d", st.floor, i)
			room := catalog.Room{}
			err := db.Where(catalog.Room{Number: number}).
				Attrs(catalog.Room{Floor: st.floor, RoomTypeID: rt.ID, Status: catalog.RoomStatusAvailable}).
				FirstOrCreate(&room).Error
			if err != nil {
				log.Fatalf("room %s: %v", number, err)
			}
		}
		log.Printf("room type %q: %d rooms", rt.Name, st.rooms)
	}

	// ================== TAX RULES ==================
	var taxCount int64
	db.Model(&tax.Rule{}).Count(&taxCount)
	if taxCount == 0 {
		rule := tax.Rule{Name: "GST", Percentage: decimal.NewFromInt(18), Position: 1, Active: true}
		if err := db.Create(&rule).Error; err != nil {
			log.Fatalf("tax rule: %v", err)
		}
		log.Println("tax rule GST 18% created")
	}

	// ================== PROMO CODES ==================
	seedPromo(db, promo.PromoCode{
		Code:         "SAVE10",
		Description:  "10% off any stay",
		DiscountType: promo.DiscountPercentage,
		Value:        decimal.NewFromInt(10),
		UsageCap:     100,
		Active:       true,
	})
	until := time.Now().UTC().AddDate(0, 3, 0)
	seedPromo(db, promo.PromoCode{
		Code:         "FLAT500",
		Description:  "500 off stays above 5000",
		DiscountType: promo.DiscountFixed,
		Value:        decimal.NewFromInt(500),
		MinAmount:    decimal.NewFromInt(5000),
		ValidUntil:   &until,
		Active:       true,
	})

	// ================== LEDGER ==================
	ledgerService := ledger.NewService(db, booking.NewRepository(db), keylock.New(), logging.Printf)
	mainAcct, err := ledgerService.GetOrCreateMainAccount(context.Background())
	if err != nil {
		log.Fatalf("main account: %v", err)
	}
	log.Printf("main account: %s", mainAcct.ID)

	// ================== STAFF TOKENS ==================
	tokens := jwt.New(cfg.JWTSecret, 30*24*time.Hour, cfg.JWTIssuer)
	for i, role := range []string{jwt.RoleAdmin, jwt.RoleFrontDesk, jwt.RoleAccountant} {
		tok, err := tokens.GenerateToken(int64(i+1), role, "seed "+role)
		if err != nil {
			log.Fatalf("token %s: %v", role, err)
		}
		log.Printf("%s token: %s", role, tok)
	}

	log.Println("Seed completed")
}

func seedPromo(db *gorm.DB, p promo.PromoCode) {
	var existing promo.PromoCode
	err := db.Where(promo.PromoCode{Code: p.Code}).Attrs(p).FirstOrCreate(&existing).Error
	if err != nil {
		log.Fatalf("promo %s: %v", p.Code, err)
	}
	log.Printf("promo %s ready", existing.Code)
}
