package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"hotelpms/internal/domain/allocation"
	"hotelpms/internal/domain/booking"
	"hotelpms/internal/domain/catalog"
	"hotelpms/internal/domain/ledger"
	"hotelpms/internal/domain/promo"
	"hotelpms/internal/domain/tax"
)

// Models lists every persisted type in dependency order.
func Models() []interface{} {
	return []interface{}{
		&catalog.RoomType{},
		&catalog.Room{},
		&allocation.RoomNight{},
		&promo.PromoCode{},
		&promo.PromoRoomType{},
		&promo.UsageRetry{},
		&tax.Rule{},
		&booking.Booking{},
		&ledger.Account{},
		&ledger.Transaction{},
		&ledger.Payment{},
	}
}

func Migrate(db *gorm.DB) error {
	log.Println("Running AutoMigrate...")
	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("migrate %T: %w", m, err)
		}
	}
	return nil
}
