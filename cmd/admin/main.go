package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"voicematch/backend/internal/config"
	"voicematch/backend/internal/models"
	"voicematch/backend/internal/storage"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	db, err := gorm.Open(postgres.Open(config.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	storageSvc := storage.NewStorageService(db, nil) // no redis needed for admin CLI

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands: rooms | close <room_id> | seed-user <name> <language> [interests,csv]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "rooms":
		roomIDs, err := storageSvc.GetActiveRoomIDs()
		if err != nil {
			log.Fatalf("Error listing rooms: %v", err)
		}
		for _, id := range roomIDs {
			room, err := storageSvc.GetRoomByID(id)
			if err != nil {
				continue
			}
			fmt.Printf("%s  %-8s  %s <-> %s  started %s\n",
				room.RoomID, room.Status, room.User1ID, room.User2ID,
				room.StartedAt.Format("2006-01-02 15:04:05"))
		}
	case "close":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin close <room_id>")
			os.Exit(1)
		}
		if err := storageSvc.CloseRoom(os.Args[2]); err != nil {
			log.Fatalf("Error closing room: %v", err)
		}
		fmt.Printf("Room %s has been closed.\n", os.Args[2])
	case "seed-user":
		if len(os.Args) < 4 {
			fmt.Println("Usage: admin seed-user <name> <language> [interests,csv]")
			os.Exit(1)
		}
		user := &models.User{
			DisplayName: os.Args[2],
			Language:    os.Args[3],
		}
		if len(os.Args) > 4 {
			user.Interests = pq.StringArray(strings.Split(os.Args[4], ","))
		}
		if err := storageSvc.SaveUser(user); err != nil {
			log.Fatalf("Error seeding user: %v", err)
		}
		fmt.Printf("User %s created with ID %s.\n", user.DisplayName, user.ID)
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}
